package models

// Queue topics.
const (
	TopicFile = "fileQueue"
	TopicUser = "userQueue"
)

// ThumbnailPayload is enqueued after an image upload.
type ThumbnailPayload struct {
	FileID string `json:"fileId"`
	UserID string `json:"userId"`
}

// WelcomePayload is enqueued after a user registers.
type WelcomePayload struct {
	UserID string `json:"userId"`
}
