package server

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PaulBabatuyi/files-manager/internal/service"
)

// rawUpload defers field decoding so a mistyped field is reported by the
// validation message for that field, not as a broken body.
type rawUpload struct {
	Name     json.RawMessage `json:"name"`
	Type     json.RawMessage `json:"type"`
	ParentID json.RawMessage `json:"parentId"`
	IsPublic json.RawMessage `json:"isPublic"`
	Data     json.RawMessage `json:"data"`
}

type rawRegister struct {
	Email    json.RawMessage `json:"email"`
	Password json.RawMessage `json:"password"`
}

func bindUpload(c *gin.Context) (service.UploadRequest, error) {
	var raw rawUpload
	if err := c.ShouldBindJSON(&raw); err != nil {
		return service.UploadRequest{}, service.BadRequest("Invalid body")
	}

	req := service.UploadRequest{
		Name: stringField(raw.Name),
		Type: stringField(raw.Type),
		Data: stringField(raw.Data),
	}

	if len(raw.ParentID) > 0 {
		if err := json.Unmarshal(raw.ParentID, &req.ParentID); err != nil {
			return service.UploadRequest{}, service.BadRequest("Parent not found")
		}
	}

	public, ok := boolField(raw.IsPublic)
	if !ok {
		return service.UploadRequest{}, service.BadRequest("Invalid isPublic")
	}
	req.IsPublic = public

	return req, nil
}

func bindRegister(c *gin.Context) (email, password string, err error) {
	var raw rawRegister
	if err := c.ShouldBindJSON(&raw); err != nil {
		return "", "", service.BadRequest("Invalid body")
	}
	return stringField(raw.Email), stringField(raw.Password), nil
}

// stringField returns the JSON string in raw, or "" for any other value.
func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// boolField accepts a JSON bool or a string strconv.ParseBool understands.
// Absent and null are false.
func boolField(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	if s := stringField(raw); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
	}
	return false, false
}
