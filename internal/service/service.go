package service

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/files-manager/internal/database"
	"github.com/PaulBabatuyi/files-manager/internal/models"
	"github.com/PaulBabatuyi/files-manager/internal/storage"
)

// ThumbnailWidths are the derivative sizes produced for images, largest first.
var ThumbnailWidths = []int{500, 250, 100}

// FileContent is what a content read returns.
type FileContent struct {
	Data        []byte
	ContentType string
}

// Upload validates and stores a file, then schedules thumbnails for images.
// The thumbnail job is fire-and-forget: enqueue failures are only logged.
func (s *FileService) Upload(ctx context.Context, userID string, req UploadRequest) (*models.FileRecord, error) {
	ctx, span := s.tracer.Start(ctx, "FileService.Upload")
	defer span.End()

	if userID == "" {
		return nil, Unauthorized()
	}

	params, err := s.ValidateUpload(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, MessageOf(err))
		return nil, err
	}

	file, err := s.SaveFile(ctx, userID, params)
	if err != nil {
		span.SetStatus(codes.Error, MessageOf(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("file.id", file.ID),
		attribute.String("file.type", string(file.Type)),
	)

	if file.Type == models.FileTypeImage {
		jobID, err := s.queue.Enqueue(ctx, models.TopicFile, models.ThumbnailPayload{
			FileID: file.ID,
			UserID: file.UserID,
		})
		if err != nil {
			s.logger.Error("failed to enqueue thumbnail job",
				zap.String("file_id", file.ID),
				zap.Error(err),
			)
		} else {
			s.logger.Debug("thumbnail job enqueued",
				zap.String("file_id", file.ID),
				zap.String("job_id", jobID),
			)
		}
	}

	return file, nil
}

// SaveFile persists a validated upload. Folders only get metadata; other
// types are decoded and written under a fresh path first.
func (s *FileService) SaveFile(ctx context.Context, userID string, params *FileParams) (*models.FileRecord, error) {
	record := &models.FileRecord{
		UserID:   userID,
		Name:     params.Name,
		Type:     params.Type,
		IsPublic: params.IsPublic,
		ParentID: params.ParentID,
	}

	if params.Type != models.FileTypeFolder {
		data, err := decodeData(params.Data)
		if err != nil {
			return nil, BadRequest("Invalid data")
		}

		path := s.fs.NewPath()
		if err := s.fs.Write(ctx, path, data); err != nil {
			return nil, s.internal("write file content", err)
		}
		record.LocalPath = path
	}

	created, err := s.db.CreateFile(ctx, record)
	if err != nil {
		return nil, s.internal("save file metadata", err)
	}
	return created, nil
}

// GetFile looks up a single record.
func (s *FileService) GetFile(ctx context.Context, filter database.FileFilter) (*models.FileRecord, error) {
	if !ValidID(filter.ID) {
		return nil, NotFound()
	}
	f, err := s.db.FindFile(ctx, filter)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NotFound()
	}
	if err != nil {
		return nil, s.internal("load file", err)
	}
	return f, nil
}

// IsOwnerAndPublic is the visibility gate for reads: owners always see their
// files, everyone sees public ones.
func IsOwnerAndPublic(f *models.FileRecord, userID string) bool {
	return (userID != "" && f.UserID == userID) || f.IsPublic
}

// GetFileForViewer returns the record if viewerID may see it. Hidden files
// are reported as not found so their existence does not leak.
func (s *FileService) GetFileForViewer(ctx context.Context, fileID, viewerID string) (*models.FileRecord, error) {
	f, err := s.GetFile(ctx, database.FileFilter{ID: fileID})
	if err != nil {
		return nil, err
	}
	if !IsOwnerAndPublic(f, viewerID) {
		return nil, NotFound()
	}
	return f, nil
}

// ValidSize reports whether size selects the original (0) or a derivative.
func ValidSize(size int) bool {
	if size == 0 {
		return true
	}
	for _, w := range ThumbnailWidths {
		if w == size {
			return true
		}
	}
	return false
}

// DerivativePath is where the thumbnail of the given width is stored.
func DerivativePath(localPath string, width int) string {
	return localPath + "_" + strconv.Itoa(width)
}

// GetFileData reads the content of f, or of its size derivative.
func (s *FileService) GetFileData(ctx context.Context, f *models.FileRecord, size int) (*FileContent, error) {
	if f.Type == models.FileTypeFolder {
		return nil, BadRequest("A folder doesn't have content")
	}
	if !ValidSize(size) {
		return nil, BadRequest("Invalid size")
	}
	if f.LocalPath == "" {
		return nil, NotFound()
	}

	path := f.LocalPath
	if size != 0 {
		path = DerivativePath(f.LocalPath, size)
	}

	exists, err := s.fs.Exists(ctx, path)
	if err != nil {
		return nil, s.internal("stat file content", err)
	}
	if !exists {
		return nil, NotFound()
	}

	data, err := s.fs.Read(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NotFound()
	}
	if err != nil {
		return nil, s.internal("read file content", err)
	}

	return &FileContent{Data: data, ContentType: ContentTypeFor(f.Name, data)}, nil
}

// PublishUnpublish sets the visibility of a file owned by userID. Setting the
// current value again is a no-op success.
func (s *FileService) PublishUnpublish(ctx context.Context, fileID, userID string, visible bool) (*models.FileRecord, error) {
	if userID == "" {
		return nil, Unauthorized()
	}
	if !ValidID(fileID) {
		return nil, NotFound()
	}

	f, err := s.db.UpdateFile(ctx,
		database.FileFilter{ID: fileID, UserID: userID},
		database.FileUpdate{IsPublic: &visible},
	)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NotFound()
	}
	if err != nil {
		return nil, s.internal("update file visibility", err)
	}
	return f, nil
}

// ListByParent returns one page of the records under parentID that the user
// may see. An unknown or non-folder parent yields an empty page rather than an
// error.
func (s *FileService) ListByParent(ctx context.Context, userID string, parentID models.ParentID, page int) ([]*models.FileRecord, error) {
	if userID == "" {
		return nil, Unauthorized()
	}
	if page < 0 {
		page = 0
	}

	empty := []*models.FileRecord{}

	if !parentID.IsRoot() {
		if !ValidID(parentID.String()) {
			return empty, nil
		}
		folder, err := s.db.FindFile(ctx, database.FileFilter{ID: parentID.String()})
		if errors.Is(err, database.ErrNotFound) {
			return empty, nil
		}
		if err != nil {
			return nil, s.internal("load parent", err)
		}
		if folder.Type != models.FileTypeFolder || !IsOwnerAndPublic(folder, userID) {
			return empty, nil
		}
	}

	files, err := s.db.ListFiles(ctx, database.ListFilter{ParentID: parentID.String(), ViewerID: userID}, page)
	if err != nil {
		return nil, s.internal("list files", err)
	}
	if files == nil {
		files = empty
	}
	return files, nil
}
