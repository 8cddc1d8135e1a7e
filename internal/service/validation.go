package service

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/PaulBabatuyi/files-manager/internal/database"
	"github.com/PaulBabatuyi/files-manager/internal/models"
)

// UploadRequest is the body of an upload call. Data is base64 encoded.
type UploadRequest struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	ParentID models.ParentID `json:"parentId"`
	IsPublic bool            `json:"isPublic"`
	Data     string          `json:"data"`
}

// FileParams is an upload request that passed validation.
type FileParams struct {
	Name     string
	Type     models.FileType
	ParentID models.ParentID
	IsPublic bool
	Data     string
}

// ValidateUpload checks the request fields and the parent reference. A
// non-root parent must be an existing folder, whoever owns it.
func (s *FileService) ValidateUpload(ctx context.Context, req UploadRequest) (*FileParams, error) {
	if req.Name == "" {
		return nil, BadRequest("Missing name")
	}

	fileType := models.FileType(req.Type)
	if !fileType.Valid() {
		return nil, BadRequest("Missing type")
	}

	if fileType != models.FileTypeFolder && req.Data == "" {
		return nil, BadRequest("Missing data")
	}

	params := &FileParams{
		Name:     req.Name,
		Type:     fileType,
		ParentID: models.ParentID(req.ParentID.String()),
		IsPublic: req.IsPublic,
		Data:     req.Data,
	}

	if params.ParentID.IsRoot() {
		return params, nil
	}

	if !ValidID(params.ParentID.String()) {
		return nil, BadRequest("Parent not found")
	}

	parent, err := s.db.FindFile(ctx, database.FileFilter{ID: params.ParentID.String()})
	if errors.Is(err, database.ErrNotFound) {
		return nil, BadRequest("Parent not found")
	}
	if err != nil {
		return nil, s.internal("load parent", err)
	}
	if parent.Type != models.FileTypeFolder {
		return nil, BadRequest("Parent not found")
	}

	return params, nil
}

// ValidID reports whether id is a well-formed record identifier.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func decodeData(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err == nil {
		return raw, nil
	}
	// tolerate unpadded input
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
}

// ContentTypeFor derives the content type from the file name, falling back to
// sniffing the content when the extension is unknown.
func ContentTypeFor(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return mimetype.Detect(data).String()
}
