package database

import (
	"context"
	"errors"

	"github.com/PaulBabatuyi/files-manager/internal/models"
)

// PageSize is the fixed number of records returned per listing page.
const PageSize = 20

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// FileFilter selects a single file. UserID is optional.
type FileFilter struct {
	ID     string
	UserID string
}

// ListFilter selects the children of a folder, or of the root when ParentID
// is "0". A non-empty ViewerID keeps only records the viewer owns or that are
// public.
type ListFilter struct {
	ParentID string
	ViewerID string
}

type FileUpdate struct {
	IsPublic *bool
}

// FileStore holds file metadata records.
type FileStore interface {
	CreateFile(ctx context.Context, f *models.FileRecord) (*models.FileRecord, error)
	FindFile(ctx context.Context, filter FileFilter) (*models.FileRecord, error)
	ListFiles(ctx context.Context, filter ListFilter, page int) ([]*models.FileRecord, error)
	UpdateFile(ctx context.Context, filter FileFilter, update FileUpdate) (*models.FileRecord, error)
	CountFiles(ctx context.Context) (int64, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Store is the whole document capability handed to services.
type Store interface {
	FileStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

func offset(page int) int {
	if page < 0 {
		page = 0
	}
	return page * PageSize
}
