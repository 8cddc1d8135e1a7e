package database

import (
	"context"
	"errors"
	"sync"

	"github.com/PaulBabatuyi/files-manager/internal/models"
	"github.com/google/uuid"
)

// MemoryDB keeps records in insertion order. Used for tests and single-node dev runs.
type MemoryDB struct {
	mu     sync.RWMutex
	users  []*models.User
	files  []*models.FileRecord
	closed bool
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{}
}

func (m *MemoryDB) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errors.New("database closed")
	}
	return nil
}

func (m *MemoryDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryDB) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, ErrAlreadyExists
		}
	}

	stored := *u
	stored.ID = uuid.NewString()
	m.users = append(m.users, &stored)

	out := stored
	return &out, nil
}

func (m *MemoryDB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryDB) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryDB) CountUsers(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *MemoryDB) CreateFile(ctx context.Context, f *models.FileRecord) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *f
	stored.ID = uuid.NewString()
	stored.ParentID = models.ParentID(stored.ParentID.String())
	m.files = append(m.files, &stored)

	out := stored
	return &out, nil
}

func (m *MemoryDB) FindFile(ctx context.Context, filter FileFilter) (*models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if f := m.findLocked(filter); f != nil {
		out := *f
		return &out, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryDB) ListFiles(ctx context.Context, filter ListFilter, page int) ([]*models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	parentID := models.ParentID(filter.ParentID).String()
	skip := offset(page)

	out := make([]*models.FileRecord, 0, PageSize)
	matched := 0
	for _, f := range m.files {
		if f.ParentID.String() != parentID {
			continue
		}
		if filter.ViewerID != "" && f.UserID != filter.ViewerID && !f.IsPublic {
			continue
		}
		matched++
		if matched <= skip {
			continue
		}
		rec := *f
		out = append(out, &rec)
		if len(out) == PageSize {
			break
		}
	}
	return out, nil
}

func (m *MemoryDB) UpdateFile(ctx context.Context, filter FileFilter, update FileUpdate) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.findLocked(filter)
	if f == nil {
		return nil, ErrNotFound
	}
	if update.IsPublic != nil {
		f.IsPublic = *update.IsPublic
	}
	out := *f
	return &out, nil
}

func (m *MemoryDB) CountFiles(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.files)), nil
}

func (m *MemoryDB) findLocked(filter FileFilter) *models.FileRecord {
	for _, f := range m.files {
		if f.ID != filter.ID {
			continue
		}
		if filter.UserID != "" && f.UserID != filter.UserID {
			return nil
		}
		return f
	}
	return nil
}
