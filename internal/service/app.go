package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/PaulBabatuyi/files-manager/internal/database"
)

// Pinger is anything with a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Counter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountFiles(ctx context.Context) (int64, error)
}

type Status struct {
	KV bool `json:"redis"`
	DB bool `json:"db"`
}

type Stats struct {
	Users int64 `json:"users"`
	Files int64 `json:"files"`
}

type AppService struct {
	kv Pinger
	db interface {
		Pinger
		Counter
	}
}

func NewAppService(kv Pinger, db database.Store) *AppService {
	return &AppService{kv: kv, db: db}
}

// Status probes both backends. It never fails; a dead backend reports false.
func (s *AppService) Status(ctx context.Context) Status {
	var st Status
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.KV = s.kv.Ping(gctx) == nil
		return nil
	})
	g.Go(func() error {
		st.DB = s.db.Ping(gctx) == nil
		return nil
	})
	_ = g.Wait()
	return st
}

// Stats counts users and files.
func (s *AppService) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.db.CountUsers(gctx)
		st.Users = n
		return err
	})
	g.Go(func() error {
		n, err := s.db.CountFiles(gctx)
		st.Files = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, Internal(err)
	}
	return st, nil
}
