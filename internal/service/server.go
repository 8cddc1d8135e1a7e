package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/files-manager/internal/database"
	"github.com/PaulBabatuyi/files-manager/internal/storage"
)

const tracerName = "github.com/PaulBabatuyi/files-manager/internal/service"

// Enqueuer is the producer side of the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, topic string, payload any) (string, error)
}

type FileService struct {
	db     database.FileStore
	fs     storage.Filesystem
	queue  Enqueuer
	logger *zap.Logger
	tracer trace.Tracer
}

func NewFileService(db database.FileStore, fs storage.Filesystem, q Enqueuer, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		db:     db,
		fs:     fs,
		queue:  q,
		logger: logger.Named("files"),
		tracer: otel.Tracer(tracerName),
	}
}

// internal logs the cause and hides it from the caller.
func (s *FileService) internal(op string, err error) error {
	s.logger.Error(op, zap.Error(err))
	return Internal(err)
}
