package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/files-manager/internal/database"
	"github.com/PaulBabatuyi/files-manager/internal/models"
	"github.com/PaulBabatuyi/files-manager/internal/queue"
	"github.com/PaulBabatuyi/files-manager/internal/service"
)

// WelcomeWorker greets newly registered users.
type WelcomeWorker struct {
	db     database.UserStore
	logger *zap.Logger
}

func NewWelcomeWorker(db database.UserStore, logger *zap.Logger) *WelcomeWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WelcomeWorker{db: db, logger: logger.Named("welcome")}
}

func (w *WelcomeWorker) Handle(ctx context.Context, job *queue.Job) error {
	var p models.WelcomePayload
	if err := job.Decode(&p); err != nil {
		return queue.Fatal(err)
	}
	if !service.ValidID(p.UserID) {
		return queue.Fatal(fmt.Errorf("malformed user id %q", p.UserID))
	}

	user, err := w.db.FindUserByID(ctx, p.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return queue.Fatal(fmt.Errorf("user %s not found", p.UserID))
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	w.logger.Info(fmt.Sprintf("Welcome %s!", user.Email), zap.String("user_id", user.ID))
	return nil
}

// Registrar is the consumer side of the job queue.
type Registrar interface {
	ProcessTopic(topic string, handler queue.Handler, concurrency int) error
}

type Config struct {
	ThumbnailConcurrency int
	WelcomeConcurrency   int
}

// Register attaches both workers to their topics.
func Register(q Registrar, cfg Config, thumbs *ThumbnailWorker, welcome *WelcomeWorker) error {
	if cfg.ThumbnailConcurrency <= 0 {
		cfg.ThumbnailConcurrency = 1
	}
	if cfg.WelcomeConcurrency <= 0 {
		cfg.WelcomeConcurrency = 4
	}
	if err := q.ProcessTopic(models.TopicFile, thumbs.Handle, cfg.ThumbnailConcurrency); err != nil {
		return fmt.Errorf("register %s: %w", models.TopicFile, err)
	}
	if err := q.ProcessTopic(models.TopicUser, welcome.Handle, cfg.WelcomeConcurrency); err != nil {
		return fmt.Errorf("register %s: %w", models.TopicUser, err)
	}
	return nil
}

// Start is a convenience for callers that own the queue lifecycle: it
// registers the workers and runs the queue until ctx is cancelled.
func Start(ctx context.Context, q *queue.Queue, cfg Config, thumbs *ThumbnailWorker, welcome *WelcomeWorker) error {
	if err := Register(q, cfg, thumbs, welcome); err != nil {
		return err
	}
	return q.Run(ctx)
}
