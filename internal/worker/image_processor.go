package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"

	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PaulBabatuyi/files-manager/internal/database"
	"github.com/PaulBabatuyi/files-manager/internal/models"
	"github.com/PaulBabatuyi/files-manager/internal/queue"
	"github.com/PaulBabatuyi/files-manager/internal/service"
	"github.com/PaulBabatuyi/files-manager/internal/storage"
)

const tracerName = "github.com/PaulBabatuyi/files-manager/internal/worker"

// ThumbnailMetrics counts per-width outcomes.
type ThumbnailMetrics interface {
	ThumbnailGenerated(width string, ok bool)
}

type nopMetrics struct{}

func (nopMetrics) ThumbnailGenerated(string, bool) {}

// ThumbnailWorker renders the fixed set of width derivatives for an image.
type ThumbnailWorker struct {
	db      database.FileStore
	fs      storage.Filesystem
	metrics ThumbnailMetrics
	logger  *zap.Logger
	widths  []int
}

func NewThumbnailWorker(db database.FileStore, fs storage.Filesystem, metrics ThumbnailMetrics, logger *zap.Logger) *ThumbnailWorker {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThumbnailWorker{
		db:      db,
		fs:      fs,
		metrics: metrics,
		logger:  logger.Named("thumbnails"),
		widths:  service.ThumbnailWidths,
	}
}

// Handle is the queue handler for the file topic. Lookup problems fail the
// job and transient read faults are retried; rendering problems are logged
// and the job still completes.
func (w *ThumbnailWorker) Handle(ctx context.Context, job *queue.Job) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ThumbnailWorker.Handle")
	defer span.End()

	var p models.ThumbnailPayload
	if err := job.Decode(&p); err != nil {
		return queue.Fatal(err)
	}
	if !service.ValidID(p.FileID) || !service.ValidID(p.UserID) {
		return queue.Fatal(fmt.Errorf("malformed ids file=%q user=%q", p.FileID, p.UserID))
	}
	span.SetAttributes(attribute.String("file.id", p.FileID))

	file, err := w.db.FindFile(ctx, database.FileFilter{ID: p.FileID, UserID: p.UserID})
	if errors.Is(err, database.ErrNotFound) {
		return queue.Fatal(fmt.Errorf("file %s not found", p.FileID))
	}
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	if file.Type == models.FileTypeFolder || file.LocalPath == "" {
		return queue.Fatal(fmt.Errorf("file %s has no content", p.FileID))
	}

	data, err := w.fs.Read(ctx, file.LocalPath)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.Error("source content missing",
			zap.String("file_id", file.ID),
			zap.Error(err),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		w.logger.Warn("failed to decode image",
			zap.String("file_id", file.ID),
			zap.Error(err),
		)
		for _, width := range w.widths {
			w.metrics.ThumbnailGenerated(strconv.Itoa(width), false)
		}
		return nil
	}

	format, err := imaging.FormatFromFilename(file.Name)
	if err != nil {
		format = imaging.PNG
	}

	// every width is attempted; the group only joins them
	var g errgroup.Group
	for _, width := range w.widths {
		width := width
		g.Go(func() error {
			err := w.render(ctx, src, format, file.LocalPath, width)
			w.metrics.ThumbnailGenerated(strconv.Itoa(width), err == nil)
			if err != nil {
				w.logger.Error("thumbnail failed",
					zap.String("file_id", file.ID),
					zap.Int("width", width),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	w.logger.Info("thumbnails generated", zap.String("file_id", file.ID))
	return nil
}

func (w *ThumbnailWorker) render(ctx context.Context, src image.Image, format imaging.Format, localPath string, width int) error {
	// height 0 keeps the aspect ratio
	thumb := imaging.Resize(src, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := w.fs.Write(ctx, service.DerivativePath(localPath, width), buf.Bytes()); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
