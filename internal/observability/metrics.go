package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/files-manager/internal/queue"
)

// MetricsCollector owns a private registry with HTTP, job, thumbnail and
// gRPC health-server metrics.
type MetricsCollector struct {
	registry      *prometheus.Registry
	serverMetrics *grpcprom.ServerMetrics

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	jobTransitions *prometheus.CounterVec
	thumbnails     *prometheus.CounterVec
}

func InitMetrics() (*MetricsCollector, error) {
	serverMetrics := grpcprom.NewServerMetrics(
		grpcprom.WithServerHandlingTimeHistogram(
			grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}),
		),
	)

	mc := &MetricsCollector{
		registry:      prometheus.NewRegistry(),
		serverMetrics: serverMetrics,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "files_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "files_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
		jobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "files_job_transitions_total",
			Help: "Queue job state transitions by topic and target state.",
		}, []string{"topic", "state"}),
		thumbnails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "files_thumbnails_total",
			Help: "Thumbnail generation attempts by width and outcome.",
		}, []string{"width", "outcome"}),
	}

	for _, c := range []prometheus.Collector{
		serverMetrics,
		mc.httpRequests,
		mc.httpDuration,
		mc.jobTransitions,
		mc.thumbnails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := mc.registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}

	return mc, nil
}

// GetServerMetrics returns the gRPC server metrics
func (mc *MetricsCollector) GetServerMetrics() *grpcprom.ServerMetrics {
	return mc.serverMetrics
}

// GetHandler returns the HTTP handler for /metrics endpoint
func (mc *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

func (mc *MetricsCollector) ObserveHTTP(route, method, code string, d time.Duration) {
	mc.httpRequests.WithLabelValues(route, method, code).Inc()
	mc.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// JobTransition implements queue.Observer.
func (mc *MetricsCollector) JobTransition(topic string, from, to queue.State) {
	mc.jobTransitions.WithLabelValues(topic, string(to)).Inc()
}

func (mc *MetricsCollector) ThumbnailGenerated(width string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	mc.thumbnails.WithLabelValues(width, outcome).Inc()
}

// StartMetricsServer serves /metrics and /health until ctx is cancelled.
func (mc *MetricsCollector) StartMetricsServer(ctx context.Context, port string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", mc.GetHandler())

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("starting metrics server", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv
}
