package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/files-manager/internal/queue"
)

func TestMetricsCollector_CountsAndExposes(t *testing.T) {
	mc, err := InitMetrics()
	require.NoError(t, err)

	mc.JobTransition("fileQueue", queue.StateQueued, queue.StateProcessing)
	mc.JobTransition("fileQueue", queue.StateProcessing, queue.StateCompleted)
	mc.ThumbnailGenerated("100", true)
	mc.ThumbnailGenerated("100", false)
	mc.ObserveHTTP("/files", http.MethodPost, "201", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.jobTransitions.WithLabelValues("fileQueue", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.thumbnails.WithLabelValues("100", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.httpRequests.WithLabelValues("/files", "POST", "201")))

	rec := httptest.NewRecorder()
	mc.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "files_job_transitions_total")
	assert.Contains(t, string(body), "files_thumbnails_total")
}

func TestInitMetrics_Twice(t *testing.T) {
	_, err := InitMetrics()
	require.NoError(t, err)
	_, err = InitMetrics()
	require.NoError(t, err)
}

func TestInitTracerProvider(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), io.Discard, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, GRPCStatsHandler(tp))
	ShutdownTracerProvider(context.Background(), tp, zap.NewNop())
}
