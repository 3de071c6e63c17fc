package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHealth struct {
	status string
}

func (h staticHealth) Check(context.Context) HealthStatus {
	return HealthStatus{
		Status:     h.status,
		Timestamp:  time.Now().UTC(),
		Components: map[string]string{"index": "ok"},
	}
}

func TestServerHealthAndMetrics(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		status string
		code   int
	}{
		{"up", http.StatusOK},
		{"degraded", http.StatusServiceUnavailable},
	} {
		s := NewServer("127.0.0.1:0", staticHealth{status: tc.status})
		addr, err := s.Start(ctx)
		require.NoError(t, err)

		resp, err := http.Get("http://" + addr + "/health")
		require.NoError(t, err)
		var got HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		resp.Body.Close()
		assert.Equal(t, tc.code, resp.StatusCode)
		assert.Equal(t, tc.status, got.Status)
		assert.Equal(t, "ok", got.Components["index"])

		WatcherEventsTotal.Inc()
		resp, err = http.Get("http://" + addr + "/metrics")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Contains(t, string(body), "dwmm_watcher_events_total")

		require.NoError(t, s.Stop(ctx))
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), false, "localhost:4317")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer.Start(context.Background(), "test")
	span.End()
}
