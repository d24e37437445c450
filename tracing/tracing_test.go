package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestTracerBeforeStart(t *testing.T) {
	_, span := Tracer.Start(context.Background(), "test.noop")
	defer span.End()
	require.False(t, span.IsRecording())
}

func TestStart(t *testing.T) {
	var exported atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/traces" {
			exported.Inc()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", srv.URL)

	ctx := context.Background()
	shutdown, err := Start(ctx, "dealbot-test", "0.0.0", 1)
	require.NoError(t, err)

	_, span := Tracer.Start(ctx, "test.exported")
	require.True(t, span.IsRecording())
	span.End()

	require.NoError(t, shutdown(ctx))
	require.EqualValues(t, 1, exported.Load())
}
