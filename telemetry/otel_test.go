package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/wagtee/go-client/logger"
)

func TestNewExportsSpans(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	shutdown, err := New(ctx, Config{Endpoint: server.URL, AuthToken: "secret", ServiceName: "wagtee-test", Version: "dev"}, logger.NewTestLogger())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "unit")
	span.End()
	require.NoError(t, shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "/v1/traces")
	assert.Equal(t, "Bearer secret", auth)
}

func TestNewInvalidEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "not a url"}, logger.NewTestLogger())
	assert.ErrorContains(t, err, "invalid endpoint")
}
