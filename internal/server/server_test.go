package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repohub/repohub-backend/internal/config"
	"github.com/repohub/repohub-backend/internal/logging"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:       "development",
		Port:              "0",
		AllowedOrigins:    []string{"http://localhost:3000"},
		AppName:           "RepoHub",
		StoreBackend:      "memory",
		JWTSecret:         "test-secret",
		SessionTTL:        time.Hour,
		TwoFATTL:          5 * time.Minute,
		ResetTokenTTL:     20 * time.Minute,
		InvitationTTL:     7 * 24 * time.Hour,
		ResendWindow:      10 * time.Minute,
		ResendMaxAttempts: 3,
		ResendMinInterval: time.Minute,
		ResendStore:       "memory",
		Storage:           config.StorageConfig{Backend: "gridfs", MaxUploadBytes: 1 << 20, GridFSBucket: "uploads"},
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := New(ctx, memoryConfig(), logging.Discard())
	require.NoError(t, err)
	defer srv.Close()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notificaciones", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNew_UnknownStorageBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Backend = "ftp"

	_, err := New(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := New(ctx, memoryConfig(), logging.Discard())
	require.NoError(t, err)
	defer srv.Close()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
