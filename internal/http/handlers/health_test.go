package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/service"
)

type downStore struct {
	*db.MemoryStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func healthz(t *testing.T, store service.Repository) int {
	t.Helper()
	h := &Handler{Store: store, Logger: zerolog.Nop()}

	r := gin.New()
	r.GET("/healthz", h.Healthz)

	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestHealthzReportsStoreState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if code := healthz(t, db.NewMemoryStore()); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := healthz(t, downStore{db.NewMemoryStore()}); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}

func TestHealthzIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := db.New(context.Background(), url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer store.Close()

	if code := healthz(t, store); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}
