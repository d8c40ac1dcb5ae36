package wireclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/model"
)

func newTestClient(server *httptest.Server) *Client {
	return New(zerolog.Nop(), WithBaseURLs(server.URL, server.URL, server.URL))
}

func TestPostDecodesDataField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"","data":{"uuid":"abc-123"}}`))
	}))
	defer server.Close()

	c := newTestClient(server)
	var out struct {
		UUID string `json:"uuid"`
	}
	if err := c.Post(context.Background(), "/v3/dir", map[string]string{"uuid": "x"}, &out, true); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if out.UUID != "abc-123" {
		t.Fatalf("uuid = %q, want abc-123", out.UUID)
	}
}

func TestPostUnauthorizedMapsToErrAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server)
	err := c.Post(context.Background(), "/v3/dir", nil, nil, true)
	if !errors.Is(err, model.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestPostConflictMapsToErrConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	c := newTestClient(server)
	err := c.Post(context.Background(), "/v3/dir/create", nil, nil, true)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPostRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":true,"message":"","data":{}}`))
	}))
	defer server.Close()

	c := newTestClient(server)
	if err := c.Post(context.Background(), "/v3/user/baseFolder", nil, nil, true); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestPostExhaustsRetriesOnPersistent5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server)
	err := c.Post(context.Background(), "/v3/dir", nil, nil, true)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestPostNeed2FA(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Please enter your 2FA code.","code":"enter_2fa"}`))
	}))
	defer server.Close()

	c := newTestClient(server)
	err := c.Post(context.Background(), "/v3/login", nil, nil, false)
	if !errors.Is(err, model.ErrNeed2FA) {
		t.Fatalf("expected ErrNeed2FA, got %v", err)
	}
}
