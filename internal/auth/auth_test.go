package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/cryptox"
	"github.com/filen-go/filen-cli/internal/localstate"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

// fakeServer builds an httptest server that drives a minimal login flow
// matching the real API's three calls: auth/info, login, user/baseFolder.
func fakeServer(t *testing.T, masterKeyEnvelope string, need2FA bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/auth/info":
			w.Write([]byte(`{"status":true,"message":"","data":{"authVersion":2,"salt":"0123456789012345678901234567890123456789012345678901234567890123"}}`))
		case "/v3/login":
			if need2FA {
				w.Write([]byte(`{"status":false,"message":"Please enter your 2FA code.","code":"enter_2fa"}`))
				return
			}
			body, _ := json.Marshal(map[string]any{
				"apiKey":     "test-api-key",
				"masterKeys": masterKeyEnvelope,
				"id":         7,
			})
			resp := map[string]json.RawMessage{"status": json.RawMessage("true"), "message": json.RawMessage(`""`), "data": body}
			out, _ := json.Marshal(resp)
			w.Write(out)
		case "/v3/user/baseFolder":
			w.Write([]byte(`{"status":true,"message":"","data":{"uuid":"base-folder-uuid"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestService(t *testing.T, server *httptest.Server) (*Service, *localstate.Store) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	store, err := localstate.New()
	if err != nil {
		t.Fatalf("localstate.New: %v", err)
	}
	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(server.URL, server.URL, server.URL))
	return New(wire, store, zerolog.Nop()), store
}

func TestLoginDecryptsMasterKeyAndPersistsSession(t *testing.T) {
	derived, err := cryptox.DeriveKeys("hunter2", cryptox.AuthV2, "0123456789012345678901234567890123456789012345678901234567890123")
	if err != nil {
		t.Fatalf("derive keys: %v", err)
	}
	envelope, err := cryptox.EncryptMetadata("plaintext-master-key", derived.MasterKey)
	if err != nil {
		t.Fatalf("encrypt metadata: %v", err)
	}

	server := fakeServer(t, envelope, false)
	defer server.Close()

	svc, store := newTestService(t, server)

	creds, err := svc.Login(context.Background(), "user@example.com", "hunter2", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if creds.APIKey != "test-api-key" {
		t.Fatalf("api key = %q", creds.APIKey)
	}
	if creds.BaseFolderUUID != "base-folder-uuid" {
		t.Fatalf("base folder = %q", creds.BaseFolderUUID)
	}
	if creds.MasterKeys != "plaintext-master-key" {
		t.Fatalf("master keys = %q, want decrypted plaintext", creds.MasterKeys)
	}

	saved, err := store.ReadCredentials()
	if err != nil {
		t.Fatalf("ReadCredentials: %v", err)
	}
	if saved != creds {
		t.Fatalf("persisted credentials mismatch: %+v vs %+v", saved, creds)
	}
}

func TestLoginPropagatesNeed2FA(t *testing.T) {
	server := fakeServer(t, "", true)
	defer server.Close()

	svc, _ := newTestService(t, server)

	_, err := svc.Login(context.Background(), "user@example.com", "hunter2", "")
	if !errors.Is(err, model.ErrNeed2FA) {
		t.Fatalf("expected ErrNeed2FA, got %v", err)
	}
}

func TestRestoreSessionRequiresValidCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store, err := localstate.New()
	if err != nil {
		t.Fatalf("localstate.New: %v", err)
	}
	svc := New(wireclient.New(zerolog.Nop()), store, zerolog.Nop())

	if _, err := svc.RestoreSession(); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no saved session, got %v", err)
	}

	if err := store.SaveCredentials(model.Credentials{Email: "a@b.com"}); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	if _, err := svc.RestoreSession(); !errors.Is(err, model.ErrAuth) {
		t.Fatalf("expected ErrAuth for incomplete credentials, got %v", err)
	}
}
