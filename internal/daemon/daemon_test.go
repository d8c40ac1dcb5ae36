package daemon

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/localstate"
)

func newTestStore(t *testing.T) *localstate.Store {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	store, err := localstate.New()
	if err != nil {
		t.Fatalf("localstate.New: %v", err)
	}
	return store
}

func TestIsRunningFalseWithoutPIDFile(t *testing.T) {
	store := newTestStore(t)
	m := New(store, zerolog.Nop())
	if _, running := m.IsRunning(); running {
		t.Fatal("expected no daemon running without a pid file")
	}
}

func TestIsRunningTrueForOwnProcess(t *testing.T) {
	store := newTestStore(t)
	m := New(store, zerolog.Nop())

	if err := store.SaveWebDAVPID(os.Getpid()); err != nil {
		t.Fatalf("SaveWebDAVPID: %v", err)
	}
	pid, running := m.IsRunning()
	if !running || pid != os.Getpid() {
		t.Fatalf("pid=%d running=%v, want self pid running", pid, running)
	}
}

func TestIsRunningFalseForDeadPID(t *testing.T) {
	store := newTestStore(t)
	m := New(store, zerolog.Nop())

	// PID 1 belongs to init in a container and is never this test
	// process; a very high unlikely-to-exist PID stands in for "dead".
	if err := store.SaveWebDAVPID(999999); err != nil {
		t.Fatalf("SaveWebDAVPID: %v", err)
	}
	if _, running := m.IsRunning(); running {
		t.Fatal("expected pid 999999 to not be running")
	}
}

func TestTestReturnsErrorWhenNothingListening(t *testing.T) {
	store := newTestStore(t)
	m := New(store, zerolog.Nop())

	if err := m.Test(context.Background(), "http", 1, "filen", "filen-webdav"); err == nil {
		t.Fatal("expected connection error against an unbound port")
	}
}

func TestTestSucceedsAgainstLiveServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
	}))
	defer server.Close()

	store := newTestStore(t)
	m := New(store, zerolog.Nop())

	_, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split listener addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	if err := m.Test(context.Background(), "http", port, "filen", "filen-webdav"); err != nil {
		t.Fatalf("Test: %v", err)
	}
}

func TestEnsureSSLCertGeneratesAndReuses(t *testing.T) {
	store := newTestStore(t)
	m := New(store, zerolog.Nop())

	certPath, keyPath, err := m.EnsureSSLCert()
	if err != nil {
		t.Fatalf("EnsureSSLCert: %v", err)
	}
	if _, err := os.Stat(certPath); err != nil {
		t.Fatalf("cert file missing: %v", err)
	}
	if _, err := os.Stat(keyPath); err != nil {
		t.Fatalf("key file missing: %v", err)
	}

	certData, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatalf("read cert: %v", err)
	}

	certPath2, _, err := m.EnsureSSLCert()
	if err != nil {
		t.Fatalf("second EnsureSSLCert: %v", err)
	}
	certData2, err := os.ReadFile(certPath2)
	if err != nil {
		t.Fatalf("read cert again: %v", err)
	}
	if string(certData) != string(certData2) {
		t.Fatal("expected the existing valid certificate to be reused, not regenerated")
	}
}
