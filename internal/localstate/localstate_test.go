package localstate

import (
	"errors"
	"testing"

	"github.com/filen-go/filen-cli/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	store, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestCredentialsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.ReadCredentials(); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any save, got %v", err)
	}

	creds := model.Credentials{
		Email:          "user@example.com",
		APIKey:         "abc123",
		MasterKeys:     "key1|key2",
		BaseFolderUUID: "folder-uuid",
		UserID:         "42",
	}
	if err := store.SaveCredentials(creds); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	got, err := store.ReadCredentials()
	if err != nil {
		t.Fatalf("ReadCredentials: %v", err)
	}
	if got != creds {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, creds)
	}

	if err := store.ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}
	if _, err := store.ReadCredentials(); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestBatchStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	const id = "abc123"

	if _, err := store.LoadBatchState(id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown batch, got %v", err)
	}

	state := &model.BatchState{
		OperationType:    model.OperationUpload,
		TargetRemotePath: "/documents",
		Tasks: []*model.Task{
			{LocalPath: "a.txt", RemotePath: "/documents/a.txt", Status: model.StatusPending},
		},
	}
	if err := store.SaveBatchState(id, state); err != nil {
		t.Fatalf("SaveBatchState: %v", err)
	}

	got, err := store.LoadBatchState(id)
	if err != nil {
		t.Fatalf("LoadBatchState: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].RemotePath != "/documents/a.txt" {
		t.Fatalf("unexpected loaded state: %+v", got)
	}

	if err := store.DeleteBatchState(id); err != nil {
		t.Fatalf("DeleteBatchState: %v", err)
	}
	if _, err := store.LoadBatchState(id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWebDAVConfigDefaultsWhenAbsent(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.ReadWebDAVConfig()
	if err != nil {
		t.Fatalf("ReadWebDAVConfig: %v", err)
	}
	if cfg != DefaultWebDAVConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	cfg.Port = 9090
	if err := store.SaveWebDAVConfig(cfg); err != nil {
		t.Fatalf("SaveWebDAVConfig: %v", err)
	}
	got, err := store.ReadWebDAVConfig()
	if err != nil {
		t.Fatalf("ReadWebDAVConfig after save: %v", err)
	}
	if got.Port != 9090 {
		t.Fatalf("port = %d, want 9090", got.Port)
	}
}

func TestWebDAVPIDRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.ReadWebDAVPID(); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}

	if err := store.SaveWebDAVPID(4242); err != nil {
		t.Fatalf("SaveWebDAVPID: %v", err)
	}
	pid, err := store.ReadWebDAVPID()
	if err != nil {
		t.Fatalf("ReadWebDAVPID: %v", err)
	}
	if pid != 4242 {
		t.Fatalf("pid = %d, want 4242", pid)
	}

	if err := store.ClearWebDAVPID(); err != nil {
		t.Fatalf("ClearWebDAVPID: %v", err)
	}
	if _, err := store.ReadWebDAVPID(); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}
