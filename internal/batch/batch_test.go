package batch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/cryptox"
	"github.com/filen-go/filen-cli/internal/localstate"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/resolver"
	"github.com/filen-go/filen-cli/internal/transfer"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"

func TestGenerateIDIsStableAndOrderSensitive(t *testing.T) {
	a := GenerateID(model.OperationUpload, []string{"a.txt", "b.txt"}, "/remote")
	b := GenerateID(model.OperationUpload, []string{"a.txt", "b.txt"}, "/remote")
	if a != b {
		t.Fatalf("GenerateID not stable: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d: %q", len(a), a)
	}
	c := GenerateID(model.OperationUpload, []string{"b.txt", "a.txt"}, "/remote")
	if a == c {
		t.Fatal("expected source order to affect the id")
	}
}

func TestShouldIncludeFilters(t *testing.T) {
	cases := []struct {
		name             string
		include, exclude []string
		want             bool
	}{
		{"report.txt", nil, nil, true},
		{"report.txt", []string{"*.csv"}, nil, false},
		{"report.csv", []string{"*.csv"}, nil, true},
		{"report.csv", nil, []string{"*.csv"}, false},
		{"report.txt", []string{"*.txt", "*.csv"}, []string{"report.*"}, false},
	}
	for _, tc := range cases {
		got := shouldInclude(tc.name, tc.include, tc.exclude)
		if got != tc.want {
			t.Errorf("shouldInclude(%q, %v, %v) = %v, want %v", tc.name, tc.include, tc.exclude, got, tc.want)
		}
	}
}

func TestBuildUploadStateWalksRecursively(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "a")
	mustWrite(t, filepath.Join(root, "sub", "b.txt"), "b")
	mustWrite(t, filepath.Join(root, "sub", "skip.log"), "skip")

	o := &Orchestrator{}
	state, err := o.BuildUploadState(UploadOptions{
		Sources: []string{root}, TargetPath: "/dest", Recursive: true, Exclude: []string{"*.log"},
	})
	if err != nil {
		t.Fatalf("BuildUploadState: %v", err)
	}
	if len(state.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d: %+v", len(state.Tasks), state.Tasks)
	}
	for _, task := range state.Tasks {
		if task.Status != model.StatusPending || task.LastChunk != -1 {
			t.Fatalf("unexpected initial task state: %+v", task)
		}
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func encryptName(t *testing.T, name string) string {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		t.Fatalf("marshal name: %v", err)
	}
	enc, err := cryptox.EncryptMetadata(string(payload), testMasterKey)
	if err != nil {
		t.Fatalf("encrypt name: %v", err)
	}
	return enc
}

func encryptFileMeta(t *testing.T, meta model.FileMeta) string {
	t.Helper()
	payload, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	enc, err := cryptox.EncryptMetadata(string(payload), testMasterKey)
	if err != nil {
		t.Fatalf("encrypt meta: %v", err)
	}
	return enc
}

// TestRunUploadSkipsExistingRemoteFile verifies the skip conflict policy:
// when a file of the same name already exists at the destination, the
// task is marked skipped_conflict and no upload is attempted.
func TestRunUploadSkipsExistingRemoteFile(t *testing.T) {
	existingMeta := encryptFileMeta(t, model.FileMeta{Name: "a.txt", Size: 1})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/dir/content":
			w.Write([]byte(`{"status":true,"message":"","data":{"folders":[],"uploads":[{"uuid":"existing-uuid","parent":"root","metadata":` + mustJSON(t, existingMeta) + `,"chunks":"1","region":"r1","bucket":"b1"}]}}`))
		case "/v3/upload":
			t.Fatal("should not attempt to upload a conflicting file under the skip policy")
		default:
			w.Write([]byte(`{"status":true,"message":"","data":{}}`))
		}
	}))
	defer server.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(server.URL, server.URL, server.URL))
	res := resolver.New(wire, "user@example.com", []string{testMasterKey}, "root")
	engine := transfer.New(wire, "user@example.com")

	t.Setenv("HOME", t.TempDir())
	store, err := localstate.New()
	if err != nil {
		t.Fatalf("localstate.New: %v", err)
	}
	o := New(res, engine, store, "user@example.com")

	localPath := filepath.Join(t.TempDir(), "a.txt")
	mustWrite(t, localPath, "hello")

	state := &model.BatchState{
		OperationType: model.OperationUpload,
		Tasks: []*model.Task{
			{LocalPath: localPath, RemotePath: "/a.txt", Status: model.StatusPending, LastChunk: -1},
		},
	}

	if err := o.RunUpload(context.Background(), "test-batch", state, testMasterKey, UploadOptions{Conflict: ConflictSkip}, nil); err != nil {
		t.Fatalf("RunUpload: %v", err)
	}
	if state.Tasks[0].Status != model.StatusSkippedConflict {
		t.Fatalf("status = %v, want skipped_conflict", state.Tasks[0].Status)
	}
}

func mustJSON(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal string: %v", err)
	}
	return string(b)
}
