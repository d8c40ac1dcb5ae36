package fsops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/cryptox"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/resolver"
	"github.com/filen-go/filen-cli/internal/transfer"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"

func encryptMeta(t *testing.T, v any) string {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	enc, err := cryptox.EncryptMetadata(string(payload), testMasterKey)
	if err != nil {
		t.Fatalf("encrypt metadata: %v", err)
	}
	return enc
}

func mustJSON(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal string: %v", err)
	}
	return string(b)
}

// TestCopyFileDownloadsAndReuploads exercises the full copy path: resolve
// the source file, download its single chunk from the ingest server, and
// upload it back under the new parent, confirming there is no
// server-side copy call anywhere in the sequence.
func TestCopyFileDownloadsAndReuploads(t *testing.T) {
	fileKey, err := cryptox.NewFileKey()
	if err != nil {
		t.Fatalf("NewFileKey: %v", err)
	}
	plain := []byte("hello copy")
	encrypted, err := cryptox.EncryptChunk(plain, []byte(fileKey))
	if err != nil {
		t.Fatalf("EncryptChunk: %v", err)
	}
	fileMeta := encryptMeta(t, model.FileMeta{Name: "source.txt", Size: int64(len(plain)), Key: fileKey})

	var uploadedDone bool
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/dir/content":
			w.Write([]byte(`{"status":true,"message":"","data":{"folders":[],"uploads":[{"uuid":"file-uuid","parent":"root","metadata":` + mustJSON(t, fileMeta) + `,"chunks":"1","region":"r1","bucket":"b1"}]}}`))
		case "/v3/upload/done":
			uploadedDone = true
			w.Write([]byte(`{"status":true,"message":"","data":{}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer api.Close()

	ingest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v3/upload":
			idx, _ := strconv.Atoi(r.URL.Query().Get("index"))
			if idx != 0 {
				t.Fatalf("unexpected chunk index %d", idx)
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.Write(encrypted)
		}
	}))
	defer ingest.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(api.URL, ingest.URL, ingest.URL))
	res := resolver.New(wire, "user@example.com", []string{testMasterKey}, "root")
	engine := transfer.New(wire, "user@example.com")
	svc := New(res, engine)

	result, err := svc.CopyFile(context.Background(), "/source.txt", "dest-parent-uuid", "renamed.txt", testMasterKey)
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if result.Size != int64(len(plain)) {
		t.Fatalf("size = %d, want %d", result.Size, len(plain))
	}
	if !uploadedDone {
		t.Fatal("expected the copy to finish with an upload, not a server-side copy")
	}
}

func TestCopyFileRejectsFolderSource(t *testing.T) {
	folderName := encryptMeta(t, map[string]string{"name": "docs"})
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"","data":{"folders":[{"uuid":"docs-uuid","parent":"root","name":` + mustJSON(t, folderName) + `}],"uploads":[]}}`))
	}))
	defer api.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(api.URL, api.URL, api.URL))
	res := resolver.New(wire, "user@example.com", []string{testMasterKey}, "root")
	engine := transfer.New(wire, "user@example.com")
	svc := New(res, engine)

	_, err := svc.CopyFile(context.Background(), "/docs", "dest-parent-uuid", "", testMasterKey)
	if err == nil {
		t.Fatal("expected an error copying a folder")
	}
}
