package resolver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/cryptox"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"

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

func TestResolveFindsNestedFolderAndFile(t *testing.T) {
	docsName := encryptName(t, "docs")
	fileMeta := encryptFileMeta(t, model.FileMeta{Name: "report.txt", Size: 42})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UUID string `json:"uuid"`
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)

		switch req.UUID {
		case "root":
			w.Write([]byte(`{"status":true,"message":"","data":{"folders":[{"uuid":"docs-uuid","parent":"root","name":` + mustJSON(t, docsName) + `}],"uploads":[]}}`))
		case "docs-uuid":
			w.Write([]byte(`{"status":true,"message":"","data":{"folders":[],"uploads":[{"uuid":"file-uuid","parent":"docs-uuid","metadata":` + mustJSON(t, fileMeta) + `,"chunks":"1","region":"r1","bucket":"b1"}]}}`))
		default:
			w.Write([]byte(`{"status":true,"message":"","data":{"folders":[],"uploads":[]}}`))
		}
	}))
	defer server.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(server.URL, server.URL, server.URL))
	res := New(wire, "user@example.com", []string{testMasterKey}, "root")

	node, err := res.Resolve(context.Background(), "/docs/report.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if node.Type != model.NodeFile || node.UUID != "file-uuid" {
		t.Fatalf("unexpected node: %+v", node)
	}
	if node.Meta.Size != 42 {
		t.Fatalf("meta size = %d, want 42", node.Meta.Size)
	}
}

func TestResolveMissingSegmentReturnsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"","data":{"folders":[],"uploads":[]}}`))
	}))
	defer server.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(server.URL, server.URL, server.URL))
	res := New(wire, "user@example.com", []string{testMasterKey}, "root")

	_, err := res.Resolve(context.Background(), "/nope")
	var nfe *model.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestListCachesWithinTTL(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":true,"message":"","data":{"folders":[],"uploads":[]}}`))
	}))
	defer server.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(server.URL, server.URL, server.URL))
	res := New(wire, "user@example.com", []string{testMasterKey}, "root")

	if _, _, err := res.List(context.Background(), "root"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, _, err := res.List(context.Background(), "root"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (second List should hit cache)", calls)
	}

	res.Invalidate("root")
	if _, _, err := res.List(context.Background(), "root"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 after invalidation", calls)
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
