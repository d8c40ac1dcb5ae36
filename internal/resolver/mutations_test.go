package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

func TestMoveInvalidatesBothParents(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":true,"message":"","data":{}}`))
	}))
	defer server.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(server.URL, server.URL, server.URL))
	res := New(wire, "user@example.com", []string{testMasterKey}, "root")
	res.listings["old-parent"] = listingEntry{}
	res.listings["new-parent"] = listingEntry{}

	node := model.Node{Type: model.NodeFile, UUID: "file-uuid", Parent: "old-parent"}
	if err := res.Move(context.Background(), node, "new-parent"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if gotPath != "/v3/file/move" {
		t.Fatalf("path = %q", gotPath)
	}
	if _, ok := res.listings["old-parent"]; ok {
		t.Fatal("expected old parent cache to be invalidated")
	}
	if _, ok := res.listings["new-parent"]; ok {
		t.Fatal("expected new parent cache to be invalidated")
	}
}

func TestRenameFolderUsesDirEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":true,"message":"","data":{}}`))
	}))
	defer server.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(server.URL, server.URL, server.URL))
	res := New(wire, "user@example.com", []string{testMasterKey}, "root")

	node := model.Node{Type: model.NodeFolder, UUID: "dir-uuid", Parent: "root"}
	if err := res.Rename(context.Background(), node, "renamed", testMasterKey); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if gotPath != "/v3/dir/rename" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestTrashFileUsesFileEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":true,"message":"","data":{}}`))
	}))
	defer server.Close()

	wire := wireclient.New(zerolog.Nop(), wireclient.WithBaseURLs(server.URL, server.URL, server.URL))
	res := New(wire, "user@example.com", []string{testMasterKey}, "root")

	node := model.Node{Type: model.NodeFile, UUID: "file-uuid", Parent: "root"}
	if err := res.Trash(context.Background(), node); err != nil {
		t.Fatalf("Trash: %v", err)
	}
	if gotPath != "/v3/file/trash" {
		t.Fatalf("path = %q", gotPath)
	}
}
