package transfer

import (
	"crypto/sha512"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestVerifyUploadMatchesHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	data := []byte("hello verify")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum := sha512.Sum512(data)
	ok, err := VerifyUpload(path, hex.EncodeToString(sum[:]))
	if err != nil {
		t.Fatalf("VerifyUpload: %v", err)
	}
	if !ok {
		t.Fatal("expected hashes to match")
	}
}

func TestVerifyUploadMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err := VerifyUpload(path, "not-a-real-hash")
	if err != nil {
		t.Fatalf("VerifyUpload: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestVerifyUploadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err := VerifyUpload(path, "")
	if err != nil {
		t.Fatalf("VerifyUpload: %v", err)
	}
	if !ok {
		t.Fatal("expected empty file with no remote hash to verify")
	}
}
