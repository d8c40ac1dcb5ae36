package webdavfs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/transfer"
)

// writableFile buffers a PUT's bytes to a local temp file and uploads
// the whole file on Close, mirroring the original client's
// buffer-then-hand-off bridge between a streaming HTTP body and a
// chunked upload API.
type writableFile struct {
	fs         *FS
	ctx        context.Context
	parentUUID string
	targetName string

	temp   *os.File
	closed bool
}

func (f *FS) openWriter(ctx context.Context, name string) (*writableFile, error) {
	parentPath, base := splitParent(name)
	if base == "" {
		return nil, fmt.Errorf("webdavfs: open: invalid path %q", name)
	}
	parent, err := f.resolveOrRoot(ctx, parentPath)
	if err != nil {
		return nil, err
	}

	temp, err := os.CreateTemp("", "filen-cli-webdav-*")
	if err != nil {
		return nil, &model.FatalError{Cause: fmt.Errorf("webdavfs: create temp file: %w", err)}
	}

	return &writableFile{fs: f, ctx: ctx, parentUUID: parent.UUID, targetName: base, temp: temp}, nil
}

func (w *writableFile) Write(p []byte) (int, error) { return w.temp.Write(p) }

func (w *writableFile) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("webdavfs: file opened write-only")
}

func (w *writableFile) Seek(offset int64, whence int) (int64, error) {
	return w.temp.Seek(offset, whence)
}

func (w *writableFile) Readdir(count int) ([]fs.FileInfo, error) {
	return nil, fmt.Errorf("webdavfs: %q is not a directory", w.targetName)
}

func (w *writableFile) Stat() (fs.FileInfo, error) {
	info, err := w.temp.Stat()
	if err != nil {
		return nil, err
	}
	return tempFileInfo{name: w.targetName, size: info.Size(), modTime: info.ModTime()}, nil
}

// Close flushes the buffered bytes to the server as a new file upload
// and removes the temp file regardless of upload outcome.
func (w *writableFile) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	tempPath := w.temp.Name()
	defer os.Remove(tempPath)

	if err := w.temp.Close(); err != nil {
		return fmt.Errorf("webdavfs: close temp file: %w", err)
	}

	_, err := w.fs.engine.Upload(w.ctx, transfer.UploadRequest{
		LocalPath: tempPath, ParentUUID: w.parentUUID, TargetFilename: w.targetName,
		MasterKey: w.fs.masterKey, PreserveTimestamps: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("webdavfs: upload %s: %w", w.targetName, err)
	}
	w.fs.resolver.Invalidate(w.parentUUID)
	return nil
}

// tempFileInfo reports the in-progress upload's size before the server
// has assigned it a node of its own.
type tempFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (i tempFileInfo) Name() string       { return filepath.Base(i.name) }
func (i tempFileInfo) Size() int64        { return i.size }
func (i tempFileInfo) Mode() fs.FileMode  { return 0o644 }
func (i tempFileInfo) ModTime() time.Time { return i.modTime }
func (i tempFileInfo) IsDir() bool        { return false }
func (i tempFileInfo) Sys() any           { return nil }
