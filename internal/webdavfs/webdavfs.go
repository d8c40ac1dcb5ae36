// Package webdavfs adapts the resolver and transfer engine to
// golang.org/x/net/webdav's FileSystem and File interfaces, so the
// encrypted drive can be mounted as a WebDAV share (spec §4.7). Writes
// are buffered to a local temp file and uploaded whole on Close, the
// same strategy the original client used to bridge a streaming PUT onto
// a chunked upload API.
package webdavfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/net/webdav"

	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/resolver"
	"github.com/filen-go/filen-cli/internal/transfer"
)

// FS implements webdav.FileSystem over one logged-in account's
// resolver and transfer engine.
type FS struct {
	resolver  *resolver.Resolver
	engine    *transfer.Engine
	masterKey string
}

// New builds an FS bound to one account. masterKey is used for every
// write operation (new folders, renames, new file uploads); reads work
// against whichever of the account's historical master keys can decrypt
// a given node (spec §4.4).
func New(res *resolver.Resolver, engine *transfer.Engine, masterKey string) *FS {
	return &FS{resolver: res, engine: engine, masterKey: masterKey}
}

func cleanPath(name string) string {
	return "/" + strings.Trim(path.Clean("/"+name), "/")
}

func splitParent(name string) (parentPath, base string) {
	clean := cleanPath(name)
	if clean == "/" {
		return "/", ""
	}
	idx := strings.LastIndex(clean, "/")
	parentPath = clean[:idx]
	if parentPath == "" {
		parentPath = "/"
	}
	base = clean[idx+1:]
	return parentPath, base
}

func (f *FS) resolveOrRoot(ctx context.Context, name string) (model.Node, error) {
	clean := cleanPath(name)
	if clean == "/" {
		return model.Node{Type: model.NodeFolder, UUID: f.resolver.RootUUID(), Name: "/"}, nil
	}
	return f.resolver.Resolve(ctx, clean)
}

// Mkdir creates one folder. The parent must already exist (spec §4.7's
// MKCOL semantics: a single-level collection creation).
func (f *FS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	parentPath, base := splitParent(name)
	if base == "" {
		return fmt.Errorf("webdavfs: mkdir: invalid path %q", name)
	}
	parent, err := f.resolveOrRoot(ctx, parentPath)
	if err != nil {
		return err
	}
	_, err = f.resolver.CreateFolder(ctx, base, parent.UUID, f.masterKey)
	return err
}

// OpenFile opens name for reading, or for writing when flag carries
// os.O_CREATE (spec §4.7's GET/PUT handling).
func (f *FS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 || flag&os.O_CREATE != 0 {
		return f.openWriter(ctx, name)
	}

	node, err := f.resolveOrRoot(ctx, name)
	if err != nil {
		return nil, err
	}
	if node.Type == model.NodeFolder {
		return &dirFile{fs: f, node: node, ctx: ctx}, nil
	}

	handle := transfer.FileHandle{
		UUID: node.UUID, Region: node.Region, Bucket: node.Bucket,
		ChunkCount: node.ChunkCount, FileKey: node.Meta.Key, Size: node.Meta.Size,
	}
	return &readFile{node: node, reader: transfer.NewSeekableReader(ctx, f.engine, handle)}, nil
}

// RemoveAll moves name (file or folder) into the trash (spec §4.7's
// DELETE handling; the original client never hard-deletes from WebDAV).
func (f *FS) RemoveAll(ctx context.Context, name string) error {
	node, err := f.resolveOrRoot(ctx, name)
	if err != nil {
		return err
	}
	if err := f.resolver.Trash(ctx, node); err != nil {
		return err
	}
	return nil
}

// Rename moves and/or renames a node. A change of parent folder issues a
// move; a change of base name issues a rename; both may apply at once
// (spec §4.7's MOVE handling).
func (f *FS) Rename(ctx context.Context, oldName, newName string) error {
	node, err := f.resolveOrRoot(ctx, oldName)
	if err != nil {
		return err
	}

	oldParentPath, _ := splitParent(oldName)
	newParentPath, newBase := splitParent(newName)

	if oldParentPath != newParentPath {
		newParent, err := f.resolveOrRoot(ctx, newParentPath)
		if err != nil {
			return err
		}
		if err := f.resolver.Move(ctx, node, newParent.UUID); err != nil {
			return err
		}
		node.Parent = newParent.UUID
	}
	if newBase != "" && newBase != node.Name {
		if err := f.resolver.Rename(ctx, node, newBase, f.masterKey); err != nil {
			return err
		}
	}
	return nil
}

// Stat returns the node's metadata as an os.FileInfo.
func (f *FS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	node, err := f.resolveOrRoot(ctx, name)
	if err != nil {
		return nil, err
	}
	return nodeInfo{node}, nil
}

// nodeInfo adapts a model.Node to fs.FileInfo.
type nodeInfo struct {
	node model.Node
}

func (i nodeInfo) Name() string { return i.node.Name }
func (i nodeInfo) Size() int64 {
	if i.node.Type == model.NodeFile {
		return i.node.Meta.Size
	}
	return 0
}
func (i nodeInfo) Mode() fs.FileMode {
	if i.node.Type == model.NodeFolder {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i nodeInfo) ModTime() time.Time { return i.node.ModTime() }
func (i nodeInfo) IsDir() bool        { return i.node.Type == model.NodeFolder }
func (i nodeInfo) Sys() any           { return nil }

// dirFile is a read-only directory handle supporting Readdir.
type dirFile struct {
	fs   *FS
	node model.Node
	ctx  context.Context

	entries []fs.FileInfo
	listed  bool
}

func (d *dirFile) ensureListed() error {
	if d.listed {
		return nil
	}
	folders, files, err := d.fs.resolver.List(d.ctx, d.node.UUID)
	if err != nil {
		return err
	}
	d.entries = make([]fs.FileInfo, 0, len(folders)+len(files))
	for _, n := range folders {
		d.entries = append(d.entries, nodeInfo{n})
	}
	for _, n := range files {
		d.entries = append(d.entries, nodeInfo{n})
	}
	d.listed = true
	return nil
}

func (d *dirFile) Readdir(count int) ([]fs.FileInfo, error) {
	if err := d.ensureListed(); err != nil {
		return nil, err
	}
	if count <= 0 {
		out := d.entries
		d.entries = nil
		return out, nil
	}
	if len(d.entries) == 0 {
		return nil, io.EOF
	}
	n := count
	if n > len(d.entries) {
		n = len(d.entries)
	}
	out := d.entries[:n]
	d.entries = d.entries[n:]
	return out, nil
}

func (d *dirFile) Stat() (fs.FileInfo, error)              { return nodeInfo{d.node}, nil }
func (d *dirFile) Read(p []byte) (int, error)               { return 0, fmt.Errorf("webdavfs: cannot read a directory") }
func (d *dirFile) Seek(offset int64, whence int) (int64, error) { return 0, fmt.Errorf("webdavfs: cannot seek a directory") }
func (d *dirFile) Write(p []byte) (int, error)               { return 0, fmt.Errorf("webdavfs: cannot write a directory") }
func (d *dirFile) Close() error                              { return nil }

// readFile wraps a SeekableReader to satisfy webdav.File for GET/range
// requests.
type readFile struct {
	node   model.Node
	reader *transfer.SeekableReader
}

func (r *readFile) Read(p []byte) (int, error)                 { return r.reader.Read(p) }
func (r *readFile) Seek(offset int64, whence int) (int64, error) { return r.reader.Seek(offset, whence) }
func (r *readFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("webdavfs: file opened read-only")
}
func (r *readFile) Close() error                 { return nil }
func (r *readFile) Stat() (fs.FileInfo, error)   { return nodeInfo{r.node}, nil }
func (r *readFile) Readdir(count int) ([]fs.FileInfo, error) {
	return nil, fmt.Errorf("webdavfs: %q is not a directory", r.node.Name)
}
