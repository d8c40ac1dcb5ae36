// Package fsops implements the single-item filesystem operations that
// don't belong to the batch orchestrator: copying a file by downloading
// it to a temporary local file and re-uploading it under a new parent,
// the same strategy the original client uses since the server has no
// native server-side copy (spec §4.6).
package fsops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/resolver"
	"github.com/filen-go/filen-cli/internal/transfer"
)

// Service bundles the resolver and transfer engine needed for
// operations that touch both path resolution and file bytes.
type Service struct {
	resolver *resolver.Resolver
	engine   *transfer.Engine
}

// New builds a Service bound to one logged-in account's resolver and
// transfer engine.
func New(res *resolver.Resolver, engine *transfer.Engine) *Service {
	return &Service{resolver: res, engine: engine}
}

// CopyFile copies the file at srcPath into destParentUUID, optionally
// renaming it to newName, by downloading it to a temporary file and
// uploading the temporary copy as a new file (spec §4.6's copy
// operation; there is no native server-side copy).
func (s *Service) CopyFile(ctx context.Context, srcPath, destParentUUID, newName, masterKey string) (transfer.UploadResult, error) {
	node, err := s.resolver.Resolve(ctx, srcPath)
	if err != nil {
		return transfer.UploadResult{}, err
	}
	if node.Type != model.NodeFile {
		return transfer.UploadResult{}, fmt.Errorf("fsops: %q is a folder, not a file", srcPath)
	}

	targetName := newName
	if targetName == "" {
		targetName = node.Name
	}

	tempDir, err := os.MkdirTemp("", "filen-cli-cp-")
	if err != nil {
		return transfer.UploadResult{}, &model.FatalError{Cause: fmt.Errorf("fsops: create temp dir: %w", err)}
	}
	defer os.RemoveAll(tempDir)

	tempPath := filepath.Join(tempDir, targetName)
	handle := transfer.FileHandle{
		UUID: node.UUID, Region: node.Region, Bucket: node.Bucket,
		ChunkCount: node.ChunkCount, FileKey: node.Meta.Key, Size: node.Meta.Size,
	}
	if err := s.engine.DownloadToPath(ctx, handle, tempPath, nil); err != nil {
		return transfer.UploadResult{}, fmt.Errorf("fsops: download for copy: %w", err)
	}

	result, err := s.engine.Upload(ctx, transfer.UploadRequest{
		LocalPath: tempPath, ParentUUID: destParentUUID, TargetFilename: targetName, MasterKey: masterKey,
	}, nil)
	if err != nil {
		return transfer.UploadResult{}, fmt.Errorf("fsops: upload for copy: %w", err)
	}
	return result, nil
}
