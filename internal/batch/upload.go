package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/transfer"
)

// UploadOptions configures BuildUploadState and RunUpload (spec §4.6's
// upload batch operation).
type UploadOptions struct {
	Sources            []string
	TargetPath         string
	Recursive          bool
	Conflict           ConflictPolicy
	PreserveTimestamps bool
	Include            []string
	Exclude            []string
}

// BuildUploadState expands opts.Sources into a flat task list rooted at
// opts.TargetPath. Directories are only descended into when Recursive is
// set; each regular file becomes one pending task carrying its eventual
// remote path (spec §4.6).
func (o *Orchestrator) BuildUploadState(opts UploadOptions) (*model.BatchState, error) {
	expanded, err := expandSources(opts.Sources)
	if err != nil {
		return nil, fmt.Errorf("batch: expand sources: %w", err)
	}

	var tasks []*model.Task
	for _, item := range expanded {
		info, err := os.Stat(item)
		if err != nil {
			continue // a glob match that vanished before we could stat it
		}

		if info.IsDir() {
			if !opts.Recursive {
				continue
			}
			base := filepath.Dir(item)
			walkErr := filepath.Walk(item, func(path string, fi os.FileInfo, err error) error {
				if err != nil || fi.IsDir() {
					return err
				}
				if !shouldInclude(filepath.Base(path), opts.Include, opts.Exclude) {
					return nil
				}
				rel, err := filepath.Rel(base, path)
				if err != nil {
					return err
				}
				remotePath := filepath.ToSlash(filepath.Join(opts.TargetPath, rel))
				tasks = append(tasks, &model.Task{LocalPath: path, RemotePath: remotePath, Status: model.StatusPending, LastChunk: -1})
				return nil
			})
			if walkErr != nil {
				return nil, fmt.Errorf("batch: walk %s: %w", item, walkErr)
			}
			continue
		}

		name := filepath.Base(item)
		if !shouldInclude(name, opts.Include, opts.Exclude) {
			continue
		}
		remotePath := filepath.ToSlash(filepath.Join(opts.TargetPath, name))
		tasks = append(tasks, &model.Task{LocalPath: item, RemotePath: remotePath, Status: model.StatusPending, LastChunk: -1})
	}

	return &model.BatchState{
		OperationType:    model.OperationUpload,
		TargetRemotePath: opts.TargetPath,
		Tasks:            tasks,
	}, nil
}

// RunUpload executes every not-yet-terminal task in state, invoking
// onProgress after each task and persisting state under batchID after
// every task (and periodically mid-upload, via the transfer engine's
// progress callback) so the run can resume if interrupted (spec §4.6).
func (o *Orchestrator) RunUpload(ctx context.Context, batchID string, state *model.BatchState, masterKey string, opts UploadOptions, onProgress func(Progress)) error {
	for i, task := range state.Tasks {
		if task.Status.IsTerminal() {
			continue
		}

		if _, err := os.Stat(task.LocalPath); err != nil {
			task.Status = model.StatusSkippedMissing
			o.saveState(batchID, state)
			if onProgress != nil {
				onProgress(Progress{Index: i, Total: len(state.Tasks), Task: task})
			}
			continue
		}

		remoteParent := filepath.ToSlash(filepath.Dir(task.RemotePath))
		parentUUID, err := o.resolver.CreateFolderRecursive(ctx, remoteParent, masterKey)
		if err != nil {
			task.Status = model.StatusErrorParent
			o.saveState(batchID, state)
			if onProgress != nil {
				onProgress(Progress{Index: i, Total: len(state.Tasks), Task: task})
			}
			continue
		}

		remoteName := filepath.Base(task.RemotePath)
		if task.FileUUID == "" {
			if skip, err := o.checkUploadConflict(ctx, parentUUID, remoteName, opts.Conflict); err != nil {
				task.Status = model.StatusErrorUpload
				o.saveState(batchID, state)
				continue
			} else if skip {
				task.Status = model.StatusSkippedConflict
				o.saveState(batchID, state)
				if onProgress != nil {
					onProgress(Progress{Index: i, Total: len(state.Tasks), Task: task})
				}
				continue
			}
		}

		task.Status = model.StatusUploading
		o.saveState(batchID, state)

		resumeFrom := 0
		if task.LastChunk >= 0 {
			resumeFrom = task.LastChunk + 1
		}

		req := transfer.UploadRequest{
			LocalPath: task.LocalPath, ParentUUID: parentUUID, TargetFilename: remoteName,
			MasterKey: masterKey, PreserveTimestamps: opts.PreserveTimestamps,
			FileUUID: task.FileUUID, UploadKey: task.UploadKey, ResumeFromChunk: resumeFrom,
		}

		_, err = o.engine.Upload(ctx, req, func(chunkIndex, totalChunks int, bytesUploaded, totalBytes int64) {
			task.LastChunk = chunkIndex - 1
			if chunkIndex%10 == 0 {
				o.saveState(batchID, state)
			}
			if onProgress != nil {
				onProgress(Progress{Index: i, Total: len(state.Tasks), Task: task, BytesDone: bytesUploaded, BytesTotal: totalBytes})
			}
		})

		var chunkErr *model.ChunkFailedError
		switch {
		case err == nil:
			task.Status = model.StatusCompleted
			task.FileUUID = ""
			task.UploadKey = ""
			task.LastChunk = -1
		case errors.As(err, &chunkErr):
			task.FileUUID = chunkErr.FileUUID
			task.UploadKey = chunkErr.UploadKey
			task.LastChunk = chunkErr.LastSuccessfulChunk
			task.Status = model.StatusInterrupted
		default:
			task.Status = model.StatusErrorUpload
		}
		o.saveState(batchID, state)

		if onProgress != nil {
			onProgress(Progress{Index: i, Total: len(state.Tasks), Task: task})
		}
	}
	return nil
}

// checkUploadConflict reports whether remoteName already exists under
// parentUUID and, if so, whether the active policy means this task
// should be skipped rather than uploaded (spec §4.6's conflict policy;
// "newer" for uploads behaves like skip, since the original implementation
// only compares mtimes for downloads).
func (o *Orchestrator) checkUploadConflict(ctx context.Context, parentUUID, remoteName string, policy ConflictPolicy) (bool, error) {
	if policy == ConflictOverwrite {
		return false, nil
	}
	_, files, err := o.resolver.List(ctx, parentUUID)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		if f.Name == remoteName {
			return true, nil
		}
	}
	return false, nil
}
