// Package transfer is the chunked upload/download engine: it encrypts
// a local file chunk by chunk against a fresh per-file key, streams
// each chunk to the ingest host, and finalizes the file's metadata once
// every chunk is acknowledged. Downloads run the same process in
// reverse, including a seekable adapter for random-access reads.
package transfer

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/filen-go/filen-cli/internal/config"
	"github.com/filen-go/filen-cli/internal/cryptox"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

// Engine drives chunked transfers for one logged-in account.
type Engine struct {
	wire  *wireclient.Client
	email string
}

// New builds an Engine bound to the account's email (needed for
// filename hashing).
func New(wire *wireclient.Client, email string) *Engine {
	return &Engine{wire: wire, email: email}
}

// UploadResult is returned by Upload on success.
type UploadResult struct {
	UUID string
	Hash string
	Size int64
}

// UploadRequest describes one file to upload. FileUUID/UploadKey/
// ResumeFromChunk are non-zero only when resuming a previously
// interrupted upload (spec §4.5.1).
type UploadRequest struct {
	LocalPath        string
	ParentUUID       string
	TargetFilename   string
	MasterKey        string
	PreserveTimestamps bool

	FileUUID        string
	UploadKey       string
	ResumeFromChunk int
}

type fileMetadataPayload struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	MIME         string `json:"mime"`
	Key          string `json:"key"`
	Hash         string `json:"hash"`
	LastModified int64  `json:"lastModified"`
}

const defaultMIME = "application/octet-stream"

// Upload encrypts and uploads req.LocalPath chunk by chunk, returning
// once the server has acknowledged the final metadata (spec §4.5).
// A chunk failure is returned as *model.ChunkFailedError carrying
// enough state (file uuid, upload key, last acknowledged chunk) for the
// caller to retry via the same req with ResumeFromChunk set.
func (e *Engine) Upload(ctx context.Context, req UploadRequest, onProgress func(chunkIndex, totalChunks int, bytesUploaded, totalBytes int64)) (UploadResult, error) {
	filename := req.TargetFilename
	if filename == "" {
		filename = filepath.Base(req.LocalPath)
	}

	info, err := os.Stat(req.LocalPath)
	if err != nil {
		return UploadResult{}, &model.FatalError{Cause: fmt.Errorf("transfer: stat %s: %w", req.LocalPath, err)}
	}
	fileSize := info.Size()

	fileUUID := req.FileUUID
	if fileUUID == "" {
		fileUUID = uuid.NewString()
	}

	lastModified := time.Now().UnixMilli()
	if req.PreserveTimestamps {
		lastModified = info.ModTime().UnixMilli()
	}

	if fileSize == 0 {
		return e.uploadEmpty(ctx, req, fileUUID, filename, lastModified)
	}
	return e.uploadChunked(ctx, req, fileUUID, filename, fileSize, lastModified, onProgress)
}

func (e *Engine) uploadEmpty(ctx context.Context, req UploadRequest, fileUUID, filename string, lastModified int64) (UploadResult, error) {
	fileKey, err := cryptox.NewFileKey()
	if err != nil {
		return UploadResult{}, err
	}

	metaJSON, err := json.Marshal(fileMetadataPayload{
		Name: filename, Size: 0, MIME: defaultMIME, Key: fileKey, Hash: "", LastModified: lastModified,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("transfer: marshal empty file metadata: %w", err)
	}

	nameEncrypted, err := cryptox.EncryptMetadata(filename, fileKey)
	if err != nil {
		return UploadResult{}, err
	}
	sizeEncrypted, err := cryptox.EncryptMetadata("0", fileKey)
	if err != nil {
		return UploadResult{}, err
	}
	mimeEncrypted, err := cryptox.EncryptMetadata(defaultMIME, fileKey)
	if err != nil {
		return UploadResult{}, err
	}
	metadataEncrypted, err := cryptox.EncryptMetadata(string(metaJSON), req.MasterKey)
	if err != nil {
		return UploadResult{}, err
	}
	nameHashed := cryptox.HashFilename(filename, e.email, req.MasterKey)

	payload := map[string]any{
		"uuid": fileUUID, "name": nameEncrypted, "nameHashed": nameHashed,
		"size": sizeEncrypted, "parent": req.ParentUUID, "mime": mimeEncrypted,
		"metadata": metadataEncrypted, "version": 2,
	}
	if err := e.wire.Post(ctx, "/v3/upload/empty", payload, nil, true); err != nil {
		return UploadResult{}, fmt.Errorf("transfer: upload empty file: %w", err)
	}
	return UploadResult{UUID: fileUUID, Hash: "", Size: 0}, nil
}

func (e *Engine) uploadChunked(
	ctx context.Context,
	req UploadRequest,
	fileUUID, filename string,
	fileSize, lastModified int64,
	onProgress func(chunkIndex, totalChunks int, bytesUploaded, totalBytes int64),
) (UploadResult, error) {
	uploadKey := req.UploadKey
	if uploadKey == "" {
		var err error
		uploadKey, err = cryptox.RandomASCII(32)
		if err != nil {
			return UploadResult{}, err
		}
	}
	fileKey, err := cryptox.NewFileKey()
	if err != nil {
		return UploadResult{}, err
	}

	f, err := os.Open(req.LocalPath)
	if err != nil {
		return UploadResult{}, &model.FatalError{Cause: fmt.Errorf("transfer: open %s: %w", req.LocalPath, err)}
	}
	defer f.Close()

	totalChunks := int((fileSize + config.ChunkSize - 1) / config.ChunkSize)
	hasher := sha512.New()

	if req.ResumeFromChunk > 0 {
		if err := rehashPriorChunks(f, hasher, req.ResumeFromChunk); err != nil {
			return UploadResult{}, &model.FatalError{Cause: err}
		}
	}

	buf := make([]byte, config.ChunkSize)
	chunkIndex := req.ResumeFromChunk
	for {
		n, readErr := io.ReadFull(f, buf)
		if n == 0 {
			break
		}
		chunk := buf[:n]
		hasher.Write(chunk)

		encryptedChunk, err := cryptox.EncryptChunk(chunk, []byte(fileKey))
		if err != nil {
			return UploadResult{}, &model.ChunkFailedError{FileUUID: fileUUID, UploadKey: uploadKey, LastSuccessfulChunk: chunkIndex - 1, Cause: err}
		}
		chunkHash := sha512Hex(encryptedChunk)

		if err := e.wire.UploadChunk(ctx, fileUUID, chunkIndex, req.ParentUUID, uploadKey, chunkHash, encryptedChunk); err != nil {
			return UploadResult{}, &model.ChunkFailedError{FileUUID: fileUUID, UploadKey: uploadKey, LastSuccessfulChunk: chunkIndex - 1, Cause: err}
		}

		if onProgress != nil {
			uploaded := int64(chunkIndex+1) * config.ChunkSize
			if uploaded > fileSize {
				uploaded = fileSize
			}
			onProgress(chunkIndex+1, totalChunks, uploaded, fileSize)
		}

		chunkIndex++
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return UploadResult{}, &model.ChunkFailedError{FileUUID: fileUUID, UploadKey: uploadKey, LastSuccessfulChunk: chunkIndex - 1, Cause: readErr}
		}
	}

	totalHash := hex.EncodeToString(hasher.Sum(nil))

	metaJSON, err := json.Marshal(fileMetadataPayload{
		Name: filename, Size: fileSize, MIME: defaultMIME, Key: fileKey, Hash: totalHash, LastModified: lastModified,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("transfer: marshal file metadata: %w", err)
	}

	nameEncrypted, err := cryptox.EncryptMetadata(filename, fileKey)
	if err != nil {
		return UploadResult{}, err
	}
	sizeEncrypted, err := cryptox.EncryptMetadata(fmt.Sprintf("%d", fileSize), fileKey)
	if err != nil {
		return UploadResult{}, err
	}
	mimeEncrypted, err := cryptox.EncryptMetadata(defaultMIME, fileKey)
	if err != nil {
		return UploadResult{}, err
	}
	metadataEncrypted, err := cryptox.EncryptMetadata(string(metaJSON), req.MasterKey)
	if err != nil {
		return UploadResult{}, err
	}
	nameHashed := cryptox.HashFilename(filename, e.email, req.MasterKey)

	rm, err := cryptox.RandomASCII(32)
	if err != nil {
		return UploadResult{}, err
	}

	payload := map[string]any{
		"uuid": fileUUID, "name": nameEncrypted, "nameHashed": nameHashed,
		"size": sizeEncrypted, "chunks": chunkIndex, "mime": mimeEncrypted,
		"rm": rm, "metadata": metadataEncrypted, "version": 2, "uploadKey": uploadKey,
	}
	if err := e.wire.Post(ctx, "/v3/upload/done", payload, nil, true); err != nil {
		return UploadResult{}, fmt.Errorf("transfer: finalize upload: %w", err)
	}

	return UploadResult{UUID: fileUUID, Hash: totalHash, Size: fileSize}, nil
}

func rehashPriorChunks(f *os.File, hasher hash.Hash, resumeFromChunk int) error {
	buf := make([]byte, config.ChunkSize)
	for i := 0; i < resumeFromChunk; i++ {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("transfer: rehash chunk %d: file shorter than expected", i)
		}
		if err != nil {
			return fmt.Errorf("transfer: rehash chunk %d: %w", i, err)
		}
	}
	return nil
}

func sha512Hex(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}
