// Package resolver turns encrypted folder listings into the decrypted
// node tree the rest of the client works with: it lists a folder's
// contents, walks slash-separated paths down to a uuid, and creates
// folders recursively. A time-boxed cache keyed by folder uuid avoids
// re-listing a folder on every path segment of a batch operation.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/filen-go/filen-cli/internal/config"
	"github.com/filen-go/filen-cli/internal/cryptox"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

// Resolver lists folders and resolves paths against one logged-in
// account's master key history. It is not safe for concurrent use by
// more than one goroutine without external synchronization beyond its
// own cache locking, since wireclient.Client itself is safe to share.
type Resolver struct {
	wire       *wireclient.Client
	email      string
	masterKeys []string
	rootUUID   string

	mu         sync.Mutex
	listingTTL time.Duration
	listings   map[string]listingEntry
}

type listingEntry struct {
	folders   []model.Node
	files     []model.Node
	fetchedAt time.Time
}

// New builds a Resolver bound to one account's master keys (newest
// last, matching model.Credentials.MasterKeyList) and root folder uuid.
func New(wire *wireclient.Client, email string, masterKeys []string, rootUUID string) *Resolver {
	return &Resolver{
		wire:       wire,
		email:      email,
		masterKeys: masterKeys,
		rootUUID:   rootUUID,
		listingTTL: config.ListingCacheTTL,
		listings:   make(map[string]listingEntry),
	}
}

// RootUUID returns the account's base folder uuid.
func (r *Resolver) RootUUID() string {
	return r.rootUUID
}

// tryDecrypt attempts to decrypt an envelope with each master key,
// newest first, since most content was encrypted with the current key
// (spec §4.4).
func (r *Resolver) tryDecrypt(envelope string) (string, error) {
	for i := len(r.masterKeys) - 1; i >= 0; i-- {
		plain, err := cryptox.DecryptMetadata(envelope, r.masterKeys[i])
		if err == nil {
			return plain, nil
		}
	}
	return "", fmt.Errorf("resolver: decrypt metadata: %w", model.ErrBadAuth)
}

type dirContentResponse struct {
	Folders []folderEntry `json:"folders"`
	Uploads []fileEntry   `json:"uploads"`
}

type folderEntry struct {
	UUID         string `json:"uuid"`
	Parent       string `json:"parent"`
	Name         string `json:"name"`
	Timestamp    int64  `json:"timestamp"`
	LastModified int64  `json:"lastModified"`
}

type fileEntry struct {
	UUID      string `json:"uuid"`
	Parent    string `json:"parent"`
	Metadata  string `json:"metadata"`
	Chunks    any    `json:"chunks"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	Timestamp int64  `json:"timestamp"`
}

// chunkCount normalizes the server's chunks field, which has been
// observed as both a JSON number and a numeric string.
func chunkCount(raw any) int {
	switch v := raw.(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

type folderNameEnvelope struct {
	Name string `json:"name"`
}

// List returns the decrypted folders and files directly inside
// folderUUID, using the cached listing if it is younger than the
// configured TTL.
func (r *Resolver) List(ctx context.Context, folderUUID string) ([]model.Node, []model.Node, error) {
	r.mu.Lock()
	if entry, ok := r.listings[folderUUID]; ok && time.Since(entry.fetchedAt) < r.listingTTL {
		folders, files := entry.folders, entry.files
		r.mu.Unlock()
		return folders, files, nil
	}
	r.mu.Unlock()

	var content dirContentResponse
	if err := r.wire.Post(ctx, "/v3/dir/content", map[string]any{"uuid": folderUUID, "foldersOnly": false}, &content, true); err != nil {
		return nil, nil, fmt.Errorf("resolver: list folder %s: %w", folderUUID, err)
	}

	folders := make([]model.Node, 0, len(content.Folders))
	for _, f := range content.Folders {
		folders = append(folders, r.decryptFolderEntry(f))
	}

	files := make([]model.Node, 0, len(content.Uploads))
	for _, f := range content.Uploads {
		files = append(files, r.decryptFileEntry(f))
	}

	r.mu.Lock()
	r.listings[folderUUID] = listingEntry{folders: folders, files: files, fetchedAt: time.Now()}
	r.mu.Unlock()

	return folders, files, nil
}

func (r *Resolver) decryptFolderEntry(f folderEntry) model.Node {
	node := model.Node{
		Type:         model.NodeFolder,
		UUID:         f.UUID,
		Parent:       f.Parent,
		Timestamp:    f.Timestamp,
		LastModified: f.LastModified,
	}

	plain, err := r.tryDecrypt(f.Name)
	if err != nil {
		node.Name = "[Encrypted]"
		return node
	}
	if strings.HasPrefix(plain, "{") {
		var env folderNameEnvelope
		if err := json.Unmarshal([]byte(plain), &env); err == nil && env.Name != "" {
			node.Name = env.Name
			return node
		}
	}
	node.Name = plain
	return node
}

func (r *Resolver) decryptFileEntry(f fileEntry) model.Node {
	node := model.Node{
		Type:      model.NodeFile,
		UUID:      f.UUID,
		Parent:    f.Parent,
		Region:    f.Region,
		Bucket:    f.Bucket,
		Timestamp: f.Timestamp,
	}
	node.ChunkCount = chunkCount(f.Chunks)

	plain, err := r.tryDecrypt(f.Metadata)
	if err != nil {
		node.Name = "[Encrypted]"
		return node
	}
	var meta model.FileMeta
	if err := json.Unmarshal([]byte(plain), &meta); err != nil {
		node.Name = "[Encrypted]"
		return node
	}
	node.Name = meta.Name
	node.Meta = meta
	node.LastModified = meta.LastModified
	return node
}

// Resolve walks a slash-separated absolute path down to its node,
// preferring a matching folder over a matching file at every segment,
// including the final one (spec §4.4, invariant: folder-over-file
// precedence). Only the final segment may resolve to a file.
func (r *Resolver) Resolve(ctx context.Context, path string) (model.Node, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return model.Node{Type: model.NodeFolder, UUID: r.rootUUID, Name: "Root"}, nil
	}

	currentUUID := r.rootUUID
	reached := ""
	for i, part := range parts {
		isLast := i == len(parts)-1

		folders, files, err := r.List(ctx, currentUUID)
		if err != nil {
			return model.Node{}, err
		}

		var foundFolder *model.Node
		for idx := range folders {
			if folders[idx].Name == part {
				foundFolder = &folders[idx]
				break
			}
		}

		var foundFile *model.Node
		if isLast {
			for idx := range files {
				if files[idx].Name == part {
					foundFile = &files[idx]
					break
				}
			}
		}

		switch {
		case foundFolder != nil:
			currentUUID = foundFolder.UUID
			reached += "/" + part
			if isLast {
				return *foundFolder, nil
			}
		case foundFile != nil && isLast:
			return *foundFile, nil
		default:
			return model.Node{}, &model.NotFoundError{Path: path, ReachedPrefix: reached}
		}
	}
	return model.Node{}, &model.NotFoundError{Path: path, ReachedPrefix: reached}
}

// CreateFolder creates one folder named name directly inside
// parentUUID and invalidates that parent's cached listing.
func (r *Resolver) CreateFolder(ctx context.Context, name, parentUUID, masterKey string) (string, error) {
	folderUUID := uuid.NewString()

	nameJSON, err := json.Marshal(folderNameEnvelope{Name: name})
	if err != nil {
		return "", fmt.Errorf("resolver: marshal folder name: %w", err)
	}
	nameEncrypted, err := cryptox.EncryptMetadata(string(nameJSON), masterKey)
	if err != nil {
		return "", fmt.Errorf("resolver: encrypt folder name: %w", err)
	}
	nameHashed := cryptox.HashFilename(name, r.email, masterKey)

	payload := map[string]string{
		"uuid":       folderUUID,
		"name":       nameEncrypted,
		"nameHashed": nameHashed,
		"parent":     parentUUID,
	}
	if err := r.wire.Post(ctx, "/v3/dir/create", payload, nil, true); err != nil {
		return "", fmt.Errorf("resolver: create folder %q: %w", name, err)
	}
	r.Invalidate(parentUUID)
	return folderUUID, nil
}

// CreateFolderRecursive ensures every segment of path exists as a
// folder, creating any missing segments, and returns the uuid of the
// final segment. A 409 from a concurrent creator is treated as success
// after a cache invalidation and re-list (spec §4.4's conflict retry).
func (r *Resolver) CreateFolderRecursive(ctx context.Context, path, masterKey string) (string, error) {
	parts := splitPath(path)
	currentUUID := r.rootUUID
	if len(parts) == 0 {
		return currentUUID, nil
	}

	for _, part := range parts {
		folders, _, err := r.List(ctx, currentUUID)
		if err != nil {
			return "", err
		}

		var found *model.Node
		for idx := range folders {
			if folders[idx].Name == part {
				found = &folders[idx]
				break
			}
		}
		if found != nil {
			currentUUID = found.UUID
			continue
		}

		_, createErr := r.CreateFolder(ctx, part, currentUUID, masterKey)
		if createErr != nil && !errors.Is(createErr, model.ErrConflict) {
			return "", createErr
		}
		if createErr != nil {
			time.Sleep(time.Second)
		}
		r.Invalidate(currentUUID)

		folders, _, err = r.List(ctx, currentUUID)
		if err != nil {
			return "", err
		}
		found = nil
		for idx := range folders {
			if folders[idx].Name == part {
				found = &folders[idx]
				break
			}
		}
		if found == nil {
			return "", &model.FatalError{Cause: fmt.Errorf("resolver: created folder %q but could not find it afterward", part)}
		}
		currentUUID = found.UUID
	}
	return currentUUID, nil
}

// Invalidate drops the cached listing for folderUUID, used after any
// mutation under it (spec §4.4's coarse invalidation policy).
func (r *Resolver) Invalidate(folderUUID string) {
	r.mu.Lock()
	delete(r.listings, folderUUID)
	r.mu.Unlock()
}

// InvalidateAll clears every cached listing, matching the original
// implementation's "clear the whole path cache on any mutation" safety
// margin (spec §4.4).
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.listings = make(map[string]listingEntry)
	r.mu.Unlock()
}

func splitPath(path string) []string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" || trimmed == "." {
		return nil
	}
	raw := strings.Split(trimmed, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
