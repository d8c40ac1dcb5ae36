package resolver

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/filen-go/filen-cli/internal/cryptox"
	"github.com/filen-go/filen-cli/internal/model"
)

// Move relocates node (identified by uuid and its type) to newParentUUID,
// invalidating both the old and new parent's cached listings (spec §4.6's
// move/rename operation).
func (r *Resolver) Move(ctx context.Context, node model.Node, newParentUUID string) error {
	endpoint := "/v3/file/move"
	if node.Type == model.NodeFolder {
		endpoint = "/v3/dir/move"
	}
	if err := r.wire.Post(ctx, endpoint, map[string]string{"uuid": node.UUID, "to": newParentUUID}, nil, true); err != nil {
		return fmt.Errorf("resolver: move %s: %w", node.UUID, err)
	}
	r.Invalidate(node.Parent)
	r.Invalidate(newParentUUID)
	return nil
}

// Rename changes node's display name in place (spec §4.6). Folders carry
// their name in a JSON-wrapped envelope encrypted with the master key;
// files carry the name both standalone (encrypted with the file key) and
// inside their metadata envelope (encrypted with the master key), so
// renaming a file re-encrypts its whole metadata blob.
func (r *Resolver) Rename(ctx context.Context, node model.Node, newName, masterKey string) error {
	nameHashed := cryptox.HashFilename(newName, r.email, masterKey)

	if node.Type == model.NodeFolder {
		nameJSON, err := json.Marshal(folderNameEnvelope{Name: newName})
		if err != nil {
			return fmt.Errorf("resolver: marshal folder name: %w", err)
		}
		nameEncrypted, err := cryptox.EncryptMetadata(string(nameJSON), masterKey)
		if err != nil {
			return err
		}
		payload := map[string]string{"uuid": node.UUID, "name": nameEncrypted, "nameHashed": nameHashed}
		if err := r.wire.Post(ctx, "/v3/dir/rename", payload, nil, true); err != nil {
			return fmt.Errorf("resolver: rename folder %s: %w", node.UUID, err)
		}
		r.Invalidate(node.Parent)
		return nil
	}

	meta := node.Meta
	meta.Name = newName
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("resolver: marshal file metadata: %w", err)
	}
	nameEncrypted, err := cryptox.EncryptMetadata(newName, meta.Key)
	if err != nil {
		return err
	}
	metadataEncrypted, err := cryptox.EncryptMetadata(string(metaJSON), masterKey)
	if err != nil {
		return err
	}
	payload := map[string]string{
		"uuid": node.UUID, "name": nameEncrypted, "metadata": metadataEncrypted, "nameHashed": nameHashed,
	}
	if err := r.wire.Post(ctx, "/v3/file/rename", payload, nil, true); err != nil {
		return fmt.Errorf("resolver: rename file %s: %w", node.UUID, err)
	}
	r.Invalidate(node.Parent)
	return nil
}

// Trash moves node into the account's trash (spec §4.6).
func (r *Resolver) Trash(ctx context.Context, node model.Node) error {
	endpoint := "/v3/file/trash"
	if node.Type == model.NodeFolder {
		endpoint = "/v3/dir/trash"
	}
	if err := r.wire.Post(ctx, endpoint, map[string]string{"uuid": node.UUID}, nil, true); err != nil {
		return fmt.Errorf("resolver: trash %s: %w", node.UUID, err)
	}
	r.Invalidate(node.Parent)
	return nil
}

// DeletePermanent permanently removes node, bypassing the trash (spec
// §4.6's delete-path operation).
func (r *Resolver) DeletePermanent(ctx context.Context, node model.Node) error {
	endpoint := "/v3/file/delete/permanent"
	if node.Type == model.NodeFolder {
		endpoint = "/v3/dir/delete/permanent"
	}
	if err := r.wire.Post(ctx, endpoint, map[string]string{"uuid": node.UUID}, nil, true); err != nil {
		return fmt.Errorf("resolver: delete %s: %w", node.UUID, err)
	}
	return nil
}

// Restore moves a trashed node back to its original location (spec
// §4.6's restore operation).
func (r *Resolver) Restore(ctx context.Context, uuid string, nodeType model.NodeType) error {
	endpoint := "/v3/file/restore"
	if nodeType == model.NodeFolder {
		endpoint = "/v3/dir/restore"
	}
	if err := r.wire.Post(ctx, endpoint, map[string]string{"uuid": uuid}, nil, true); err != nil {
		return fmt.Errorf("resolver: restore %s: %w", uuid, err)
	}
	r.InvalidateAll()
	return nil
}

// trashFolderUUID is the special "trash" pseudo-folder uuid the server
// recognizes in a dir/content call; its listing decodes into the same
// dirContentResponse as a normal folder (spec §4.6's list-trash operation).
const trashFolderUUID = "trash"

// ListTrash returns every folder and file currently in the trash.
func (r *Resolver) ListTrash(ctx context.Context) ([]model.Node, []model.Node, error) {
	var content dirContentResponse
	if err := r.wire.Post(ctx, "/v3/dir/content", map[string]any{"uuid": trashFolderUUID, "foldersOnly": false}, &content, true); err != nil {
		return nil, nil, fmt.Errorf("resolver: list trash: %w", err)
	}
	folders := make([]model.Node, 0, len(content.Folders))
	for _, f := range content.Folders {
		folders = append(folders, r.decryptFolderEntry(f))
	}
	files := make([]model.Node, 0, len(content.Uploads))
	for _, f := range content.Uploads {
		files = append(files, r.decryptFileEntry(f))
	}
	return folders, files, nil
}
