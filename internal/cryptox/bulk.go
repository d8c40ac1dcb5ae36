package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/filen-go/filen-cli/internal/model"
)

// BulkNonceSize and BulkTagSize are the fixed-width framing fields of the
// bulk chunk layout: nonce(12) ‖ ciphertext ‖ tag(16) (spec §4.1, §6).
const (
	BulkNonceSize = 12
	BulkTagSize   = 16
)

// EncryptChunk seals one plaintext chunk with a per-chunk random 12-byte
// nonce using AES-256-GCM under the file's 32-byte key, returning
// nonce ‖ ciphertext ‖ tag (spec §4.1's bulk data AEAD).
func EncryptChunk(plaintext, fileKey []byte) ([]byte, error) {
	gcm, err := newChunkAEAD(fileKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, BulkNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate chunk nonce: %w", err)
	}

	out := make([]byte, 0, BulkNonceSize+len(plaintext)+BulkTagSize)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// DecryptChunk is the strict inverse of EncryptChunk: it requires the
// nonce‖ciphertext‖tag layout exactly and fails with model.ErrBadAuth on
// any corruption (spec §8 invariant 2).
func DecryptChunk(blob, fileKey []byte) ([]byte, error) {
	if len(blob) < BulkNonceSize+BulkTagSize {
		return nil, fmt.Errorf("cryptox: decrypt chunk: blob too short: %w", model.ErrBadAuth)
	}
	gcm, err := newChunkAEAD(fileKey)
	if err != nil {
		return nil, err
	}

	nonce := blob[:BulkNonceSize]
	ciphertext := blob[BulkNonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decrypt chunk: %w", model.ErrBadAuth)
	}
	return plaintext, nil
}

func newChunkAEAD(fileKey []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(fileKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: file key must be 32 bytes: %w", err)
	}
	return cipher.NewGCM(block)
}
