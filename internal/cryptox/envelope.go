package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/filen-go/filen-cli/internal/model"
)

// envelopeVersion is the only metadata envelope version this client
// speaks. The prefix exists so the server-side format can rotate
// algorithms later (spec §4.1's rationale); any other prefix is rejected.
const envelopeVersion = "002"

// envelopeIVLen is the ASCII length of the envelope's embedded nonce.
const envelopeIVLen = 12

// envelopeSubkey derives the 32-byte AES key used to seal/open a metadata
// envelope: a single PBKDF2-HMAC-SHA512 pass with both password and salt
// set to the envelope key's own bytes (spec §4.1). This is intentionally
// not a general-purpose KDF call — it exists only to spread a
// variable-length key string into a fixed 32-byte AES-256 key.
func envelopeSubkey(key string) []byte {
	kb := []byte(key)
	return pbkdf2.Key(kb, kb, 1, 32, sha512.New)
}

// EncryptMetadata seals plaintext into a versioned envelope:
// "002" ‖ iv(12 ascii) ‖ base64(ciphertext ‖ 16-byte tag) (spec §4.1).
func EncryptMetadata(plaintext, key string) (string, error) {
	iv, err := RandomASCII(envelopeIVLen)
	if err != nil {
		return "", fmt.Errorf("cryptox: generate envelope iv: %w", err)
	}

	block, err := aes.NewCipher(envelopeSubkey(key))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, envelopeIVLen)
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, []byte(iv), []byte(plaintext), nil)
	return envelopeVersion + iv + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptMetadata is the strict inverse of EncryptMetadata. It fails with
// model.ErrBadEnvelopeVersion if the prefix isn't "002", and with
// model.ErrBadAuth if the GCM tag doesn't verify (spec §4.1).
func DecryptMetadata(envelope, key string) (string, error) {
	if len(envelope) < len(envelopeVersion)+envelopeIVLen {
		return "", fmt.Errorf("cryptox: decrypt metadata: envelope too short: %w", model.ErrBadEnvelopeVersion)
	}
	if !strings.HasPrefix(envelope, envelopeVersion) {
		return "", fmt.Errorf("cryptox: decrypt metadata: prefix %q: %w", envelope[:3], model.ErrBadEnvelopeVersion)
	}

	iv := envelope[len(envelopeVersion) : len(envelopeVersion)+envelopeIVLen]
	body, err := base64.StdEncoding.DecodeString(envelope[len(envelopeVersion)+envelopeIVLen:])
	if err != nil {
		return "", fmt.Errorf("cryptox: decrypt metadata: bad base64: %w", model.ErrBadAuth)
	}

	block, err := aes.NewCipher(envelopeSubkey(key))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, envelopeIVLen)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, []byte(iv), body, nil)
	if err != nil {
		return "", fmt.Errorf("cryptox: decrypt metadata: %w", model.ErrBadAuth)
	}
	return string(plaintext), nil
}
