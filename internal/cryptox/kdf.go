// Package cryptox implements spec §4.1: password-based key derivation, the
// versioned metadata envelope, streaming bulk AEAD, and deterministic
// filename hashing. Every operation here is a pure function of its inputs;
// the package holds no state of its own (spec §3's ownership rule for the
// Crypto component).
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/filen-go/filen-cli/internal/model"
)

// AuthVersion selects the password-derivation scheme (spec §4.1).
type AuthVersion int

const (
	AuthV1 AuthVersion = 1
	AuthV2 AuthVersion = 2
)

const kdfIterations = 200000

// DerivedKeys is the result of DeriveKeys: a local master key used to
// decrypt the server's returned master keys, and the password hash sent
// over the wire in place of the plaintext password.
type DerivedKeys struct {
	MasterKey    string
	AuthPassword string
}

// DeriveKeys runs PBKDF2-HMAC-SHA512 with 200,000 iterations over the
// password, producing 64 bytes encoded as 128 lowercase hex characters.
// For AuthV2 the first half becomes the master key and the second half is
// re-hashed with SHA-512 to become the wire password; for AuthV1 both
// outputs are the full 128-char hex string (spec §4.1).
func DeriveKeys(password string, version AuthVersion, salt string) (DerivedKeys, error) {
	derived := pbkdf2.Key([]byte(password), []byte(salt), kdfIterations, 64, sha512.New)
	keyHex := strings.ToLower(hex.EncodeToString(derived))

	switch version {
	case AuthV2:
		masterKey := keyHex[:64]
		sum := sha512.Sum512([]byte(keyHex[64:128]))
		return DerivedKeys{
			MasterKey:    masterKey,
			AuthPassword: strings.ToLower(hex.EncodeToString(sum[:])),
		}, nil
	case AuthV1:
		return DerivedKeys{MasterKey: keyHex, AuthPassword: keyHex}, nil
	default:
		return DerivedKeys{}, fmt.Errorf("cryptox: derive keys: %w: %d", model.ErrBadAuthVersion, version)
	}
}

// filenameHashKey derives the 32-byte HMAC subkey used by HashFilename,
// via a single-iteration PBKDF2 pass salted with the lowercase email
// (spec §4.1).
func filenameHashKey(masterKey, email string) []byte {
	return pbkdf2.Key([]byte(masterKey), []byte(strings.ToLower(email)), 1, 32, sha512.New)
}

// HashFilename computes the stable, case-insensitive server-side lookup
// index for a file or folder name: HMAC-SHA256 over the lowercase name,
// keyed by a PBKDF2 subkey of the master key salted with the lowercase
// email (spec §4.1, invariant 4).
func HashFilename(name, email, masterKey string) string {
	key := filenameHashKey(masterKey, email)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.ToLower(name)))
	return strings.ToLower(hex.EncodeToString(mac.Sum(nil)))
}

// HashFileDigest is the SHA-512 plaintext digest stored in file metadata
// and compared by the `verify` operation (spec §4.1, §8 invariant 5).
func HashFileDigest(data []byte) string {
	sum := sha512.Sum512(data)
	return strings.ToLower(hex.EncodeToString(sum[:]))
}
