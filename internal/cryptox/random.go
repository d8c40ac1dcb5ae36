package cryptox

import (
	"crypto/rand"
	"math/big"
)

// ivAlphabet is the printable-ASCII alphabet the server's wire format
// requires for envelope IVs and file keys (spec §4.1): the IV must be
// ASCII, not binary, because it also serves as the AES-GCM nonce.
const ivAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// RandomASCII returns a cryptographically random string of length n drawn
// from the alphabet the wire format expects for IVs and file keys.
func RandomASCII(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(ivAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = ivAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// NewFileKey generates a 32-character random ASCII token whose UTF-8 byte
// form is the 32-byte AES-256 key for one file's bulk data (spec §3's
// FileKey, §4.5.1).
func NewFileKey() (string, error) {
	return RandomASCII(32)
}
