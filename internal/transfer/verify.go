package transfer

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// VerifyUpload reports whether the local file at localPath matches the
// server's recorded SHA-512 for an already-uploaded file, without
// re-downloading its contents (spec §6's "verify" operation, grounded in
// the original client's metadata-only upload verification). An empty
// remoteHash is treated as the empty-file case and matches only a local
// file of size zero.
func VerifyUpload(localPath, remoteHash string) (bool, error) {
	if remoteHash == "" {
		info, err := os.Stat(localPath)
		if err != nil {
			return false, fmt.Errorf("transfer: stat %s: %w", localPath, err)
		}
		return info.Size() == 0, nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return false, fmt.Errorf("transfer: open %s: %w", localPath, err)
	}
	defer f.Close()

	hasher := sha512.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return false, fmt.Errorf("transfer: hash %s: %w", localPath, err)
	}
	localHash := hex.EncodeToString(hasher.Sum(nil))
	return localHash == remoteHash, nil
}
