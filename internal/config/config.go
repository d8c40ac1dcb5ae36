// Package config holds the fixed, per-deployment values the CLI and the
// WebDAV server build on: API base URLs, the layout of the on-disk
// ~/.filen-cli data directory, chunk sizing, retry policy, and cache
// lifetimes. None of it is user-configurable at runtime.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// API endpoints. The client never discovers these; they are fixed per
// deployment, same as the original config service's constructor.
const (
	APIBaseURL    = "https://gateway.filen.io"
	IngestBaseURL = "https://ingest.filen.io"
	EgestBaseURL  = "https://egest.filen.io"
)

// ChunkSize is the fixed size of one bulk data chunk before AEAD framing.
const ChunkSize = 1048576 // 1 MiB

// Retry policy for transient API and network failures: 3 attempts total,
// with an exponential backoff of 1s, then 2s, between attempts.
const (
	MaxRetryAttempts = 3
	RetryBaseDelay   = time.Second
)

// RetryDelay returns the backoff before retry attempt n (0-indexed:
// attempt 0 failing waits RetryDelay(0) == 1s before attempt 1).
func RetryDelay(attempt int) time.Duration {
	return RetryBaseDelay << attempt
}

// RequestTimeout bounds a single HTTP round trip.
const RequestTimeout = 30 * time.Second

// ListingCacheTTL is how long a resolved folder listing stays valid
// before the resolver re-fetches it from the server.
const ListingCacheTTL = 10 * time.Minute

// WebDAV defaults, used when no webdav_config.json exists yet.
const (
	WebDAVDefaultPort     = 8080
	WebDAVDefaultProtocol = "http"
	WebDAVDefaultUsername = "filen"
	WebDAVDefaultPassword = "filen-webdav"
)

// Paths collects the on-disk layout of the CLI's local state directory,
// rooted at ~/.filen-cli.
type Paths struct {
	DataDir          string
	CredentialsFile  string
	BatchStateDir    string
	WebDAVPIDFile    string
	WebDAVConfigFile string
	WebDAVSSLDir     string
	WebDAVSSLCert    string
	WebDAVSSLKey     string
}

// DefaultPaths resolves Paths against the current user's home directory
// and ensures every directory in the layout exists.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}

	dataDir := filepath.Join(home, ".filen-cli")
	sslDir := filepath.Join(dataDir, "webdav-ssl")
	p := Paths{
		DataDir:          dataDir,
		CredentialsFile:  filepath.Join(dataDir, "credentials.json"),
		BatchStateDir:    filepath.Join(dataDir, "batch_states"),
		WebDAVPIDFile:    filepath.Join(dataDir, "webdav.pid"),
		WebDAVConfigFile: filepath.Join(dataDir, "webdav_config.json"),
		WebDAVSSLDir:     sslDir,
		WebDAVSSLCert:    filepath.Join(sslDir, "cert.crt"),
		WebDAVSSLKey:     filepath.Join(sslDir, "priv.key"),
	}

	for _, dir := range []string{p.DataDir, p.BatchStateDir, p.WebDAVSSLDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}

// BatchStateFile returns the path of the durable state file for a batch
// operation identified by id.
func (p Paths) BatchStateFile(id string) string {
	return filepath.Join(p.BatchStateDir, "batch_state_"+id+".json")
}
