// Package localstate persists everything the CLI keeps on disk between
// invocations: the logged-in user's credentials, durable batch operation
// state, and the WebDAV daemon's PID/config/TLS material. The JSON files
// are written through a temp-file-then-rename so a crash mid-write never
// corrupts the previous good copy; the PID file is written directly.
package localstate

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/filen-go/filen-cli/internal/config"
	"github.com/filen-go/filen-cli/internal/model"
)

// Store is the on-disk home for credentials, batch state, and WebDAV
// daemon bookkeeping rooted at config.Paths.
type Store struct {
	paths config.Paths
}

// New resolves the default ~/.filen-cli layout and returns a Store bound
// to it.
func New() (*Store, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("localstate: resolve paths: %w", err)
	}
	return &Store{paths: paths}, nil
}

// Paths exposes the resolved directory layout.
func (s *Store) Paths() config.Paths {
	return s.paths
}

// writeAtomic marshals v to JSON and replaces path with it via a
// same-directory temp file and rename, so a concurrent reader never
// observes a partial write.
func writeAtomic(path string, perm os.FileMode, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("localstate: marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("localstate: create temp file: %w", err)
	}
	name := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(name)
		if writeErr != nil {
			return fmt.Errorf("localstate: write %s: %w", filepath.Base(path), writeErr)
		}
		return fmt.Errorf("localstate: close %s: %w", filepath.Base(path), closeErr)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return fmt.Errorf("localstate: chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("localstate: rename into %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveCredentials writes the session's credentials to credentials.json
// with owner-only permissions.
func (s *Store) SaveCredentials(creds model.Credentials) error {
	return writeAtomic(s.paths.CredentialsFile, 0o600, creds)
}

// ReadCredentials loads the previously saved credentials. It returns
// model.ErrNotFound wrapped if no session has ever been saved.
func (s *Store) ReadCredentials() (model.Credentials, error) {
	var creds model.Credentials
	data, err := os.ReadFile(s.paths.CredentialsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, fmt.Errorf("localstate: read credentials: %w", model.ErrNotFound)
		}
		return creds, fmt.Errorf("localstate: read credentials: %w", err)
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("localstate: parse credentials: %w", err)
	}
	return creds, nil
}

// ClearCredentials removes the saved session, if any.
func (s *Store) ClearCredentials() error {
	err := os.Remove(s.paths.CredentialsFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localstate: clear credentials: %w", err)
	}
	return nil
}

// SaveBatchState persists a batch operation's progress so it can be
// resumed after the process exits or crashes.
func (s *Store) SaveBatchState(id string, state *model.BatchState) error {
	return writeAtomic(s.paths.BatchStateFile(id), 0o644, state)
}

// LoadBatchState loads a previously saved batch's state. It returns
// model.ErrNotFound wrapped if the batch id is unknown.
func (s *Store) LoadBatchState(id string) (*model.BatchState, error) {
	data, err := os.ReadFile(s.paths.BatchStateFile(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("localstate: load batch state: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("localstate: load batch state: %w", err)
	}
	state := &model.BatchState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("localstate: parse batch state: %w", err)
	}
	return state, nil
}

// DeleteBatchState removes a batch's durable state file, typically once
// the batch has completed.
func (s *Store) DeleteBatchState(id string) error {
	err := os.Remove(s.paths.BatchStateFile(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localstate: delete batch state: %w", err)
	}
	return nil
}

// WebDAVConfig is the persisted configuration of the local WebDAV
// daemon: the port and credentials it was last started with.
type WebDAVConfig struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// DefaultWebDAVConfig returns the configuration used the first time the
// daemon starts, before any webdav_config.json exists.
func DefaultWebDAVConfig() WebDAVConfig {
	return WebDAVConfig{
		Port:     config.WebDAVDefaultPort,
		Protocol: config.WebDAVDefaultProtocol,
		Username: config.WebDAVDefaultUsername,
		Password: config.WebDAVDefaultPassword,
	}
}

// SaveWebDAVConfig persists the daemon's configuration.
func (s *Store) SaveWebDAVConfig(cfg WebDAVConfig) error {
	return writeAtomic(s.paths.WebDAVConfigFile, 0o600, cfg)
}

// ReadWebDAVConfig returns the persisted configuration, or
// DefaultWebDAVConfig if none has been saved yet.
func (s *Store) ReadWebDAVConfig() (WebDAVConfig, error) {
	data, err := os.ReadFile(s.paths.WebDAVConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultWebDAVConfig(), nil
		}
		return WebDAVConfig{}, fmt.Errorf("localstate: read webdav config: %w", err)
	}
	var cfg WebDAVConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return WebDAVConfig{}, fmt.Errorf("localstate: parse webdav config: %w", err)
	}
	return cfg, nil
}

// SaveWebDAVPID records the PID of the running daemon.
func (s *Store) SaveWebDAVPID(pid int) error {
	if err := os.WriteFile(s.paths.WebDAVPIDFile, []byte(fmt.Sprintf("%d", pid)), 0o644); err != nil {
		return fmt.Errorf("localstate: save webdav pid: %w", err)
	}
	return nil
}

// ReadWebDAVPID returns the PID of a previously started daemon. It
// returns model.ErrNotFound wrapped if no daemon has been started.
func (s *Store) ReadWebDAVPID() (int, error) {
	data, err := os.ReadFile(s.paths.WebDAVPIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("localstate: read webdav pid: %w", model.ErrNotFound)
		}
		return 0, fmt.Errorf("localstate: read webdav pid: %w", err)
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("localstate: parse webdav pid: %w", err)
	}
	return pid, nil
}

// ClearWebDAVPID removes the PID file, typically after the daemon is
// confirmed stopped.
func (s *Store) ClearWebDAVPID() error {
	err := os.Remove(s.paths.WebDAVPIDFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localstate: clear webdav pid: %w", err)
	}
	return nil
}

// SSLCertPaths returns the certificate and private key paths used by the
// HTTPS WebDAV listener.
func (s *Store) SSLCertPaths() (certPath, keyPath string) {
	return s.paths.WebDAVSSLCert, s.paths.WebDAVSSLKey
}

// HasSSLCert reports whether a self-signed certificate has already been
// generated.
func (s *Store) HasSSLCert() bool {
	_, err := os.Stat(s.paths.WebDAVSSLCert)
	return err == nil
}
