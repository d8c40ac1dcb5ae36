// Package auth implements the login handshake: deriving keys from a
// password, exchanging them for an API key, decrypting the account's
// master key history, and persisting the resulting session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/cryptox"
	"github.com/filen-go/filen-cli/internal/localstate"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/wireclient"
)

// Service drives the login/logout/session lifecycle. It owns the wire
// client's installed API key as a side effect of a successful login or
// session restore.
type Service struct {
	wire  *wireclient.Client
	store *localstate.Store
	log   zerolog.Logger
}

// New builds a Service over an already-constructed transport and local
// state store.
func New(wire *wireclient.Client, store *localstate.Store, log zerolog.Logger) *Service {
	return &Service{wire: wire, store: store, log: log}
}

type authInfoResponse struct {
	AuthVersion int    `json:"authVersion"`
	Salt        string `json:"salt"`
}

type loginResponse struct {
	APIKey     string      `json:"apiKey"`
	MasterKeys interface{} `json:"masterKeys"`
	ID         json.Number `json:"id"`
	UserID     json.Number `json:"userId"`
}

type baseFolderResponse struct {
	UUID string `json:"uuid"`
}

// Login runs the full handshake described in spec §4.3: fetch the
// account's KDF salt and auth version, derive the local master key and
// wire password, exchange them for an API key (optionally with a 2FA
// code), decrypt the returned master key history against the locally
// derived key, resolve the base folder UUID, and persist the resulting
// session. tfaCode may be empty when no 2FA challenge has occurred yet.
func (s *Service) Login(ctx context.Context, email, password, tfaCode string) (model.Credentials, error) {
	var info authInfoResponse
	if err := s.wire.Post(ctx, "/v3/auth/info", map[string]string{"email": email}, &info, false); err != nil {
		return model.Credentials{}, fmt.Errorf("auth: fetch auth info: %w", err)
	}
	if info.Salt == "" {
		return model.Credentials{}, &model.FatalError{Cause: errors.New("auth: server returned no salt")}
	}
	if info.AuthVersion == 0 {
		info.AuthVersion = int(cryptox.AuthV2)
	}

	derived, err := cryptox.DeriveKeys(password, cryptox.AuthVersion(info.AuthVersion), info.Salt)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("auth: derive keys: %w", err)
	}

	code := tfaCode
	if code == "" {
		code = "XXXXXX"
	}
	payload := map[string]any{
		"email":         strings.ToLower(email),
		"password":      derived.AuthPassword,
		"authVersion":   info.AuthVersion,
		"twoFactorCode": code,
	}
	var login loginResponse
	if err := s.wire.Post(ctx, "/v3/login", payload, &login, false); err != nil {
		return model.Credentials{}, fmt.Errorf("auth: login: %w", err)
	}
	if login.APIKey == "" {
		return model.Credentials{}, &model.FatalError{Cause: errors.New("auth: login response carried no api key")}
	}

	rawKeys := normalizeMasterKeys(login.MasterKeys)
	decrypted := make([]string, 0, len(rawKeys))
	for _, enc := range rawKeys {
		plain, err := cryptox.DecryptMetadata(enc, derived.MasterKey)
		if err != nil {
			s.log.Warn().Err(err).Msg("auth: failed to decrypt a master key, skipping")
			continue
		}
		decrypted = append(decrypted, plain)
	}
	if len(decrypted) == 0 {
		s.log.Warn().Msg("auth: no master keys decrypted, falling back to locally derived key")
		decrypted = append(decrypted, derived.MasterKey)
	}

	s.wire.SetAPIKey(login.APIKey)

	var baseFolder baseFolderResponse
	if err := s.wire.Get(ctx, "/v3/user/baseFolder", &baseFolder, true); err != nil {
		return model.Credentials{}, fmt.Errorf("auth: fetch base folder: %w", err)
	}
	if baseFolder.UUID == "" {
		return model.Credentials{}, &model.FatalError{Cause: errors.New("auth: server returned no base folder uuid")}
	}

	userID := login.ID.String()
	if userID == "" || userID == "0" {
		userID = login.UserID.String()
	}

	creds := model.Credentials{
		Email:          email,
		APIKey:         login.APIKey,
		MasterKeys:     strings.Join(decrypted, "|"),
		BaseFolderUUID: baseFolder.UUID,
		UserID:         userID,
		LastLoggedInAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.SaveCredentials(creds); err != nil {
		return model.Credentials{}, fmt.Errorf("auth: persist credentials: %w", err)
	}
	return creds, nil
}

// RestoreSession loads the previously saved credentials and installs
// the API key on the wire client, without talking to the server.
func (s *Service) RestoreSession() (model.Credentials, error) {
	creds, err := s.store.ReadCredentials()
	if err != nil {
		return model.Credentials{}, err
	}
	if !creds.Valid() {
		return model.Credentials{}, fmt.Errorf("auth: stored credentials incomplete: %w", model.ErrAuth)
	}
	s.wire.SetAPIKey(creds.APIKey)
	return creds, nil
}

// ValidateSession confirms the restored session is still accepted by
// the server by making one lightweight authenticated call.
func (s *Service) ValidateSession(ctx context.Context) error {
	var baseFolder baseFolderResponse
	if err := s.wire.Get(ctx, "/v3/user/baseFolder", &baseFolder, true); err != nil {
		return fmt.Errorf("auth: validate session: %w", err)
	}
	return nil
}

// Logout clears the persisted session and the wire client's installed
// API key.
func (s *Service) Logout() error {
	s.wire.SetAPIKey("")
	return s.store.ClearCredentials()
}

// normalizeMasterKeys accepts either a single string or a list of
// strings for the server's masterKeys field, matching the API's
// historical inconsistency here.
func normalizeMasterKeys(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
