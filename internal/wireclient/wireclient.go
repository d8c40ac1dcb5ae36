// Package wireclient is the stateless JSON/HTTP transport to the Filen
// API: request signing, retry/backoff for transient failures of JSON
// calls, and the raw single-attempt chunk POST/GET calls against the
// ingest/egest hosts. It knows
// nothing about encryption or path semantics; callers hand it already
// encrypted payloads and already encrypted chunk bytes.
package wireclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/filen-go/filen-cli/internal/config"
	"github.com/filen-go/filen-cli/internal/model"
)

// Client issues signed requests against the API, ingest, and egest
// hosts; JSON API calls are retried, chunk uploads/downloads are not. It holds no session data beyond the bearer API key set
// by SetAPIKey; everything else is passed in per call.
type Client struct {
	httpClient *http.Client
	log        zerolog.Logger

	apiBaseURL    string
	ingestBaseURL string
	egestBaseURL  string

	apiKey string
}

// Option customizes a Client built by New. The zero set of options
// points at the production hosts.
type Option func(*Client)

// WithBaseURLs overrides the API, ingest, and egest hosts, used by
// tests to point the client at an httptest server.
func WithBaseURLs(api, ingest, egest string) Option {
	return func(c *Client) {
		c.apiBaseURL = api
		c.ingestBaseURL = ingest
		c.egestBaseURL = egest
	}
}

// New builds a Client pointed at the production API/ingest/egest hosts,
// unless overridden by opts.
func New(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: config.RequestTimeout},
		log:           log,
		apiBaseURL:    config.APIBaseURL,
		ingestBaseURL: config.IngestBaseURL,
		egestBaseURL:  config.EgestBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAPIKey installs the bearer token used by subsequent authenticated
// requests.
func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = apiKey
}

// envelope is the common {status, message, data} wrapper every Filen API
// response uses.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// Post sends a JSON POST to endpoint (relative to the API host), retrying
// transient failures per the configured backoff, and decodes the
// response's "data" field into out (skipped if out is nil).
func (c *Client) Post(ctx context.Context, endpoint string, payload, out any, useAuth bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("wireclient: marshal request body: %w", err)
	}
	return c.doWithRetry(ctx, http.MethodPost, c.apiBaseURL+endpoint, body, useAuth, out)
}

// Get sends a JSON GET to endpoint, retrying transient failures, and
// decodes the response's "data" field into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any, useAuth bool) error {
	return c.doWithRetry(ctx, http.MethodGet, c.apiBaseURL+endpoint, nil, useAuth, out)
}

func (c *Client) doWithRetry(ctx context.Context, method, fullURL string, body []byte, useAuth bool, out any) error {
	var lastErr error
	for attempt := 0; attempt < config.MaxRetryAttempts; attempt++ {
		if attempt > 0 {
			c.log.Debug().Int("attempt", attempt).Str("url", fullURL).Dur("delay", config.RetryDelay(attempt-1)).Msg("wireclient: retrying request")
			select {
			case <-time.After(config.RetryDelay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.doOnce(ctx, method, fullURL, body, useAuth, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var transient *model.TransientError
		if !errors.As(err, &transient) {
			return err
		}
	}
	return fmt.Errorf("wireclient: request failed after %d attempts: %w", config.MaxRetryAttempts, lastErr)
}

// doOnce performs a single HTTP round trip. Network errors and 5xx
// responses are wrapped in model.TransientError so the retry loop knows
// to try again; everything else is returned as a terminal error.
func (c *Client) doOnce(ctx context.Context, method, fullURL string, body []byte, useAuth bool, out any) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("wireclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if useAuth && c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransientError{Cause: fmt.Errorf("wireclient: %s %s: %w", method, fullURL, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.TransientError{Cause: fmt.Errorf("wireclient: read response body: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return &model.TransientError{Cause: fmt.Errorf("wireclient: server error %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("wireclient: %w", model.ErrAuth)
	}
	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("wireclient: %w", model.ErrConflict)
	}
	if resp.StatusCode >= 400 {
		return &model.ServerRejectError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("wireclient: decode response envelope: %w", err)
	}
	if !env.Status {
		if err := classifyMessage(env.Message, env.Code); err != nil {
			return err
		}
		return &model.ServerRejectError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("wireclient: decode response data: %w", err)
		}
	}
	return nil
}

// classifyMessage maps the server's application-level error codes onto
// the client's error taxonomy. Filen's 2FA codes arrive as status:false
// messages rather than HTTP status codes.
func classifyMessage(message, code string) error {
	switch code {
	case "enter_2fa", "two_factor_required":
		return model.ErrNeed2FA
	case "wrong_2fa", "invalid_2fa":
		return model.ErrWrong2FA
	}
	switch message {
	case "Please enter your 2FA code.", "enter_2fa":
		return model.ErrNeed2FA
	case "Invalid 2FA code.", "wrong_2fa":
		return model.ErrWrong2FA
	}
	return nil
}

// UploadChunk POSTs one already-encrypted chunk to the ingest host.
// index is the zero-based chunk position; hash is the lowercase hex
// SHA-512 digest of the encrypted chunk bytes, used by the server to
// verify transfer integrity.
func (c *Client) UploadChunk(ctx context.Context, uuid string, index int, parentUUID, uploadKey, hash string, encryptedChunk []byte) error {
	values := url.Values{
		"uuid":      {uuid},
		"index":     {strconv.Itoa(index)},
		"parent":    {parentUUID},
		"uploadKey": {uploadKey},
		"hash":      {hash},
	}
	fullURL := c.ingestBaseURL + "/v3/upload?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(encryptedChunk))
	if err != nil {
		return fmt.Errorf("wireclient: build chunk upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransientError{Cause: fmt.Errorf("wireclient: upload chunk %d: %w", index, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return &model.TransientError{Cause: fmt.Errorf("wireclient: upload chunk %d: server error %d", index, resp.StatusCode)}
		}
		return &model.ServerRejectError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return nil
}

// DownloadChunk fetches one encrypted chunk from the egest host.
func (c *Client) DownloadChunk(ctx context.Context, region, bucket, fileUUID string, index int) ([]byte, error) {
	fullURL := fmt.Sprintf("%s/%s/%s/%s/%d", c.egestBaseURL, region, bucket, fileUUID, index)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wireclient: build chunk download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.TransientError{Cause: fmt.Errorf("wireclient: download chunk %d: %w", index, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.TransientError{Cause: fmt.Errorf("wireclient: read chunk %d body: %w", index, err)}
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, &model.TransientError{Cause: fmt.Errorf("wireclient: download chunk %d: server error %d", index, resp.StatusCode)}
		}
		return nil, &model.ServerRejectError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return body, nil
}
