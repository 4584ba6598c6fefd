package ssiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/timeouts"
)

const (
	clientSecretHeader = "x-client-secret"
	requestIDHeader    = "X-Request-Id"
)

// maxResponseSize bounds a decoded API response body.
const maxResponseSize = 4 << 20

// ErrUnexpectedStatus matches every StatusError.
var ErrUnexpectedStatus = errors.New("unexpected api status")

// StatusError reports a non-2xx API response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API responded with status: %d", e.StatusCode)
}

// Is reports whether target is ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Config configures one API client.
type Config struct {
	// BaseURL is the API origin, without a trailing path.
	BaseURL string
	// APIKey is sent as x-client-secret.
	APIKey string
	// HTTPClient performs requests; nil uses a client with the default
	// backend request timeout.
	HTTPClient *http.Client
}

type apiClient struct {
	baseURL    string
	apiKey     string
	sendEmpty  bool
	httpClient *http.Client
}

func newAPIClient(cfg Config, sendEmptyKey bool) apiClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.BackendRequest}
	}
	return apiClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     cfg.APIKey,
		sendEmpty:  sendEmptyKey,
		httpClient: httpClient,
	}
}

func (c apiClient) url(path string) string {
	return c.baseURL + path
}

// do sends one JSON request and decodes a JSON response into out. An empty
// response body leaves out untouched.
func (c apiClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.url(path)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if c.apiKey != "" || c.sendEmpty {
		req.Header.Set(clientSecretHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
