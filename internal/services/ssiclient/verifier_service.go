package ssiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const vpQueryPath = "/api/v1/verifier/vp-query"

// VerifierServiceClient talks to the verifier service API.
type VerifierServiceClient struct {
	api apiClient
}

// NewVerifierServiceClient builds a verifier service client. The
// x-client-secret header is always sent, even when empty.
func NewVerifierServiceClient(cfg Config) *VerifierServiceClient {
	return &VerifierServiceClient{api: newAPIClient(cfg, true)}
}

// CreateVPQuery stores a VP query and returns the service's representation.
func (c *VerifierServiceClient) CreateVPQuery(ctx context.Context, query []any) (map[string]any, error) {
	var out map[string]any
	if err := c.api.do(ctx, http.MethodPost, vpQueryPath, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListVPQueries returns every stored VP query.
func (c *VerifierServiceClient) ListVPQueries(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.api.do(ctx, http.MethodGet, vpQueryPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVPQuery returns one VP query.
func (c *VerifierServiceClient) GetVPQuery(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.api.do(ctx, http.MethodGet, vpQueryPath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteVPQuery removes one VP query.
func (c *VerifierServiceClient) DeleteVPQuery(ctx context.Context, id string) error {
	return c.api.do(ctx, http.MethodDelete, vpQueryPath+"/"+url.PathEscape(id), nil, nil)
}

// QRCodeShowLink returns the verifier service page that renders a QR code.
func (c *VerifierServiceClient) QRCodeShowLink(qrCodeURL string) string {
	return c.api.url("/api/v1/verifier/qr-code/show/" + strings.ReplaceAll(url.QueryEscape(qrCodeURL), "+", "%20"))
}

// FetchQRCode checks that a QR code image is reachable.
func (c *VerifierServiceClient) FetchQRCode(ctx context.Context, qrCodeURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(qrCodeURL), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.api.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch QR code image: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch QR code image: status %s", resp.Status)
	}
	return nil
}
