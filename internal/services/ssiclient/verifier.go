package ssiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// VPQueryEndpoint is the verifier endpoint serving query-based flows.
const VPQueryEndpoint = "vp-query"

// QRAuthorization is the verifier's answer to a QR authorization request.
type QRAuthorization struct {
	QRCodeURL string `json:"qr_code_url"`
	State     string `json:"state"`
}

// VerifierClient talks to the verifier client API.
type VerifierClient struct {
	api apiClient
}

// NewVerifierClient builds a verifier client. The x-client-secret header is
// always sent, even when empty.
func NewVerifierClient(cfg Config) *VerifierClient {
	return &VerifierClient{api: newAPIClient(cfg, true)}
}

// AuthorizeQRCode starts a verification on the named endpoint.
func (c *VerifierClient) AuthorizeQRCode(ctx context.Context, endpoint string) (QRAuthorization, error) {
	return c.authorize(ctx, endpoint, nil)
}

// AuthorizeVPQueryQRCode starts a verification bound to a stored VP query.
func (c *VerifierClient) AuthorizeVPQueryQRCode(ctx context.Context, vpQueryID string) (QRAuthorization, error) {
	return c.authorize(ctx, VPQueryEndpoint, map[string]string{"vp_query_id": vpQueryID})
}

func (c *VerifierClient) authorize(ctx context.Context, endpoint string, body any) (QRAuthorization, error) {
	var auth QRAuthorization
	path := fmt.Sprintf("/api/verifier/%s/v1/authorize-qr-code", url.PathEscape(endpoint))
	if err := c.api.do(ctx, http.MethodPost, path, body, &auth); err != nil {
		return QRAuthorization{}, err
	}
	if strings.TrimSpace(auth.State) == "" {
		return QRAuthorization{}, errors.New("authorization response is missing state")
	}
	return auth, nil
}

// ConnectionURL returns the event stream URL of one attempt.
func (c *VerifierClient) ConnectionURL(endpoint, state string) string {
	return c.api.url(fmt.Sprintf("/api/verifier/%s/v1/connection/%s", url.PathEscape(endpoint), url.PathEscape(state)))
}
