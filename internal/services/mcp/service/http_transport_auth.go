package service

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var (
	errInvalidRequest = errors.New("invalid request")
	errInvalidHost    = errors.New("invalid host")
	errInvalidOrigin  = errors.New("invalid origin")
)

// hostPolicy admits loopback hosts plus an explicit allow list. Checking both
// Host and Origin keeps remote pages from reaching a local server through DNS
// rebinding.
type hostPolicy struct {
	allowed map[string]struct{}
}

func newHostPolicy(hosts []string) hostPolicy {
	allowed := make(map[string]struct{}, len(hosts))
	for _, entry := range hosts {
		if host, ok := hostname(entry); ok {
			allowed[host] = struct{}{}
		}
	}
	return hostPolicy{allowed: allowed}
}

func (p hostPolicy) allows(authority string) bool {
	host, ok := hostname(authority)
	if !ok {
		return false
	}
	if isLoopbackHost(host) {
		return true
	}
	_, ok = p.allowed[host]
	return ok
}

// check validates the Host header and, when present, the Origin header.
func (p hostPolicy) check(r *http.Request) error {
	if r == nil {
		return errInvalidRequest
	}
	if !p.allows(r.Host) {
		return errInvalidHost
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" || !p.allows(parsed.Host) {
		return errInvalidOrigin
	}
	return nil
}

// hostname strips an optional port and IPv6 brackets from a Host or Origin
// authority and lowercases what remains.
func hostname(authority string) (string, bool) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(authority); err == nil {
		return strings.ToLower(host), host != ""
	}
	if strings.HasPrefix(authority, "[") {
		if !strings.HasSuffix(authority, "]") {
			return "", false
		}
		authority = authority[1 : len(authority)-1]
	}
	return strings.ToLower(authority), authority != ""
}

// isLoopbackHost only matches the literal loopback names; other 127/8
// addresses are not admitted by default.
func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

// handleHealth handles GET /mcp/health.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := t.hosts.check(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		t.logger.Debug().Err(err).Msg("write health response")
	}
}

// authorizeRequest checks the bearer token when one is configured. Without a
// token the transport runs in trusted local mode.
func (t *HTTPTransport) authorizeRequest(w http.ResponseWriter, r *http.Request) bool {
	if t.apiToken == "" {
		return true
	}
	token, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w, "authorization required")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(t.apiToken)) != 1 {
		writeUnauthorized(w, "invalid access token")
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, message, http.StatusUnauthorized)
}
