package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/louisbranch/ssi-verifier-mcp/internal/services/mcp/domain"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/ssiclient"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

var (
	_ domain.VerificationService   = fakeVerificationService{}
	_ domain.IssuerClient          = fakeIssuer{}
	_ domain.VerifierServiceClient = fakeVerifierService{}
)

type fakeVerificationService struct{}

func (fakeVerificationService) Initiate(_ context.Context, endpoint string) (verification.Initiation, error) {
	return verification.Initiation{QRCodeURL: "https://qr.test/" + endpoint, State: "state-1", Message: verification.MessageInitiated}, nil
}

func (fakeVerificationService) InitiateVPQuery(context.Context, string) (verification.Initiation, error) {
	return verification.Initiation{}, errors.New("vp query unavailable")
}

func (fakeVerificationService) CheckStatus(_ context.Context, state string) verification.StatusView {
	return verification.StatusView{Status: verification.StatusNotFound, Message: verification.MessageNotFound}
}

type fakeIssuer struct{}

func (fakeIssuer) CreateSchema(context.Context, ssiclient.SchemaRequest) (map[string]any, error) {
	return map[string]any{"id": "schema-1"}, nil
}

func (fakeIssuer) ListSchemas(context.Context) ([]map[string]any, error) {
	return []map[string]any{{"id": "schema-1"}}, nil
}

func (fakeIssuer) GetSchema(context.Context, string) (map[string]any, error) {
	return map[string]any{"id": "schema-1"}, nil
}

func (fakeIssuer) DeleteSchema(context.Context, string) error { return nil }

func (fakeIssuer) SchemasByType(context.Context, string) ([]map[string]any, error) {
	return nil, nil
}

func (fakeIssuer) LatestSchemaByType(context.Context, string) (map[string]any, bool, error) {
	return nil, false, nil
}

func (fakeIssuer) CreateOffering(context.Context, ssiclient.OfferingRequest) (map[string]any, error) {
	return map[string]any{"qr_code_url": "https://qr.test/offering"}, nil
}

type fakeVerifierService struct{}

func (fakeVerifierService) CreateVPQuery(context.Context, []any) (map[string]any, error) {
	return map[string]any{"id": "vpq-1"}, nil
}

func (fakeVerifierService) ListVPQueries(context.Context) ([]map[string]any, error) {
	return nil, nil
}

func (fakeVerifierService) GetVPQuery(context.Context, string) (map[string]any, error) {
	return map[string]any{"id": "vpq-1"}, nil
}

func (fakeVerifierService) DeleteVPQuery(context.Context, string) error { return nil }

func (fakeVerifierService) QRCodeShowLink(qrCodeURL string) string {
	return "http://verifier.test/show/" + qrCodeURL
}

func (fakeVerifierService) FetchQRCode(context.Context, string) error { return nil }

func fakeBackends() backends {
	return backends{
		verification:    fakeVerificationService{},
		issuer:          fakeIssuer{},
		verifierService: fakeVerifierService{},
	}
}

type failingTransport struct{}

func (failingTransport) Connect(context.Context) (mcp.Connection, error) {
	return nil, errors.New("transport unavailable")
}

// connectInMemory serves server over in-memory transports and returns a
// connected client session.
func connectInMemory(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("connect server: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool[T any](t *testing.T, ctx context.Context, session *mcp.ClientSession, name string, args map[string]any) T {
	t.Helper()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if result.IsError {
		t.Fatalf("call %s returned a tool error: %+v", name, result.Content)
	}
	raw, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("encode %s output: %v", name, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s output: %v", name, err)
	}
	return out
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
