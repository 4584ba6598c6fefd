package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// VerifierServiceClient manages VP queries and QR display links.
type VerifierServiceClient interface {
	CreateVPQuery(ctx context.Context, query []any) (map[string]any, error)
	ListVPQueries(ctx context.Context) ([]map[string]any, error)
	GetVPQuery(ctx context.Context, id string) (map[string]any, error)
	DeleteVPQuery(ctx context.Context, id string) error
	QRCodeShowLink(qrCodeURL string) string
	FetchQRCode(ctx context.Context, qrCodeURL string) error
}

// CreateVPQueryInput represents the MCP tool input for VP query creation.
type CreateVPQueryInput struct {
	Query []any `json:"query" jsonschema:"array of query objects; any matching object satisfies the verification"`
}

// VPQueryIDInput represents the MCP tool input for VP query lookups.
type VPQueryIDInput struct {
	ID string `json:"id" jsonschema:"VP query identifier (UUID)"`
}

// VPQueryListResult represents the MCP tool output for VP query listings.
type VPQueryListResult struct {
	VPQueries []map[string]any `json:"vp_queries" jsonschema:"VP query configurations with their IDs and query bodies"`
	Error     bool             `json:"error,omitempty" jsonschema:"true when the listing failed"`
	Message   string           `json:"message,omitempty" jsonschema:"failure reason"`
}

// ShowQRCodeInput represents the MCP tool input for QR code display links.
type ShowQRCodeInput struct {
	QRCodeURL string `json:"qr_code_url" jsonschema:"the URL of the QR code image to show"`
}

// ShowQRCodeResult represents the MCP tool output for QR code display links.
type ShowQRCodeResult struct {
	Success      bool   `json:"success,omitempty" jsonschema:"true when the link was generated"`
	LinkToQRCode string `json:"link_to_qr_code,omitempty" jsonschema:"link that renders the QR code for the user"`
	Error        bool   `json:"error,omitempty" jsonschema:"true when the QR code could not be fetched"`
	Message      string `json:"message" jsonschema:"next step or failure reason"`
}

const vpQueryLanguage = `A VP query is an array of query objects evaluated independently: any matching object satisfies the verification.
Each query object has "fields", a list of field specifications. A field specification has:
- path: JSONPath expressions in array form locating data in the credential, e.g. ["$.type"]
- filter: a JSON Schema the data at that path must satisfy

Common filters: simple types (string, number, boolean, array, object), "pattern" regular expressions, "enum" value lists,
array filters ("contains", "minItems", "maxItems") and numeric ranges ("minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum").

Example requiring a membership credential from a trusted issuer:
[{"fields":[
  {"path":["$.type"],"filter":{"type":"array","contains":{"const":"MembershipCredential"}}},
  {"path":["$.issuer"],"filter":{"type":"string","enum":["did:empe:trusted_org_1","did:empe:trusted_org_2"]}},
  {"path":["$.expirationDate"],"filter":{"type":"string","format":"date-time"}}
]}]

Example accepting either a class A-C driver license or a government ID of someone 21 or older:
[{"fields":[
  {"path":["$.type"],"filter":{"type":"array","contains":{"const":"DriverLicense"}}},
  {"path":["$.credentialSubject.licenseClass"],"filter":{"type":"string","enum":["A","B","C"]}}
]},{"fields":[
  {"path":["$.type"],"filter":{"type":"array","contains":{"const":"GovernmentID"}}},
  {"path":["$.credentialSubject.age"],"filter":{"type":"number","minimum":21}}
]}]`

// CreateVPQueryTool defines the MCP tool schema for VP query creation.
func CreateVPQueryTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "create_vp_query",
		Description: strings.Join([]string{
			"Create a new Verifiable Presentation (VP) query describing which credentials must be presented and which conditions they must meet.",
			vpQueryLanguage,
			"The query parameter must be a JSON array following this structure.",
		}, "\n\n"),
	}
}

// GetAllVPQueriesTool defines the MCP tool schema for VP query listings.
func GetAllVPQueriesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_all_vp_queries",
		Description: "Retrieve all Verifiable Presentation (VP) queries, including their IDs and query bodies.",
	}
}

// GetVPQueryByIDTool defines the MCP tool schema for VP query lookups.
func GetVPQueryByIDTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_vp_query_by_id",
		Description: "Retrieve the complete definition of one Verifiable Presentation (VP) query by its identifier.",
	}
}

// DeleteVPQueryTool defines the MCP tool schema for VP query deletion.
func DeleteVPQueryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "delete_vp_query",
		Description: "Permanently delete a Verifiable Presentation (VP) query. This cannot be undone.",
	}
}

// ShowQRCodeTool defines the MCP tool schema for QR code display links.
func ShowQRCodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "show_qr_code",
		Description: "IMPORTANT: call this tool immediately after generating a verification QR code or creating an offering. " +
			"It returns a link that renders the QR code, and that link must be shown to the user before the next step.",
	}
}

// CreateVPQueryHandler creates a VP query.
func CreateVPQueryHandler(client VerifierServiceClient) mcp.ToolHandlerFor[CreateVPQueryInput, APIResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateVPQueryInput) (*mcp.CallToolResult, APIResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		query, err := client.CreateVPQuery(runCtx, input.Query)
		if err != nil {
			return nil, apiFailure("create VP query", err), nil
		}
		return nil, APIResult(query), nil
	}
}

// GetAllVPQueriesHandler lists VP queries.
func GetAllVPQueriesHandler(client VerifierServiceClient) mcp.ToolHandlerFor[NoInput, VPQueryListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, VPQueryListResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		queries, err := client.ListVPQueries(runCtx)
		if err != nil {
			return nil, VPQueryListResult{Error: true, Message: failureMessage("retrieve VP queries", err)}, nil
		}
		if queries == nil {
			queries = []map[string]any{}
		}
		return nil, VPQueryListResult{VPQueries: queries}, nil
	}
}

// GetVPQueryByIDHandler loads one VP query.
func GetVPQueryByIDHandler(client VerifierServiceClient) mcp.ToolHandlerFor[VPQueryIDInput, APIResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input VPQueryIDInput) (*mcp.CallToolResult, APIResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		query, err := client.GetVPQuery(runCtx, input.ID)
		if err != nil {
			return nil, apiFailure("retrieve VP query", err), nil
		}
		return nil, APIResult(query), nil
	}
}

// DeleteVPQueryHandler deletes one VP query.
func DeleteVPQueryHandler(client VerifierServiceClient) mcp.ToolHandlerFor[VPQueryIDInput, DeleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input VPQueryIDInput) (*mcp.CallToolResult, DeleteResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		if err := client.DeleteVPQuery(runCtx, input.ID); err != nil {
			return nil, DeleteResult{Error: true, Message: failureMessage("delete VP query", err)}, nil
		}
		return nil, DeleteResult{
			Success: true,
			Message: fmt.Sprintf("VP query with ID %s has been successfully deleted.", input.ID),
		}, nil
	}
}

// ShowQRCodeHandler checks a QR code image and returns its display link.
func ShowQRCodeHandler(client VerifierServiceClient) mcp.ToolHandlerFor[ShowQRCodeInput, ShowQRCodeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ShowQRCodeInput) (*mcp.CallToolResult, ShowQRCodeResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		if err := client.FetchQRCode(runCtx, input.QRCodeURL); err != nil {
			return nil, ShowQRCodeResult{Error: true, Message: failureMessage("process QR code", err)}, nil
		}
		return nil, ShowQRCodeResult{
			Success:      true,
			LinkToQRCode: client.QRCodeShowLink(input.QRCodeURL),
			Message:      "QR code link generated successfully. Now show this link to the user.",
		}, nil
	}
}
