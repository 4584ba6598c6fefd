package domain

import (
	"context"
	"fmt"

	"github.com/louisbranch/ssi-verifier-mcp/internal/services/ssiclient"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// IssuerClient manages credential schemas and offerings.
type IssuerClient interface {
	CreateSchema(ctx context.Context, req ssiclient.SchemaRequest) (map[string]any, error)
	ListSchemas(ctx context.Context) ([]map[string]any, error)
	GetSchema(ctx context.Context, id string) (map[string]any, error)
	DeleteSchema(ctx context.Context, id string) error
	SchemasByType(ctx context.Context, schemaType string) ([]map[string]any, error)
	LatestSchemaByType(ctx context.Context, schemaType string) (map[string]any, bool, error)
	CreateOffering(ctx context.Context, req ssiclient.OfferingRequest) (map[string]any, error)
}

// APIResult is a backend object passed through to the caller, or an
// error flag and message when the call failed.
type APIResult map[string]any

func apiFailure(action string, err error) APIResult {
	return APIResult{"error": true, "message": failureMessage(action, err)}
}

// NoInput is the input of tools without arguments.
type NoInput struct{}

// CreateSchemaInput represents the MCP tool input for schema creation.
type CreateSchemaInput struct {
	Name           string         `json:"name" jsonschema:"human-readable schema name (e.g. 'ProofOfPurchase', 'EventTicket')"`
	Type           string         `json:"type" jsonschema:"unique schema type, used when creating credential offerings"`
	Properties     map[string]any `json:"properties" jsonschema:"map of property name to a definition with 'type', 'title' and optional 'description' and 'format'"`
	RequiredFields []string       `json:"requiredFields" jsonschema:"property names every credential of this schema must carry"`
}

// SchemaIDInput represents the MCP tool input for schema lookups by identifier.
type SchemaIDInput struct {
	ID string `json:"id" jsonschema:"schema identifier (UUID) as returned by create_schema or get_all_schemas"`
}

// SchemaTypeInput represents the MCP tool input for schema lookups by type.
type SchemaTypeInput struct {
	Type string `json:"type" jsonschema:"schema type to search for (case-sensitive)"`
}

// SchemaListResult represents the MCP tool output for schema listings.
type SchemaListResult struct {
	Schemas []map[string]any `json:"schemas" jsonschema:"schema summaries with id, name, type, version and uri"`
	Error   bool             `json:"error,omitempty" jsonschema:"true when the listing failed"`
	Message string           `json:"message,omitempty" jsonschema:"failure reason"`
}

// DeleteResult represents the MCP tool output for deletions.
type DeleteResult struct {
	Success bool   `json:"success,omitempty" jsonschema:"true when the resource was deleted"`
	Error   bool   `json:"error,omitempty" jsonschema:"true when the deletion failed"`
	Message string `json:"message" jsonschema:"outcome description"`
}

// SchemaExistsResult represents the MCP tool output for schema existence checks.
type SchemaExistsResult struct {
	Exists  bool   `json:"exists" jsonschema:"whether a schema with the type exists"`
	Error   bool   `json:"error,omitempty" jsonschema:"true when the check failed"`
	Message string `json:"message" jsonschema:"outcome description"`
}

// CreateOfferingInput represents the MCP tool input for credential offerings.
type CreateOfferingInput struct {
	Type              string         `json:"type" jsonschema:"credential type to offer; must match an existing schema type (case-sensitive)"`
	CredentialSubject map[string]any `json:"credentialSubject" jsonschema:"credential data keyed by the schema's property names"`
	RecipientDID      string         `json:"recipientDid,omitempty" jsonschema:"DID of the only holder allowed to claim the credential; omit for an open offering"`
}

// CreateSchemaTool defines the MCP tool schema for schema creation.
func CreateSchemaTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "create_schema",
		Description: "Create a new credential schema. Schemas define the structure and attributes of Verifiable Credentials: " +
			"each has a name, a type and the properties a credential can contain. Example: " +
			`{"name":"ProofOfPurchase","type":"ProofOfPurchase","properties":{"ticket":{"type":"string","title":"Ticket"},"seat":{"type":"string","title":"Seat"}},"requiredFields":["ticket","seat"]}`,
	}
}

// GetAllSchemasTool defines the MCP tool schema for schema listings.
func GetAllSchemasTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_all_schemas",
		Description: "Retrieve all credential schemas with their ID, name, type, version and URI. Use it to explore existing schemas or find a schema ID.",
	}
}

// GetSchemaByIDTool defines the MCP tool schema for schema lookups.
func GetSchemaByIDTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_schema_by_id",
		Description: "Retrieve the complete definition of one schema, including all properties and metadata, by its identifier.",
	}
}

// DeleteSchemaTool defines the MCP tool schema for schema deletion.
func DeleteSchemaTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "delete_schema",
		Description: "Permanently delete a schema. This cannot be undone. Credentials already issued with the schema are not affected.",
	}
}

// SchemaExistsByTypeTool defines the MCP tool schema for schema existence checks.
func SchemaExistsByTypeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "schema_exists_by_type",
		Description: "Check whether at least one schema with the given type exists. Useful before creating a schema to avoid duplicates.",
	}
}

// GetLatestSchemaByTypeTool defines the MCP tool schema for latest schema lookups.
func GetLatestSchemaByTypeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_latest_schema_by_type",
		Description: "Retrieve the schema with the highest version number for a given type.",
	}
}

// CreateOfferingTool defines the MCP tool schema for credential offerings.
func CreateOfferingTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "create_offering",
		Description: "Create a credential offering, either targeted (only recipientDid may claim it) or open (anyone may claim it). " +
			"The result contains a qr_code_url that must always be returned to the user. " +
			"Arguments: the schema type to offer, the credentialSubject data, and an optional recipientDid.",
	}
}

// CreateSchemaHandler creates a credential schema.
func CreateSchemaHandler(client IssuerClient) mcp.ToolHandlerFor[CreateSchemaInput, APIResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateSchemaInput) (*mcp.CallToolResult, APIResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		schema, err := client.CreateSchema(runCtx, ssiclient.SchemaRequest{
			Name:           input.Name,
			Type:           input.Type,
			Properties:     input.Properties,
			RequiredFields: input.RequiredFields,
		})
		if err != nil {
			return nil, apiFailure("create schema", err), nil
		}
		return nil, APIResult(schema), nil
	}
}

// GetAllSchemasHandler lists credential schemas.
func GetAllSchemasHandler(client IssuerClient) mcp.ToolHandlerFor[NoInput, SchemaListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, SchemaListResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		schemas, err := client.ListSchemas(runCtx)
		if err != nil {
			return nil, SchemaListResult{Error: true, Message: failureMessage("retrieve schemas", err)}, nil
		}
		if schemas == nil {
			schemas = []map[string]any{}
		}
		return nil, SchemaListResult{Schemas: schemas}, nil
	}
}

// GetSchemaByIDHandler loads one credential schema.
func GetSchemaByIDHandler(client IssuerClient) mcp.ToolHandlerFor[SchemaIDInput, APIResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SchemaIDInput) (*mcp.CallToolResult, APIResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		schema, err := client.GetSchema(runCtx, input.ID)
		if err != nil {
			return nil, apiFailure("retrieve schema", err), nil
		}
		return nil, APIResult(schema), nil
	}
}

// DeleteSchemaHandler deletes one credential schema.
func DeleteSchemaHandler(client IssuerClient) mcp.ToolHandlerFor[SchemaIDInput, DeleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SchemaIDInput) (*mcp.CallToolResult, DeleteResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		if err := client.DeleteSchema(runCtx, input.ID); err != nil {
			return nil, DeleteResult{Error: true, Message: failureMessage("delete schema", err)}, nil
		}
		return nil, DeleteResult{
			Success: true,
			Message: fmt.Sprintf("Schema with ID %s has been successfully deleted.", input.ID),
		}, nil
	}
}

// SchemaExistsByTypeHandler checks for a schema type.
func SchemaExistsByTypeHandler(client IssuerClient) mcp.ToolHandlerFor[SchemaTypeInput, SchemaExistsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SchemaTypeInput) (*mcp.CallToolResult, SchemaExistsResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		matches, err := client.SchemasByType(runCtx, input.Type)
		if err != nil {
			return nil, SchemaExistsResult{Error: true, Message: failureMessage("check schema existence", err)}, nil
		}
		if len(matches) == 0 {
			return nil, SchemaExistsResult{Message: fmt.Sprintf("No schema found with type '%s'.", input.Type)}, nil
		}
		return nil, SchemaExistsResult{
			Exists:  true,
			Message: fmt.Sprintf("A schema with type '%s' already exists.", input.Type),
		}, nil
	}
}

// GetLatestSchemaByTypeHandler loads the newest schema of a type.
func GetLatestSchemaByTypeHandler(client IssuerClient) mcp.ToolHandlerFor[SchemaTypeInput, APIResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SchemaTypeInput) (*mcp.CallToolResult, APIResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		schema, ok, err := client.LatestSchemaByType(runCtx, input.Type)
		if err != nil {
			return nil, apiFailure("retrieve latest schema", err), nil
		}
		if !ok {
			return nil, APIResult{"error": true, "message": fmt.Sprintf("No schema found with type '%s'.", input.Type)}, nil
		}
		return nil, APIResult(schema), nil
	}
}

// CreateOfferingHandler creates a credential offering.
func CreateOfferingHandler(client IssuerClient) mcp.ToolHandlerFor[CreateOfferingInput, APIResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateOfferingInput) (*mcp.CallToolResult, APIResult, error) {
		runCtx, cancel := withBackendTimeout(ctx)
		defer cancel()

		offering, err := client.CreateOffering(runCtx, ssiclient.OfferingRequest{
			Type:              input.Type,
			CredentialSubject: input.CredentialSubject,
			RecipientDID:      input.RecipientDID,
		})
		if err != nil {
			return nil, apiFailure("create offering", err), nil
		}
		return nil, APIResult(offering), nil
	}
}
