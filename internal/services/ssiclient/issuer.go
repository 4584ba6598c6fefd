package ssiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	schemaPath   = "/api/v1/schema"
	offeringPath = "/api/v1/offering"
)

// SchemaRequest describes a credential schema to create.
type SchemaRequest struct {
	Name           string
	Type           string
	Properties     map[string]any
	RequiredFields []string
}

// OfferingRequest describes a credential offering. An empty RecipientDID
// creates an open offering.
type OfferingRequest struct {
	Type              string
	CredentialSubject map[string]any
	RecipientDID      string
}

// IssuerClient talks to the issuer API.
type IssuerClient struct {
	api apiClient
}

// NewIssuerClient builds an issuer client. The x-client-secret header is only
// sent when an API key is configured.
func NewIssuerClient(cfg Config) *IssuerClient {
	return &IssuerClient{api: newAPIClient(cfg, false)}
}

// CreateSchema creates a schema whose credential subject is a JSON object
// with the given properties.
func (c *IssuerClient) CreateSchema(ctx context.Context, req SchemaRequest) (map[string]any, error) {
	required := req.RequiredFields
	if required == nil {
		required = []string{}
	}
	body := map[string]any{
		"name": req.Name,
		"type": req.Type,
		"credentialSubject": map[string]any{
			"type":       "object",
			"properties": req.Properties,
			"required":   required,
		},
	}
	var out map[string]any
	if err := c.api.do(ctx, http.MethodPost, schemaPath, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSchemas returns every schema summary.
func (c *IssuerClient) ListSchemas(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.api.do(ctx, http.MethodGet, schemaPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSchema returns one schema.
func (c *IssuerClient) GetSchema(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.api.do(ctx, http.MethodGet, schemaPath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSchema removes one schema.
func (c *IssuerClient) DeleteSchema(ctx context.Context, id string) error {
	return c.api.do(ctx, http.MethodDelete, schemaPath+"/"+url.PathEscape(id), nil, nil)
}

// SchemasByType returns the schemas whose type matches exactly.
func (c *IssuerClient) SchemasByType(ctx context.Context, schemaType string) ([]map[string]any, error) {
	schemas, err := c.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]map[string]any, 0, len(schemas))
	for _, schema := range schemas {
		if value, ok := schema["type"].(string); ok && value == schemaType {
			matches = append(matches, schema)
		}
	}
	return matches, nil
}

// LatestSchemaByType returns the matching schema with the highest version.
// It reports false when no schema has the type. Ties keep the first schema
// listed.
func (c *IssuerClient) LatestSchemaByType(ctx context.Context, schemaType string) (map[string]any, bool, error) {
	matches, err := c.SchemasByType(ctx, schemaType)
	if err != nil {
		return nil, false, err
	}
	if len(matches) == 0 {
		return nil, false, nil
	}
	latest := matches[0]
	for _, schema := range matches[1:] {
		if versionGreater(schema["version"], latest["version"]) {
			latest = schema
		}
	}
	return latest, true, nil
}

// CreateOffering creates a credential offering.
func (c *IssuerClient) CreateOffering(ctx context.Context, req OfferingRequest) (map[string]any, error) {
	body := map[string]any{
		"credential_type":    req.Type,
		"credential_subject": req.CredentialSubject,
	}
	if recipient := strings.TrimSpace(req.RecipientDID); recipient != "" {
		body["recipient"] = recipient
	}
	var out map[string]any
	if err := c.api.do(ctx, http.MethodPost, offeringPath, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// versionGreater compares schema versions, numerically when both are
// numbers and lexically when both are strings.
func versionGreater(a, b any) bool {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av > bv
		}
		return b == nil
	case string:
		if bv, ok := b.(string); ok {
			return av > bv
		}
		return b == nil
	default:
		return false
	}
}
