package service

import (
	"fmt"

	"github.com/louisbranch/ssi-verifier-mcp/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
}

type toolRegistration struct {
	tool    *mcp.Tool
	handler any
}

func registerVerificationTools(registrar mcpRegistrationTarget, service domain.VerificationService) error {
	if service == nil {
		return fmt.Errorf("verification service is required")
	}
	return registerTools(registrar, []toolRegistration{
		{tool: domain.GenerateVerificationQRTool(), handler: domain.GenerateVerificationQRHandler(service)},
		{tool: domain.GenerateVPQueryQRTool(), handler: domain.GenerateVPQueryQRHandler(service)},
		{tool: domain.CheckVerificationStatusTool(), handler: domain.CheckVerificationStatusHandler(service)},
	})
}

func registerIssuerTools(registrar mcpRegistrationTarget, client domain.IssuerClient) error {
	if client == nil {
		return fmt.Errorf("issuer client is required")
	}
	return registerTools(registrar, []toolRegistration{
		{tool: domain.CreateSchemaTool(), handler: domain.CreateSchemaHandler(client)},
		{tool: domain.GetAllSchemasTool(), handler: domain.GetAllSchemasHandler(client)},
		{tool: domain.GetSchemaByIDTool(), handler: domain.GetSchemaByIDHandler(client)},
		{tool: domain.DeleteSchemaTool(), handler: domain.DeleteSchemaHandler(client)},
		{tool: domain.SchemaExistsByTypeTool(), handler: domain.SchemaExistsByTypeHandler(client)},
		{tool: domain.GetLatestSchemaByTypeTool(), handler: domain.GetLatestSchemaByTypeHandler(client)},
		{tool: domain.CreateOfferingTool(), handler: domain.CreateOfferingHandler(client)},
	})
}

func registerVPQueryTools(registrar mcpRegistrationTarget, client domain.VerifierServiceClient) error {
	if client == nil {
		return fmt.Errorf("verifier service client is required")
	}
	return registerTools(registrar, []toolRegistration{
		{tool: domain.CreateVPQueryTool(), handler: domain.CreateVPQueryHandler(client)},
		{tool: domain.GetAllVPQueriesTool(), handler: domain.GetAllVPQueriesHandler(client)},
		{tool: domain.GetVPQueryByIDTool(), handler: domain.GetVPQueryByIDHandler(client)},
		{tool: domain.DeleteVPQueryTool(), handler: domain.DeleteVPQueryHandler(client)},
		{tool: domain.ShowQRCodeTool(), handler: domain.ShowQRCodeHandler(client)},
	})
}

func registerTools(registrar mcpRegistrationTarget, registrations []toolRegistration) error {
	for _, registration := range registrations {
		if err := registerTool(registrar, registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}

func registerTool(registrar mcpRegistrationTarget, tool *mcp.Tool, handler any) error {
	if registrar == nil {
		return fmt.Errorf("mcp registration target is required")
	}
	return registrar.AddTool(tool, handler)
}
