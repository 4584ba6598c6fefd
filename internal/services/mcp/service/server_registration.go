package service

import (
	"fmt"

	"github.com/louisbranch/ssi-verifier-mcp/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mcpRegistrationModule struct {
	name     string
	register func(mcpRegistrationTarget) error
}

const (
	mcpVerificationToolsModuleName = "verification-tools"
	mcpIssuerToolsModuleName       = "issuer-tools"
	mcpVPQueryToolsModuleName      = "vp-query-tools"
)

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.GenerateVerificationQRInput, domain.QRCodeResult](),
	newMCPToolRegistrar[domain.GenerateVPQueryQRInput, domain.QRCodeResult](),
	newMCPToolRegistrar[domain.CheckVerificationStatusInput, domain.VerificationStatusResult](),
	newMCPToolRegistrar[domain.CreateSchemaInput, domain.APIResult](),
	newMCPToolRegistrar[domain.NoInput, domain.SchemaListResult](),
	newMCPToolRegistrar[domain.SchemaIDInput, domain.APIResult](),
	newMCPToolRegistrar[domain.SchemaIDInput, domain.DeleteResult](),
	newMCPToolRegistrar[domain.SchemaTypeInput, domain.SchemaExistsResult](),
	newMCPToolRegistrar[domain.SchemaTypeInput, domain.APIResult](),
	newMCPToolRegistrar[domain.CreateOfferingInput, domain.APIResult](),
	newMCPToolRegistrar[domain.CreateVPQueryInput, domain.APIResult](),
	newMCPToolRegistrar[domain.NoInput, domain.VPQueryListResult](),
	newMCPToolRegistrar[domain.VPQueryIDInput, domain.APIResult](),
	newMCPToolRegistrar[domain.VPQueryIDInput, domain.DeleteResult](),
	newMCPToolRegistrar[domain.ShowQRCodeInput, domain.ShowQRCodeResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

func newMCPRegistrationModules(b backends) []mcpRegistrationModule {
	return []mcpRegistrationModule{
		{
			name: mcpVerificationToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				return registerVerificationTools(registrar, b.verification)
			},
		},
		{
			name: mcpIssuerToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				return registerIssuerTools(registrar, b.issuer)
			},
		},
		{
			name: mcpVPQueryToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				return registerVPQueryTools(registrar, b.verifierService)
			},
		},
	}
}
