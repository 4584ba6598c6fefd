package domain

import (
	"context"

	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// VerificationService starts verification attempts and reports their status.
type VerificationService interface {
	Initiate(ctx context.Context, endpoint string) (verification.Initiation, error)
	InitiateVPQuery(ctx context.Context, vpQueryID string) (verification.Initiation, error)
	CheckStatus(ctx context.Context, state string) verification.StatusView
}

// GenerateVerificationQRInput represents the MCP tool input for starting an endpoint verification.
type GenerateVerificationQRInput struct {
	Endpoint string `json:"endpoint" jsonschema:"the name of the verification endpoint (e.g. 'fairdrop')"`
}

// GenerateVPQueryQRInput represents the MCP tool input for starting a VP query verification.
type GenerateVPQueryQRInput struct {
	VPQueryID string `json:"vpQueryId" jsonschema:"the vp query id to use for the verification"`
}

// QRCodeResult represents the MCP tool output for a started verification.
type QRCodeResult struct {
	QRCodeURL string `json:"qr_code_url,omitempty" jsonschema:"URL of the QR code the user must scan"`
	State     string `json:"state,omitempty" jsonschema:"state ID to pass to check_verification_status"`
	Error     bool   `json:"error,omitempty" jsonschema:"true when the verification could not be started"`
	Message   string `json:"message" jsonschema:"next step or failure reason"`
}

// CheckVerificationStatusInput represents the MCP tool input for polling a verification.
type CheckVerificationStatusInput struct {
	State string `json:"state" jsonschema:"the state ID returned from the generate_verification_qr tool"`
}

// VerificationStatusResult represents the MCP tool output for a verification poll.
type VerificationStatusResult struct {
	Status      string `json:"status" jsonschema:"pending, completed, error or not_found"`
	Result      string `json:"result,omitempty" jsonschema:"verification_status reported by the verifier"`
	Verified    *bool  `json:"verified,omitempty" jsonschema:"whether the credential was verified"`
	Endpoint    string `json:"endpoint,omitempty" jsonschema:"verification endpoint"`
	Data        any    `json:"data,omitempty" jsonschema:"verifier payload of the last event"`
	Timestamp   int64  `json:"timestamp,omitempty" jsonschema:"unix milliseconds of the last update"`
	LastUpdated string `json:"lastUpdated,omitempty" jsonschema:"RFC3339 timestamp of the last update"`
	Error       string `json:"error,omitempty" jsonschema:"failure description"`
	Message     string `json:"message" jsonschema:"what to do next"`
}

// GenerateVerificationQRTool defines the MCP tool schema for starting an endpoint verification.
func GenerateVerificationQRTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "generate_verification_qr",
		Description: "Starts the verification process and generates a QR code for users to scan. Returns a state ID and QR code URL. " +
			"ALWAYS call this tool first before checking results. After calling this tool, immediately call show_qr_code, " +
			"return the QR code link to the user and then call check_verification_status with the returned state ID. " +
			"The required 'endpoint' argument names the verification endpoint to use (e.g. 'fairdrop').",
	}
}

// GenerateVPQueryQRTool defines the MCP tool schema for starting a VP query verification.
func GenerateVPQueryQRTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "generate_verification_qr_for_vp_query",
		Description: "Starts a verification bound to a stored VP query and generates a QR code for users to scan. Returns a state ID and QR code URL. " +
			"ALWAYS call this tool first before checking results. After calling this tool, immediately call show_qr_code; " +
			"the QR code link must be returned to the user before any next step. Then call check_verification_status with the returned state ID. " +
			"The required 'vpQueryId' argument names the VP query to verify against.",
	}
}

// CheckVerificationStatusTool defines the MCP tool schema for polling a verification.
func CheckVerificationStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "check_verification_status",
		Description: "Checks the status of a verification started with generate_verification_qr. Takes the 'state' returned by that tool. " +
			"This tool might return 'pending' multiple times: if so, KEEP CALLING it with the same state ID until you get a 'completed' or 'error' status. " +
			"The process can take up to 2 minutes, so be patient and persistent.",
	}
}

// GenerateVerificationQRHandler starts an endpoint verification.
func GenerateVerificationQRHandler(service VerificationService) mcp.ToolHandlerFor[GenerateVerificationQRInput, QRCodeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GenerateVerificationQRInput) (*mcp.CallToolResult, QRCodeResult, error) {
		initiation, err := service.Initiate(ctx, input.Endpoint)
		return nil, qrCodeResult(initiation, err), nil
	}
}

// GenerateVPQueryQRHandler starts a VP query verification.
func GenerateVPQueryQRHandler(service VerificationService) mcp.ToolHandlerFor[GenerateVPQueryQRInput, QRCodeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GenerateVPQueryQRInput) (*mcp.CallToolResult, QRCodeResult, error) {
		initiation, err := service.InitiateVPQuery(ctx, input.VPQueryID)
		return nil, qrCodeResult(initiation, err), nil
	}
}

func qrCodeResult(initiation verification.Initiation, err error) QRCodeResult {
	if err != nil {
		return QRCodeResult{Error: true, Message: failureMessage("generate QR code", err)}
	}
	return QRCodeResult{
		QRCodeURL: initiation.QRCodeURL,
		State:     initiation.State,
		Message:   initiation.Message,
	}
}

// CheckVerificationStatusHandler polls a verification.
func CheckVerificationStatusHandler(service VerificationService) mcp.ToolHandlerFor[CheckVerificationStatusInput, VerificationStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CheckVerificationStatusInput) (*mcp.CallToolResult, VerificationStatusResult, error) {
		view := service.CheckStatus(ctx, input.State)
		return nil, VerificationStatusResult{
			Status:      view.Status,
			Result:      view.Result,
			Verified:    view.Verified,
			Endpoint:    view.Endpoint,
			Data:        view.Data,
			Timestamp:   view.Timestamp,
			LastUpdated: view.LastUpdated,
			Error:       view.Error,
			Message:     view.Message,
		}, nil
	}
}
