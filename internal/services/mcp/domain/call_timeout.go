package domain

import (
	"context"
	"fmt"

	"github.com/louisbranch/ssi-verifier-mcp/internal/platform/timeouts"
)

// backendCallTimeout caps one backend call made by a passthrough tool.
const backendCallTimeout = timeouts.BackendRequest

func withBackendTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, backendCallTimeout)
}

// failureMessage renders the message of a folded tool failure.
func failureMessage(action string, err error) string {
	reason := "Unknown error"
	if err != nil && err.Error() != "" {
		reason = err.Error()
	}
	return fmt.Sprintf("Failed to %s: %s", action, reason)
}
