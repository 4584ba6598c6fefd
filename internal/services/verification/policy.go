package verification

import (
	"fmt"
	"strings"
)

// TerminalPolicy decides what a parsed message without a truthy "result"
// field means.
type TerminalPolicy string

const (
	// TerminalOnResult records such messages as progress: the attempt stays
	// pending and only a message carrying a result finalizes it.
	TerminalOnResult TerminalPolicy = "result"
	// TerminalOnMessage reports the first parsed message as completed, as
	// legacy verifier clients expect. The stream stays open until a result or
	// error arrives so the connection is released cleanly.
	TerminalOnMessage TerminalPolicy = "message"
)

// ParseTerminalPolicy validates a configured policy name. Empty selects
// TerminalOnResult.
func ParseTerminalPolicy(value string) (TerminalPolicy, error) {
	switch TerminalPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", TerminalOnResult:
		return TerminalOnResult, nil
	case TerminalOnMessage:
		return TerminalOnMessage, nil
	default:
		return "", fmt.Errorf("terminal policy %q is not supported: must be %q or %q", value, TerminalOnResult, TerminalOnMessage)
	}
}
