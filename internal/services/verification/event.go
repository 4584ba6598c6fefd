package verification

import (
	"encoding/json"
	"fmt"
)

// backendEvent is one parsed verifier message.
type backendEvent struct {
	payload any
	status  string
	final   bool
}

// parseBackendEvent decodes a verifier message. The message is final when
// its "result" field is truthy: present and not null, false, 0 or "".
func parseBackendEvent(data string) (backendEvent, error) {
	var payload any
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return backendEvent{}, fmt.Errorf("decode event payload: %w", err)
	}
	event := backendEvent{payload: payload}
	fields, ok := payload.(map[string]any)
	if !ok {
		return event, nil
	}
	switch status := fields["verification_status"].(type) {
	case nil:
	case string:
		event.status = status
	default:
		event.status = fmt.Sprint(status)
	}
	event.final = truthy(fields["result"])
	return event, nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}
