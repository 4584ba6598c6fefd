package verification

import "time"

// Status is the lifecycle state of a verification attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Fixed diagnostics recorded on error snapshots.
const (
	ErrorMessageConnection   = "Connection error with verification service"
	ErrorMessageInvalidEvent = "Error processing event data"
	ErrorMessageTimedOut     = "Verification timed out"
	ErrorMessageInterrupted  = "Verification interrupted by server restart"
)

// ResultVerified is the verification_status value of a successful check.
const ResultVerified = "verified"

// Attempt is the known state of one verification attempt, keyed by State.
type Attempt struct {
	State    string
	Endpoint string
	Status   Status
	// Result is the backend's verification_status.
	Result string
	// Data is the decoded backend payload of the latest event.
	Data      any
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Verified reports whether the attempt completed with a verified result.
func (a Attempt) Verified() bool {
	return a.Status == StatusCompleted && a.Result == ResultVerified
}

func newPendingAttempt(state, endpoint string, now time.Time) Attempt {
	return Attempt{
		State:     state,
		Endpoint:  endpoint,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a Attempt) withError(message string, now time.Time) Attempt {
	a.Status = StatusError
	a.Result = ""
	a.Data = nil
	a.Error = message
	a.UpdatedAt = now
	return a
}
