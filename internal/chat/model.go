package chat

import (
	"errors"
	"fmt"
	"time"
)

// ErrBackendUnavailable marks transient generation-backend failures: network
// errors, rate limits, server-side outages. Safe for the caller to retry with
// backoff; session history is untouched when it occurs.
var ErrBackendUnavailable = errors.New("generation backend unavailable")

// Role is supplied per message and conditions the register of the answer,
// never which facts are disclosed.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleDoctor:
		return Role(s), nil
	default:
		return "", fmt.Errorf("role must be %q or %q, got %q", RolePatient, RoleDoctor, s)
	}
}

// Turn is one completed (message, response) exchange. Turns only enter a
// session after the response was produced, so the history is always a
// well-formed sequence of pairs.
type Turn struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationError covers client-fixable precondition failures on the chat
// boundary. It is never worth retrying server-side.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
