package chat

import (
	"context"
	"encoding/json"

	"blood-report-agent/internal/report"
)

// Request is the chat boundary payload. The report travels serialized on
// every call: the core is stateless with respect to report content, only
// conversational turns are session-scoped.
type Request struct {
	Message   string          `json:"message"`
	Role      string          `json:"role"`
	Report    json.RawMessage `json:"report"`
	SessionID string          `json:"session_id"`
}

type Service interface {
	ProcessChat(ctx context.Context, req Request) (string, error)
}

type service struct {
	responder *Responder
}

func NewService(responder *Responder) Service {
	return &service{responder: responder}
}

func (s *service) ProcessChat(ctx context.Context, req Request) (string, error) {
	if req.SessionID == "" {
		return "", &ValidationError{Field: "session_id", Reason: "must not be empty"}
	}
	if len(req.Report) == 0 {
		return "", &ValidationError{Field: "report", Reason: "upload a report before starting the chat"}
	}
	role, err := ParseRole(req.Role)
	if err != nil {
		return "", &ValidationError{Field: "role", Reason: err.Error()}
	}
	rep, err := report.Decode(req.Report)
	if err != nil {
		return "", &ValidationError{Field: "report", Reason: err.Error()}
	}
	return s.responder.Respond(ctx, req.Message, role, rep, req.SessionID)
}
