package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/report"
)

// Model is the generation backend the responder talks to. Declared here, on
// the consuming side; the agent package provides the Gemini implementation.
type Model interface {
	Respond(ctx context.Context, system string, history []Turn, message string) (string, error)
}

// Responder produces role-aware answers grounded in a parsed report and the
// session's history. It owns no session state of its own; everything goes
// through the Store.
type Responder struct {
	model Model
	store Store
	log   *logger.Logger
}

func NewResponder(model Model, store Store, log *logger.Logger) *Responder {
	return &Responder{
		model: model,
		store: store,
		log:   log.With("service", "chat.Responder"),
	}
}

// Respond answers one message. Preconditions are checked before the backend
// is called, and the turn is appended to the session only after a successful
// generation, so a failed call never leaves an unpaired user message in the
// history.
func (r *Responder) Respond(ctx context.Context, message string, role Role, rep *report.ParsedReport, sessionID string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", &ValidationError{Field: "role", Reason: err.Error()}
	}
	if rep == nil {
		return "", &ValidationError{Field: "report", Reason: "missing"}
	}
	if err := rep.Validate(); err != nil {
		return "", &ValidationError{Field: "report", Reason: err.Error()}
	}

	if r.model == nil {
		return "", fmt.Errorf("chat generation: %w", ErrBackendUnavailable)
	}

	history := r.store.History(sessionID)
	answer, err := r.model.Respond(ctx, systemPrompt(role, rep), history, message)
	if err != nil {
		return "", fmt.Errorf("chat generation: %w", err)
	}

	r.store.Append(sessionID, Turn{
		Role:      role,
		Message:   message,
		Response:  answer,
		Timestamp: time.Now(),
	})
	r.log.Debug("turn appended", "session_id", sessionID, "role", role, "history_len", len(history)+1)
	return answer, nil
}

// systemPrompt frames the answer for the asking party. Both roles get the
// same facts; only register and vocabulary differ.
func systemPrompt(role Role, rep *report.ParsedReport) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant answering questions about one specific blood test report.\n")
	sb.WriteString("The report contains exactly these results:\n")
	for _, t := range rep.Tests {
		sb.WriteString(fmt.Sprintf("- %s: %g %s (flag: %s", t.Name, t.Value, t.Unit, t.Flag))
		if t.Scored() {
			sb.WriteString(fmt.Sprintf(", reference %g-%g", *t.ReferenceLow, *t.ReferenceHigh))
		}
		sb.WriteString(")\n")
	}
	sb.WriteString("\nRules:\n")
	sb.WriteString("- Ground every factual claim in the results above or in the prior conversation.\n")
	sb.WriteString("- If asked about a test that is not listed, say the report does not include it. Never invent a value.\n")
	sb.WriteString("- Do not diagnose; recommend consulting a clinician for treatment decisions.\n")
	switch role {
	case RoleDoctor:
		sb.WriteString("- You are answering a clinician: clinical terminology and differential framing are appropriate.\n")
	default:
		sb.WriteString("- You are answering a patient: use plain language and explain any medical terms you need.\n")
	}
	return sb.String()
}
