package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/report"
)

// NarrativeModel is the optional LLM enrichment backend. Declared here, on
// the consuming side; the agent package provides the Gemini implementation.
type NarrativeModel interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Severity bands how far outside its reference range a value sits.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeverityMarked   Severity = "marked"
)

// Finding is one out-of-range test with its deviation contextualized.
// Every field is derived from the report; nothing here comes from a model.
type Finding struct {
	Test      report.LabTestResult `json:"test"`
	Severity  Severity             `json:"severity"`
	Deviation float64              `json:"deviation_pct"`
}

type Insights struct {
	Summary   string    `json:"summary"`
	Findings  []Finding `json:"findings"`
	Narrative string    `json:"narrative,omitempty"`
	Guidance  string    `json:"guidance"`
}

type Service struct {
	model NarrativeModel
	log   *logger.Logger
}

func NewService(model NarrativeModel, log *logger.Logger) *Service {
	return &Service{model: model, log: log.With("service", "insight")}
}

// Generate derives insights from a parsed report. The findings, summary and
// guidance are computed locally and are always returned; the narrative is
// best-effort LLM enrichment. When the backend is down, Generate returns the
// deterministic insights together with a non-nil error so the caller can log
// the degradation and proceed.
func (s *Service) Generate(ctx context.Context, rep *report.ParsedReport) (*Insights, error) {
	ins := &Insights{
		Findings: findings(rep),
		Guidance: "This summary is informational, not a diagnosis. Discuss abnormal results with a clinician.",
	}
	ins.Summary = summarize(rep, ins.Findings)

	if s.model == nil {
		return ins, nil
	}
	narrative, err := s.narrative(ctx, rep, ins.Findings)
	if err != nil {
		return ins, fmt.Errorf("insight narrative: %w", err)
	}
	ins.Narrative = narrative
	return ins, nil
}

// findings keeps report order and only includes tests whose own reference
// range flagged them.
func findings(rep *report.ParsedReport) []Finding {
	var out []Finding
	for _, t := range rep.Tests {
		if t.Flag == report.FlagNormal || !t.Scored() {
			continue
		}
		out = append(out, Finding{
			Test:      t,
			Severity:  severity(t),
			Deviation: deviation(t),
		})
	}
	return out
}

// deviation is the distance from the violated bound as a percentage of the
// range width.
func deviation(t report.LabTestResult) float64 {
	low, high := *t.ReferenceLow, *t.ReferenceHigh
	width := high - low
	if width <= 0 {
		width = 1
	}
	switch t.Flag {
	case report.FlagLow:
		return (low - t.Value) / width * 100
	case report.FlagHigh:
		return (t.Value - high) / width * 100
	}
	return 0
}

func severity(t report.LabTestResult) Severity {
	d := deviation(t)
	switch {
	case d < 25:
		return SeverityMild
	case d < 75:
		return SeverityModerate
	default:
		return SeverityMarked
	}
}

func summarize(rep *report.ParsedReport, fs []Finding) string {
	if len(fs) == 0 {
		return fmt.Sprintf("All %d reported tests are within their reference ranges.", len(rep.Tests))
	}
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		parts = append(parts, fmt.Sprintf("%s is %sly %s (%g %s)",
			f.Test.Name, f.Severity, f.Test.Flag, f.Test.Value, f.Test.Unit))
	}
	return fmt.Sprintf("%d of %d tests are out of range: %s.",
		len(fs), len(rep.Tests), strings.Join(parts, "; "))
}

type narrativeResponse struct {
	Narrative string `json:"narrative"`
}

func (s *Service) narrative(ctx context.Context, rep *report.ParsedReport, fs []Finding) (string, error) {
	var sb strings.Builder
	sb.WriteString("You are a medical assistant. Write a short, non-diagnostic narrative (3-5 sentences) ")
	sb.WriteString("about this blood test report. Mention only the values listed below; never invent results. ")
	sb.WriteString("Return ONLY a JSON object: {\"narrative\": \"...\"}\n\nResults:\n")
	for _, t := range rep.Tests {
		sb.WriteString(fmt.Sprintf("- %s: %g %s (%s)\n", t.Name, t.Value, t.Unit, t.Flag))
	}
	if len(fs) > 0 {
		sb.WriteString("\nOut of range:\n")
		for _, f := range fs {
			sb.WriteString(fmt.Sprintf("- %s: %s, %s\n", f.Test.Name, f.Test.Flag, f.Severity))
		}
	}

	raw, err := s.model.GenerateJSON(ctx, sb.String())
	if err != nil {
		return "", err
	}
	var resp narrativeResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		// Model ignored the JSON contract; the raw text is still usable.
		s.log.Warn("narrative was not valid JSON, using raw text")
		return strings.TrimSpace(raw), nil
	}
	return resp.Narrative, nil
}
