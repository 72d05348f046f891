package report

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flag marks where a measured value sits relative to its reference range.
type Flag string

const (
	FlagNormal Flag = "normal"
	FlagLow    Flag = "low"
	FlagHigh   Flag = "high"
)

// LabTestResult is one lab measurement with its unit, reference range and
// abnormality flag. Reference bounds are nil when neither the document nor
// the builtin range table supplied a range; such rows keep FlagNormal.
type LabTestResult struct {
	Name          string   `json:"name"`
	Value         float64  `json:"value"`
	Unit          string   `json:"unit"`
	ReferenceLow  *float64 `json:"reference_low,omitempty"`
	ReferenceHigh *float64 `json:"reference_high,omitempty"`
	Flag          Flag     `json:"flag"`
}

// Scored reports whether the flag was derived from an actual reference range.
func (t LabTestResult) Scored() bool {
	return t.ReferenceLow != nil && t.ReferenceHigh != nil
}

type PatientMetadata struct {
	Name  string `json:"name,omitempty"`
	Date  string `json:"date,omitempty"`
	LabID string `json:"lab_id,omitempty"`
}

// ParsedReport is the canonical structured representation of a report.
// It is created once per upload, immutable afterwards, and crosses the chat
// boundary in its JSON form.
type ParsedReport struct {
	Tests    []LabTestResult  `json:"tests"`
	Patient  *PatientMetadata `json:"patient_metadata,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Find returns the first test whose name matches after canonicalization.
func (r *ParsedReport) Find(name string) (LabTestResult, bool) {
	want := canonicalTestName(name)
	for _, t := range r.Tests {
		if canonicalTestName(t.Name) == want {
			return t, true
		}
	}
	return LabTestResult{}, false
}

// Encode serializes the report to its transport form.
func (r *ParsedReport) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Decode reconstructs a ParsedReport from its transport form and re-validates
// it. Anything malformed is a client error: the chat boundary must never
// operate on a best-effort coercion of the payload.
func Decode(raw []byte) (*ParsedReport, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var r ParsedReport
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("malformed report payload: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the structural invariants every ParsedReport must hold.
func (r *ParsedReport) Validate() error {
	if len(r.Tests) == 0 {
		return fmt.Errorf("report has no tests")
	}
	for i, t := range r.Tests {
		if t.Name == "" {
			return fmt.Errorf("test %d: missing name", i)
		}
		if t.Unit == "" {
			return fmt.Errorf("test %q: value without a unit", t.Name)
		}
		if (t.ReferenceLow == nil) != (t.ReferenceHigh == nil) {
			return fmt.Errorf("test %q: half-open reference range", t.Name)
		}
		if t.Scored() && *t.ReferenceLow > *t.ReferenceHigh {
			return fmt.Errorf("test %q: reference low %g above high %g", t.Name, *t.ReferenceLow, *t.ReferenceHigh)
		}
		switch t.Flag {
		case FlagNormal, FlagLow, FlagHigh:
		default:
			return fmt.Errorf("test %q: unknown flag %q", t.Name, t.Flag)
		}
	}
	return nil
}

// ParseError means the document contained no recognizable lab-value rows at
// all. A different input file is needed; retrying the same bytes cannot help.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "no lab values recognized: " + e.Reason
}

// BloodReportError means lab-value rows were recognized but every one of them
// violated a domain constraint (implausible unit, inverted reference range,
// value outside physiological bounds).
type BloodReportError struct {
	Reason string
}

func (e *BloodReportError) Error() string {
	return "blood report invalid: " + e.Reason
}
