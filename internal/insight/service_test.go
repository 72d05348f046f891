package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/report"
)

type fakeNarrativeModel struct {
	json  string
	err   error
	calls int
}

func (m *fakeNarrativeModel) GenerateJSON(context.Context, string) (string, error) {
	m.calls++
	return m.json, m.err
}

func ptr(f float64) *float64 { return &f }

func testReport() *report.ParsedReport {
	return &report.ParsedReport{
		Tests: []report.LabTestResult{
			{Name: "Hemoglobin", Value: 10.2, Unit: "g/dL", ReferenceLow: ptr(13.5), ReferenceHigh: ptr(17.5), Flag: report.FlagLow},
			{Name: "Glucose", Value: 95, Unit: "mg/dL", ReferenceLow: ptr(70), ReferenceHigh: ptr(110), Flag: report.FlagNormal},
			{Name: "ESR", Value: 45, Unit: "mm/hr", ReferenceLow: ptr(0), ReferenceHigh: ptr(20), Flag: report.FlagHigh},
		},
	}
}

func TestGenerateFindings(t *testing.T) {
	svc := NewService(nil, logger.NewNop())
	ins, err := svc.Generate(context.Background(), testReport())
	require.NoError(t, err)

	require.Len(t, ins.Findings, 2)
	assert.Equal(t, "Hemoglobin", ins.Findings[0].Test.Name)
	assert.Equal(t, report.FlagLow, ins.Findings[0].Test.Flag)
	assert.Equal(t, "ESR", ins.Findings[1].Test.Name)
	assert.Equal(t, report.FlagHigh, ins.Findings[1].Test.Flag)
}

func TestGenerateSeverityBands(t *testing.T) {
	svc := NewService(nil, logger.NewNop())

	mk := func(value float64) *report.ParsedReport {
		return &report.ParsedReport{Tests: []report.LabTestResult{
			{Name: "Hemoglobin", Value: value, Unit: "g/dL", ReferenceLow: ptr(13.5), ReferenceHigh: ptr(17.5), Flag: report.FlagLow},
		}}
	}

	// Range width is 4.0: 13.0 is 12.5% below, 11.5 is 50% below, 9.0 is >100% below.
	for value, want := range map[float64]Severity{
		13.0: SeverityMild,
		11.5: SeverityModerate,
		9.0:  SeverityMarked,
	} {
		ins, err := svc.Generate(context.Background(), mk(value))
		require.NoError(t, err)
		require.Len(t, ins.Findings, 1)
		assert.Equal(t, want, ins.Findings[0].Severity, "value %g", value)
	}
}

func TestGenerateAllNormal(t *testing.T) {
	svc := NewService(nil, logger.NewNop())
	rep := &report.ParsedReport{Tests: []report.LabTestResult{
		{Name: "Glucose", Value: 95, Unit: "mg/dL", ReferenceLow: ptr(70), ReferenceHigh: ptr(110), Flag: report.FlagNormal},
	}}
	ins, err := svc.Generate(context.Background(), rep)
	require.NoError(t, err)
	assert.Empty(t, ins.Findings)
	assert.Contains(t, ins.Summary, "within their reference ranges")
}

func TestGenerateNarrativeEnrichment(t *testing.T) {
	model := &fakeNarrativeModel{json: `{"narrative":"Hemoglobin is mildly low; the rest looks fine."}`}
	svc := NewService(model, logger.NewNop())

	ins, err := svc.Generate(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin is mildly low; the rest looks fine.", ins.Narrative)
	assert.Equal(t, 1, model.calls)
}

func TestGenerateBackendDownDegradesGracefully(t *testing.T) {
	model := &fakeNarrativeModel{err: errors.New("connection refused")}
	svc := NewService(model, logger.NewNop())

	ins, err := svc.Generate(context.Background(), testReport())
	require.Error(t, err, "the degradation must be reported")
	require.NotNil(t, ins, "deterministic insights must survive a backend outage")
	assert.Empty(t, ins.Narrative)
	assert.Len(t, ins.Findings, 2)
	assert.NotEmpty(t, ins.Summary)
	assert.NotEmpty(t, ins.Guidance)
}

func TestGenerateNonJSONNarrativeFallsBack(t *testing.T) {
	model := &fakeNarrativeModel{json: "Plain prose that ignored the contract."}
	svc := NewService(model, logger.NewNop())

	ins, err := svc.Generate(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "Plain prose that ignored the contract.", ins.Narrative)
}

func TestSummaryMentionsOnlyReportValues(t *testing.T) {
	svc := NewService(nil, logger.NewNop())
	ins, err := svc.Generate(context.Background(), testReport())
	require.NoError(t, err)

	assert.Contains(t, ins.Summary, "10.2 g/dL")
	assert.Contains(t, ins.Summary, "45 mm/hr")
	assert.NotContains(t, ins.Summary, "Platelet")
}
