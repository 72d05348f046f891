package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLowHemoglobin(t *testing.T) {
	rep, err := Parse("Hemoglobin 10.2 g/dL (13.5-17.5)\n")
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)

	got := rep.Tests[0]
	assert.Equal(t, "Hemoglobin", got.Name)
	assert.Equal(t, 10.2, got.Value)
	assert.Equal(t, "g/dL", got.Unit)
	assert.Equal(t, FlagLow, got.Flag)
	require.True(t, got.Scored())
	assert.Equal(t, 13.5, *got.ReferenceLow)
	assert.Equal(t, 17.5, *got.ReferenceHigh)
}

func TestParseEnDashRange(t *testing.T) {
	rep, err := Parse("Hemoglobin 10.2 g/dL (13.5–17.5)")
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)
	assert.Equal(t, FlagLow, rep.Tests[0].Flag)
}

func TestParseMultiRow(t *testing.T) {
	text := `COMPLETE BLOOD COUNT
Patient Name: Jane Roe
Date: 12/03/2024
Lab No: CB-10452

Hemoglobin      14.1 g/dL     13.0 - 17.0
WBC Count       12.5 10^3/uL  4.5 - 11.0
Platelet Count  210 10^3/uL   150 - 450
`
	rep, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, rep.Tests, 3)

	assert.Equal(t, FlagNormal, rep.Tests[0].Flag)
	assert.Equal(t, FlagHigh, rep.Tests[1].Flag)
	assert.Equal(t, FlagNormal, rep.Tests[2].Flag)
	assert.Equal(t, "10^3/µL", rep.Tests[1].Unit)

	require.NotNil(t, rep.Patient)
	assert.Equal(t, "Jane Roe", rep.Patient.Name)
	assert.Equal(t, "12/03/2024", rep.Patient.Date)
	assert.Equal(t, "CB-10452", rep.Patient.LabID)
}

func TestParseOrderPreserved(t *testing.T) {
	text := "Glucose 95 mg/dL (70-110)\nHemoglobin 14.0 g/dL (13.0-17.0)\nESR 12 mm/hr (0-20)\n"
	rep, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, rep.Tests, 3)
	assert.Equal(t, "Glucose", rep.Tests[0].Name)
	assert.Equal(t, "Hemoglobin", rep.Tests[1].Name)
	assert.Equal(t, "ESR", rep.Tests[2].Name)
}

func TestParseNoLabValues(t *testing.T) {
	_, err := Parse("Dear patient, thank you for visiting our laboratory.\nYours sincerely.\n")
	var perr *ParseError
	require.True(t, errors.As(err, &perr), "want *ParseError, got %v", err)
}

func TestParseEmptyText(t *testing.T) {
	_, err := Parse("   \n\t\n")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
}

func TestParseAllRowsInvalid(t *testing.T) {
	// Recognizable rows, but the first has no plausible unit and the second
	// carries an inverted reference range.
	text := "Hemoglobin 10.2\nGlucose 95 mg/dL (110-70)\n"
	_, err := Parse(text)
	var berr *BloodReportError
	require.True(t, errors.As(err, &berr), "want *BloodReportError, got %v", err)
}

func TestParseInvertedRangeRowRejected(t *testing.T) {
	text := "Hemoglobin 14.0 g/dL (13.0-17.0)\nGlucose 95 mg/dL (110-70)\n"
	rep, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)
	assert.Equal(t, "Hemoglobin", rep.Tests[0].Name)
	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[0], "Glucose")
}

func TestParseUnitlessRowRejected(t *testing.T) {
	text := "Hemoglobin 14.0 g/dL (13.0-17.0)\nESR 25\n"
	rep, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)
}

func TestParseSanityBoundDropsRow(t *testing.T) {
	// 1020 g/dL is a glued-digit OCR artifact, not a hemoglobin value.
	text := "Hemoglobin 1020 g/dL (13.5-17.5)\nGlucose 95 mg/dL (70-110)\n"
	rep, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)
	assert.Equal(t, "Glucose", rep.Tests[0].Name)
	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[0], "physiological bounds")
}

func TestParseBuiltinRangeFallback(t *testing.T) {
	// No range on the document: the builtin table scores the row.
	rep, err := Parse("Hemoglobin 10.2 g/dL\n")
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)
	assert.Equal(t, FlagLow, rep.Tests[0].Flag)
	assert.True(t, rep.Tests[0].Scored())
}

func TestParseUnknownTestWithoutRangeUnscored(t *testing.T) {
	rep, err := Parse("Serum Widgetase 42 U/L\n")
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)
	assert.False(t, rep.Tests[0].Scored())
	assert.Equal(t, FlagNormal, rep.Tests[0].Flag)
}

func TestParseUnitAliases(t *testing.T) {
	cases := map[string]string{
		"Hemoglobin 14.0 gm/dl (13.0-17.0)":  "g/dL",
		"Glucose 95 MG/DL (70-110)":          "mg/dL",
		"WBC Count 7.5 thou/cumm (4.5-11.0)": "10^3/µL",
		"ESR 12 mm/1hr (0-20)":               "mm/hr",
	}
	for text, wantUnit := range cases {
		rep, err := Parse(text)
		require.NoError(t, err, text)
		require.Len(t, rep.Tests, 1, text)
		assert.Equal(t, wantUnit, rep.Tests[0].Unit, text)
	}
}

func TestParseCommaDecimal(t *testing.T) {
	rep, err := Parse("Hemoglobin 10,2 g/dL (13,5-17,5)")
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)
	assert.Equal(t, 10.2, rep.Tests[0].Value)
	assert.Equal(t, FlagLow, rep.Tests[0].Flag)
}

func TestParseDeterministic(t *testing.T) {
	text := "Hemoglobin 10.2 g/dL (13.5-17.5)\nGlucose 95 mg/dL (70-110)\nESR 25\n"
	first, err := Parse(text)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Parse(text)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNormalizeUnitRejectsStopWords(t *testing.T) {
	assert.Equal(t, "", NormalizeUnit("High"))
	assert.Equal(t, "", NormalizeUnit("normal"))
	assert.Equal(t, "", NormalizeUnit(""))
	assert.Equal(t, "%", NormalizeUnit("%"))
	assert.Equal(t, "g/dL", NormalizeUnit("G/DL"))
}
