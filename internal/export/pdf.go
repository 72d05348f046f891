package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/signintech/gopdf"

	"blood-report-agent/internal/insight"
	"blood-report-agent/internal/report"
)

// Common DejaVuSans locations across the base images we deploy on.
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// RenderPDF lays out the parsed report and its insights as a one-or-more page
// summary suitable for forwarding to a clinician.
func RenderPDF(rep *report.ParsedReport, ins *insight.Insights) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("load PDF font (is ttf-dejavu installed?): %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Blood Test Report Summary")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Generated: %s", time.Now().Format("02 Jan 2006 15:04")))
	pdf.Br(15)
	if rep.Patient != nil {
		if rep.Patient.Name != "" {
			pdf.Cell(nil, fmt.Sprintf("Patient: %s", rep.Patient.Name))
			pdf.Br(15)
		}
		if rep.Patient.Date != "" {
			pdf.Cell(nil, fmt.Sprintf("Report date: %s", rep.Patient.Date))
			pdf.Br(15)
		}
		if rep.Patient.LabID != "" {
			pdf.Cell(nil, fmt.Sprintf("Lab ref: %s", rep.Patient.LabID))
			pdf.Br(15)
		}
	}
	pdf.Br(10)

	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Results:")
	pdf.Br(15)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	for _, t := range rep.Tests {
		line := fmt.Sprintf("- %s: %g %s [%s]", t.Name, t.Value, t.Unit, t.Flag)
		if t.Scored() {
			line += fmt.Sprintf(" (ref %g-%g)", *t.ReferenceLow, *t.ReferenceHigh)
		}
		lines, _ := pdf.SplitText(line, 500)
		for _, l := range lines {
			pdf.Cell(nil, l)
			pdf.Br(12)
		}
	}
	pdf.Br(15)

	if ins != nil {
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return nil, err
		}
		pdf.Cell(nil, "Insights:")
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return nil, err
		}
		for _, block := range []string{ins.Summary, ins.Narrative, ins.Guidance} {
			if block == "" {
				continue
			}
			lines, _ := pdf.SplitText(block, 500)
			for _, l := range lines {
				pdf.Cell(nil, l)
				pdf.Br(12)
			}
			pdf.Br(6)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
