package plot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/google/uuid"

	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/report"
)

// GenerationError means the visualization stage failed. Callers downgrade to
// partial success; a plot failure never invalidates the parse.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return "plot generation: " + e.Reason + ": " + e.Err.Error()
	}
	return "plot generation: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Renderer draws one PNG per scored test: the reference band with a marker
// for the measured value.
type Renderer interface {
	Render(rep *report.ParsedReport) ([]string, error)
}

type renderer struct {
	dir string
	log *logger.Logger
}

func NewRenderer(dir string, log *logger.Logger) Renderer {
	return &renderer{dir: dir, log: log.With("service", "plot.Renderer")}
}

const (
	plotW = 640
	plotH = 160
)

func (r *renderer) Render(rep *report.ParsedReport) ([]string, error) {
	if rep == nil || len(rep.Tests) == 0 {
		return nil, &GenerationError{Reason: "nothing to plot"}
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, &GenerationError{Reason: "create plot directory", Err: err}
	}

	batch := uuid.New().String()
	var refs []string
	for i, t := range rep.Tests {
		if !t.Scored() {
			continue
		}
		name := fmt.Sprintf("%s_%02d.png", batch, i)
		path := filepath.Join(r.dir, name)
		if err := r.drawTest(t, path); err != nil {
			return nil, &GenerationError{Reason: fmt.Sprintf("render %s", t.Name), Err: err}
		}
		refs = append(refs, name)
	}
	if len(refs) == 0 {
		return nil, &GenerationError{Reason: "no test carries a reference range"}
	}
	r.log.Debug("plots rendered", "count", len(refs), "dir", r.dir)
	return refs, nil
}

func (r *renderer) drawTest(t report.LabTestResult, path string) error {
	low, high := *t.ReferenceLow, *t.ReferenceHigh

	// Scale so the band sits in the middle and the value stays on canvas.
	span := high - low
	if span <= 0 {
		span = 1
	}
	min := low - span/2
	max := high + span/2
	if t.Value < min {
		min = t.Value - span/10
	}
	if t.Value > max {
		max = t.Value + span/10
	}
	x := func(v float64) float64 {
		return 40 + (v-min)/(max-min)*(plotW-80)
	}

	dc := gg.NewContext(plotW, plotH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Reference band.
	dc.SetRGBA(0.55, 0.78, 0.55, 0.6)
	dc.DrawRectangle(x(low), 60, x(high)-x(low), 40)
	dc.Fill()

	// Axis.
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.SetLineWidth(1)
	dc.DrawLine(40, 100, plotW-40, 100)
	dc.Stroke()

	// Value marker, colored by flag.
	switch t.Flag {
	case report.FlagNormal:
		dc.SetRGB(0.13, 0.45, 0.13)
	default:
		dc.SetRGB(0.75, 0.15, 0.15)
	}
	dc.DrawCircle(x(t.Value), 80, 7)
	dc.Fill()

	dc.SetRGB(0.1, 0.1, 0.1)
	dc.DrawString(fmt.Sprintf("%s: %g %s (%s)", t.Name, t.Value, t.Unit, t.Flag), 40, 30)
	dc.DrawString(fmt.Sprintf("%g", low), x(low)-10, 120)
	dc.DrawString(fmt.Sprintf("%g", high), x(high)-10, 120)

	return dc.SavePNG(path)
}
