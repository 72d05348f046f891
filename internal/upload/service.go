package upload

import (
	"context"
	"fmt"
	"time"

	"blood-report-agent/internal/document"
	"blood-report-agent/internal/export"
	"blood-report-agent/internal/insight"
	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/plot"
	"blood-report-agent/internal/report"
)

// Status discriminates upload outcomes structurally instead of by error
// class: a partial result still carries the full ParsedReport.
type Status string

const (
	StatusFull    Status = "full"
	StatusPartial Status = "partial"
)

// Result is what the upload path hands back to the request layer. Degraded
// names the enrichment stages that failed; the report itself is always the
// primary deliverable.
type Result struct {
	Status   Status               `json:"status"`
	Report   *report.ParsedReport `json:"report"`
	Insights *insight.Insights    `json:"insights,omitempty"`
	PlotRefs []string             `json:"plot_refs,omitempty"`
	Degraded []string             `json:"degraded,omitempty"`
}

type Service interface {
	ProcessUpload(ctx context.Context, filename string, data []byte) (*Result, error)
}

type service struct {
	loader   document.Loader
	insights *insight.Service
	plots    plot.Renderer
	exporter *export.Service
	log      *logger.Logger
}

func NewService(loader document.Loader, insights *insight.Service, plots plot.Renderer, exporter *export.Service, log *logger.Logger) Service {
	return &service{
		loader:   loader,
		insights: insights,
		plots:    plots,
		exporter: exporter,
		log:      log.With("service", "upload"),
	}
}

// ProcessUpload runs the loader → parser → (insights, plots) pipeline.
// Parse failures fail the upload; insight and plot failures degrade it to a
// partial success.
func (s *service) ProcessUpload(ctx context.Context, filename string, data []byte) (*Result, error) {
	text, err := s.loader.Extract(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	rep, err := report.Parse(text)
	if err != nil {
		return nil, err
	}

	res := &Result{Report: rep, Status: StatusFull}

	ins, err := s.insights.Generate(ctx, rep)
	res.Insights = ins
	if err != nil {
		s.log.Warn("insight enrichment degraded", "error", err)
		res.Degraded = append(res.Degraded, "insights")
	}

	refs, err := s.plots.Render(rep)
	if err != nil {
		s.log.Warn("plot stage failed", "error", err)
		res.Degraded = append(res.Degraded, "plots")
	} else {
		res.PlotRefs = refs
	}

	if len(res.Degraded) > 0 {
		res.Status = StatusPartial
	}

	if s.exporter != nil && s.exporter.Enabled() {
		go func(rep *report.ParsedReport, ins *insight.Insights) {
			bgCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			if err := s.exporter.SendClinicianSummary(bgCtx, rep, ins); err != nil {
				s.log.Warn("clinician summary delivery failed", "error", err)
			}
		}(rep, ins)
	}

	s.log.Info("upload processed", "tests", len(rep.Tests), "status", res.Status, "warnings", len(rep.Warnings))
	return res, nil
}
