package export

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"blood-report-agent/internal/insight"
	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/report"
)

// MessengerClient delivers the rendered summary to a clinician chat.
type MessengerClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// Service renders a PDF summary of an upload and, when delivery is
// configured, forwards it to the clinician chat. Delivery is best-effort:
// a failure here never fails the upload.
type Service struct {
	messenger       MessengerClient
	clinicianChatID int64
	log             *logger.Logger
}

func NewService(messenger MessengerClient, clinicianChatID int64, log *logger.Logger) *Service {
	return &Service{
		messenger:       messenger,
		clinicianChatID: clinicianChatID,
		log:             log.With("service", "export"),
	}
}

// Enabled reports whether delivery is configured at all.
func (s *Service) Enabled() bool {
	return s.messenger != nil && s.clinicianChatID != 0
}

func (s *Service) SendClinicianSummary(ctx context.Context, rep *report.ParsedReport, ins *insight.Insights) error {
	if !s.Enabled() {
		return nil
	}
	data, err := RenderPDF(rep, ins)
	if err != nil {
		return fmt.Errorf("render clinician summary: %w", err)
	}
	if err := s.messenger.SendMessage(ctx, s.clinicianChatID, summaryCaption(rep, ins)); err != nil {
		return fmt.Errorf("announce clinician summary: %w", err)
	}
	fileName := fmt.Sprintf("report_%s.pdf", uuid.New().String())
	if err := s.messenger.SendDocument(ctx, s.clinicianChatID, data, fileName); err != nil {
		return fmt.Errorf("deliver clinician summary: %w", err)
	}
	s.log.Info("clinician summary delivered", "tests", len(rep.Tests))
	return nil
}

// summaryCaption is the text announcement sent ahead of the PDF.
func summaryCaption(rep *report.ParsedReport, ins *insight.Insights) string {
	abnormal := 0
	for _, t := range rep.Tests {
		if t.Flag != report.FlagNormal {
			abnormal++
		}
	}
	caption := fmt.Sprintf("New blood report: %d results, %d flagged.", len(rep.Tests), abnormal)
	if ins != nil && ins.Summary != "" {
		caption += " " + ins.Summary
	}
	return caption
}
