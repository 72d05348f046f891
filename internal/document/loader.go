package document

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"blood-report-agent/internal/platform/logger"
)

// Loader extracts raw text from an uploaded report file. A loader failure is
// an unrecoverable input error as far as the parser is concerned.
type Loader interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

type loader struct {
	log *logger.Logger

	// Created lazily: image uploads are rare and the Vision client needs
	// ambient GCP credentials that PDF-only deployments do not have.
	// The loader is shared across requests, so the init is once-guarded.
	ocrOnce sync.Once
	ocr     *vision.ImageAnnotatorClient
	ocrErr  error
}

func NewLoader(log *logger.Logger) Loader {
	return &loader{log: log.With("service", "document.Loader")}
}

func (l *loader) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty file %q", filename)
	}
	switch kind(filename, data) {
	case "pdf":
		return l.extractPDF(data)
	case "image":
		return l.extractImage(ctx, data)
	default:
		return "", fmt.Errorf("unsupported file type %q: want PDF, PNG or JPEG", filepath.Ext(filename))
	}
}

func kind(filename string, data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "pdf"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".png", ".jpg", ".jpeg":
		return "image"
	}
	if bytes.HasPrefix(data, []byte("\x89PNG")) || bytes.HasPrefix(data, []byte("\xff\xd8")) {
		return "image"
	}
	return ""
}

// extractPDF pulls the text layer page by page. Pages that fail to extract
// are skipped; a blank text layer overall is left for the parser to report.
func (l *loader) extractPDF(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	enc, err := pdfReader.IsEncrypted()
	if err != nil {
		return "", fmt.Errorf("check PDF encryption: %w", err)
	}
	if enc {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil {
			return "", fmt.Errorf("decrypt PDF: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("PDF is password-protected")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("read PDF page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			l.log.Warn("skipping unreadable PDF page", "page", i, "error", err)
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (l *loader) extractImage(ctx context.Context, data []byte) (string, error) {
	l.ocrOnce.Do(func() {
		l.ocr, l.ocrErr = vision.NewImageAnnotatorClient(ctx)
	})
	if l.ocrErr != nil {
		return "", fmt.Errorf("vision client: %w", l.ocrErr)
	}

	resp, err := l.ocr.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: data},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("document text detection: %w", err)
	}
	res := resp.GetResponses()[0]
	if e := res.GetError(); e != nil {
		return "", fmt.Errorf("document text detection: %s", e.GetMessage())
	}
	annotation := res.GetFullTextAnnotation()
	if annotation == nil {
		return "", nil
	}
	return annotation.GetText(), nil
}
