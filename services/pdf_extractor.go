package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"claims-intake-platform/internal/logger"
	"claims-intake-platform/internal/telemetry"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when no extraction method produced text
var ErrNoText = errors.New("no text extracted from PDF")

// maxPDFBytes caps in-memory extraction
const maxPDFBytes = 200 << 20

// TextExtractor turns a PDF document into plain text
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte) (*ExtractionResult, error)
}

// ExtractionResult contains the result of PDF text extraction
type ExtractionResult struct {
	Text           string
	Pages          int
	Method         string
	ProcessingTime time.Duration
	WordCount      int
}

type extractMethod struct {
	name    string
	extract func(context.Context, []byte) (*ExtractionResult, error)
}

// PDFExtractor tries pdftotext first when installed, then the pure Go reader
type PDFExtractor struct {
	metrics    *telemetry.Metrics
	usePoppler bool
}

func NewPDFExtractor(metrics *telemetry.Metrics) *PDFExtractor {
	_, err := exec.LookPath("pdftotext")
	return &PDFExtractor{metrics: metrics, usePoppler: err == nil}
}

// ExtractText extracts text from PDF bytes using the available methods in order
func (e *PDFExtractor) ExtractText(ctx context.Context, content []byte) (*ExtractionResult, error) {
	start := time.Now()

	if len(content) > maxPDFBytes {
		return nil, fmt.Errorf("pdf too large for in-memory extraction")
	}

	methods := []extractMethod{{"go-pdf", extractWithGoPDF}}
	if e.usePoppler {
		methods = append([]extractMethod{{"poppler", extractWithPoppler}}, methods...)
	}

	var lastErr error = ErrNoText
	for _, method := range methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := method.extract(ctx, content)
		if err != nil {
			logger.Debug("PDF extraction method failed", "method", method.name, "error", err)
			lastErr = err
			continue
		}

		result.Method = method.name
		result.ProcessingTime = time.Since(start)
		result.WordCount = len(strings.Fields(result.Text))
		e.metrics.RecordPDFProcessing(result.ProcessingTime.Seconds(), "success")
		return result, nil
	}

	e.metrics.RecordPDFProcessing(time.Since(start).Seconds(), "failed")
	return nil, fmt.Errorf("all extraction methods failed: %w", lastErr)
}

// extractWithPoppler uses poppler-utils (pdftotext) for extraction
func extractWithPoppler(ctx context.Context, content []byte) (*ExtractionResult, error) {
	extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, ErrNoText
	}

	return &ExtractionResult{
		Text:  text,
		Pages: strings.Count(text, "\f") + 1,
	}, nil
}

// extractWithGoPDF uses the Go PDF library for extraction
func extractWithGoPDF(_ context.Context, content []byte) (*ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var b strings.Builder
	pages := reader.NumPage()
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract PDF page", "page", i, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, ErrNoText
	}

	return &ExtractionResult{Text: text, Pages: pages}, nil
}
