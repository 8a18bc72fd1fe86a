package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/internal/precedent"
	"claims-intake-platform/models"
)

var (
	// ErrNotPDF rejects a processing request containing a non-PDF file
	ErrNotPDF = errors.New("only PDF files are accepted")
	// ErrNoPrecedent is returned when the precedent search finds nothing
	ErrNoPrecedent = errors.New("no similar precedent found")
)

const (
	extractionSystemPrompt = "You are a helpful assistant that extracts health claim information from documents."
	guidanceSystemPrompt   = "You are a health insurance claims expert."

	extractionPromptTemplate = `Extract the following information from the provided text and return it in JSON format:
- condition: The medical condition being treated
- date: The date of the claim in ISO format
- health_insurance_provider: The name of the insurance provider
- requested_treatment: The treatment being requested
- explanation: A comprehensive explanation of the claim

Ensure you capture all the information from the text.
Text to analyze:
%s`

	guidancePromptTemplate = `Based on the following reference information about health claims:
%s

Provide appeal guidance for this claim:
%s

Give specific, actionable guidance for improving the appeal.`

	emailPromptTemplate = `You are an insurance-claims specialist. Using the precedent below, draft a concise,
professional appeal e-mail for the user.

Precedent
---------
Decision      : %s
Decision date : %s
Coverage type : %s
Condition     : %s
Treatment     : %s

Guidelines
----------
* Reference the original decision.
* State why the claimant believes reconsideration is justified (politely).
* Keep the tone neutral and cooperative.
* Close with "Thank you," (no name).

Draft e-mail:`

	defaultGuidanceTopK = 3
	guidelinePrefix     = "Guideline"
)

// defaultGuidelines is returned when the model response has no Guideline lines
var defaultGuidelines = []string{
	"Provide detailed medical documentation",
	"Include peer-reviewed studies",
	"Demonstrate medical necessity",
}

// ProcessingService extracts structured claims from documents and drafts
// appeal material from similar precedents
type ProcessingService struct {
	extractor  TextExtractor
	generator  ai.Generator
	embedder   ai.Embedder
	precedents precedent.Store
	topK       int
}

// NewProcessingService wires the processing collaborators. generator,
// embedder and precedents may be nil when not configured; the operations
// needing them then fail with ai.ErrNotConfigured.
func NewProcessingService(extractor TextExtractor, generator ai.Generator, embedder ai.Embedder, precedents precedent.Store, topK int) *ProcessingService {
	if topK <= 0 {
		topK = defaultGuidanceTopK
	}
	return &ProcessingService{
		extractor:  extractor,
		generator:  generator,
		embedder:   embedder,
		precedents: precedents,
		topK:       topK,
	}
}

// ProcessPDFs extracts one HealthClaim per PDF, in request order. The whole
// request is rejected when any file is not a PDF, and the first failing file
// fails the request.
func (s *ProcessingService) ProcessPDFs(ctx context.Context, files []FileUpload) ([]models.HealthClaim, error) {
	for _, file := range files {
		if !IsPDF(file.Filename) {
			return nil, fmt.Errorf("%w: %s", ErrNotPDF, file.Filename)
		}
	}

	results := make([]models.HealthClaim, 0, len(files))
	for _, file := range files {
		content, err := readUpload(file)
		if err != nil {
			return nil, fmt.Errorf("error processing PDF %s: %w", file.Filename, err)
		}

		claim, err := s.ExtractClaim(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("error processing PDF %s: %w", file.Filename, err)
		}
		results = append(results, *claim)
	}
	return results, nil
}

// ExtractClaim turns a PDF document into a structured HealthClaim
func (s *ProcessingService) ExtractClaim(ctx context.Context, content []byte) (*models.HealthClaim, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("%w: no LLM provider", ai.ErrNotConfigured)
	}

	extracted, err := s.extractor.ExtractText(ctx, content)
	if err != nil {
		return nil, err
	}

	text, err := s.generator.Generate(ctx, ai.Prompt{
		System:      extractionSystemPrompt,
		User:        fmt.Sprintf(extractionPromptTemplate, extracted.Text),
		Temperature: 0.1,
		MaxTokens:   1000,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	var claim models.HealthClaim
	if err := ai.DecodeJSON(text, &claim); err != nil {
		return nil, fmt.Errorf("error processing model response: %w", err)
	}
	return &claim, nil
}

// AppealGuidance asks the model for appeal guidance grounded on the most
// similar precedents
func (s *ProcessingService) AppealGuidance(ctx context.Context, claim models.HealthClaim) (*models.AppealGuidance, error) {
	if err := s.requireRetrieval(); err != nil {
		return nil, err
	}

	summary := claimSummary(claim)
	vector, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		return nil, err
	}

	matches, err := s.searchPrecedents(ctx, vector, s.topK)
	if err != nil {
		return nil, err
	}

	contexts := make([]string, 0, len(matches))
	for _, match := range matches {
		encoded, err := json.Marshal(match)
		if err != nil {
			return nil, fmt.Errorf("encode precedent: %w", err)
		}
		contexts = append(contexts, string(encoded))
	}

	text, err := s.generator.Generate(ctx, ai.Prompt{
		System:      guidanceSystemPrompt,
		User:        fmt.Sprintf(guidancePromptTemplate, strings.Join(contexts, "\n\n"), summary),
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Appeal guidance generated", "precedents", len(matches))
	return &models.AppealGuidance{
		Guidelines: parseGuidelines(text),
		Reasoning:  text,
	}, nil
}

// DraftEmail drafts an appeal e-mail from the precedent closest to content
func (s *ProcessingService) DraftEmail(ctx context.Context, content string) (*models.DraftEmailResponse, error) {
	if err := s.requireRetrieval(); err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, strings.Join(strings.Fields(content), " "))
	if err != nil {
		return nil, err
	}

	matches, err := s.searchPrecedents(ctx, vector, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoPrecedent
	}
	best := matches[0]

	email, err := s.generator.Generate(ctx, ai.Prompt{
		User: fmt.Sprintf(emailPromptTemplate,
			best.Decision, best.DecisionDate, best.CoverageType, best.Condition, best.Treatment),
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	return &models.DraftEmailResponse{Email: email, Precedent: &best}, nil
}

// searchPrecedents reports store failures as upstream failures of the vector search
func (s *ProcessingService) searchPrecedents(ctx context.Context, vector []float32, limit int) ([]models.Precedent, error) {
	matches, err := s.precedents.Search(ctx, vector, limit)
	if err != nil {
		return nil, ai.WrapUpstream(precedent.SearchService, err)
	}
	return matches, nil
}

func (s *ProcessingService) requireRetrieval() error {
	switch {
	case s.generator == nil:
		return fmt.Errorf("%w: no LLM provider", ai.ErrNotConfigured)
	case s.embedder == nil:
		return fmt.Errorf("%w: no embedding provider", ai.ErrNotConfigured)
	case s.precedents == nil:
		return fmt.Errorf("%w: no precedent store", ai.ErrNotConfigured)
	}
	return nil
}

// IsPDF reports whether filename carries a .pdf extension
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func claimSummary(claim models.HealthClaim) string {
	return fmt.Sprintf("Condition: %s\nTreatment: %s\nProvider: %s\nExplanation: %s",
		claim.Condition, claim.RequestedTreatment, claim.HealthInsuranceProvider, claim.Explanation)
}

func parseGuidelines(text string) []string {
	var guidelines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, guidelinePrefix) {
			guidelines = append(guidelines, line)
		}
	}
	if len(guidelines) == 0 {
		return append([]string(nil), defaultGuidelines...)
	}
	return guidelines
}

func readUpload(file FileUpload) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
