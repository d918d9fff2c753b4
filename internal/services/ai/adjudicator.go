// Package ai classifies candidate pairs through retrieval-augmented model
// inference with a strict structured-output contract.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ai-reconciliation-backend/internal/services/normalizer"
)

// DefaultTopK is the retrieval depth: how many rule snippets are folded into
// the prompt context block.
const DefaultTopK = 4

// Template substitution markers the prompt template must carry.
const (
	MarkerContext            = "{context}"
	MarkerFormatInstructions = "{format_instructions}"
)

// formatInstructions is substituted for MarkerFormatInstructions and pins
// the model to the Verdict JSON shape.
const formatInstructions = `Respond with ONLY a JSON object of this exact shape:
{"status": "<one of 'Matched', 'Partial Match', 'Exception'>", "exception_type": "<specific exception type from the KB rules, or null when status is 'Matched'>", "reason": "<brief explanation naming the KB rule(s) applied>"}`

// Retriever returns relevant rule snippets for a text query.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]string, error)
}

// CompletionClient is the language model contract: raw text in, raw text
// out. No guarantee of valid JSON; the adjudicator validates.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ValidateTemplate checks a prompt template for the two required
// substitution markers.
func ValidateTemplate(template string) error {
	if template == "" {
		return fmt.Errorf("prompt template is empty")
	}
	for _, marker := range []string{MarkerContext, MarkerFormatInstructions} {
		if !strings.Contains(template, marker) {
			return fmt.Errorf("prompt template missing %s marker", marker)
		}
	}
	return nil
}

// Adjudicator runs the staged pipeline for one candidate pair:
// retrieve -> render context -> render prompt -> invoke model -> parse and
// validate output.
type Adjudicator struct {
	retriever Retriever
	llm       CompletionClient
	template  string
	topK      int
	logger    *zap.Logger
}

func NewAdjudicator(retriever Retriever, llm CompletionClient, template string, logger *zap.Logger) *Adjudicator {
	return &Adjudicator{
		retriever: retriever,
		llm:       llm,
		template:  template,
		topK:      DefaultTopK,
		logger:    logger,
	}
}

// Adjudicate classifies one (source, candidate) pair. It never returns an
// error: every failure mode is folded into the Verdict so the caller's loop
// stays uniform.
func (a *Adjudicator) Adjudicate(ctx context.Context, src, tgt normalizer.Record) Verdict {
	if a.retriever == nil || a.llm == nil {
		return Verdict{
			Status:        VerdictError,
			ExceptionType: ExceptionAIServiceUnavailable,
			Reason:        "model or retriever not initialized",
		}
	}
	if err := ValidateTemplate(a.template); err != nil {
		return Verdict{
			Status:        VerdictError,
			ExceptionType: ExceptionAIServiceUnavailable,
			Reason:        err.Error(),
		}
	}

	contextBlock, err := a.retrieveContext(ctx, src, tgt)
	if err != nil {
		a.logger.Error("rule retrieval failed", zap.Error(err))
		return Verdict{
			Status:        VerdictError,
			ExceptionType: ExceptionAIProcessingError,
			Reason:        fmt.Sprintf("rule retrieval failed: %v", err),
		}
	}

	prompt := a.renderPrompt(contextBlock, src, tgt)

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		a.logger.Error("model invocation failed", zap.Error(err))
		return Verdict{
			Status:        VerdictError,
			ExceptionType: ExceptionAIProcessingError,
			Reason:        fmt.Sprintf("model invocation failed: %v", err),
		}
	}

	verdict := ParseVerdict(raw)
	a.logger.Debug("adjudicated candidate pair",
		zap.String("source_id", src.ExternalID),
		zap.String("target_id", tgt.ExternalID),
		zap.String("status", verdict.Status))
	return verdict
}

// retrieveContext queries the rule corpus with both descriptions and joins
// the top snippets into the context block.
func (a *Adjudicator) retrieveContext(ctx context.Context, src, tgt normalizer.Record) (string, error) {
	query := strings.TrimSpace(src.Description + " " + tgt.Description)
	snippets, err := a.retriever.Query(ctx, query, a.topK)
	if err != nil {
		return "", err
	}
	return strings.Join(snippets, "\n\n"), nil
}

// renderPrompt substitutes the context block, the output-format
// instructions, and both records' semantic fields into the template.
func (a *Adjudicator) renderPrompt(contextBlock string, src, tgt normalizer.Record) string {
	return strings.NewReplacer(
		MarkerContext, contextBlock,
		MarkerFormatInstructions, formatInstructions,
		"{internal_id_source}", src.ExternalID,
		"{internal_date_source}", src.Date.Format("2006-01-02"),
		"{internal_amount_source}", src.Amount.StringFixed(2),
		"{internal_description_source}", src.Description,
		"{internal_id_target}", tgt.ExternalID,
		"{internal_date_target}", tgt.Date.Format("2006-01-02"),
		"{internal_amount_target}", tgt.Amount.StringFixed(2),
		"{internal_description_target}", tgt.Description,
	).Replace(a.template)
}

// ParseVerdict validates raw model output against the structured-output
// contract. Malformed JSON or an out-of-contract status is coerced to an
// Exception verdict with the original text folded into the reason.
func ParseVerdict(raw string) Verdict {
	var v Verdict
	if err := json.Unmarshal([]byte(extractJSON(raw)), &v); err != nil {
		return Verdict{
			Status:        VerdictException,
			ExceptionType: ExceptionAIInvalidStatus,
			Reason:        fmt.Sprintf("AI returned malformed JSON: %.200s", raw),
		}
	}
	switch v.Status {
	case VerdictMatched, VerdictPartialMatch, VerdictException:
		if v.Reason == "" {
			v.Reason = "N/A"
		}
		return v
	default:
		return Verdict{
			Status:        VerdictException,
			ExceptionType: ExceptionAIInvalidStatus,
			Reason:        fmt.Sprintf("AI invalid status %q. Original: %s", v.Status, v.Reason),
		}
	}
}

// extractJSON strips markdown fences and leading/trailing prose around the
// outermost JSON object.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
