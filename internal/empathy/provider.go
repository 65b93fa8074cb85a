// Package empathy wraps the LLM API behind a typed analysis provider:
// it shapes prompts, calls chat completions, and validates the JSON payload
// into the fixed four-section analysis shape.
package empathy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/empathyapp/backend/internal/apperrors"
	"github.com/empathyapp/backend/internal/models"
)

// ChatClient is the chat-completion surface the provider needs.
type ChatClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Draft is a fully validated provider result, sans id and score. Analysis is
// nil for rewrite-only drafts.
type Draft struct {
	Analysis     *models.FullAnalysis
	LongVersion  string
	ShortVersion string
}

// Provider is the stateless analysis provider adapter. It performs no caching
// and no retries; failures surface as ErrProviderUnavailable (transport) or
// ErrMalformedResponse (unparseable payload) and the orchestrator decides policy.
type Provider struct {
	chat    ChatClient
	limiter *rate.Limiter
	logger  *slog.Logger
}

// ProviderParams configures a Provider. Limiter and Logger may be nil.
type ProviderParams struct {
	Chat    ChatClient
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// NewProvider creates a Provider.
func NewProvider(p ProviderParams) *Provider {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		chat:    p.Chat,
		limiter: p.Limiter,
		logger:  logger,
	}
}

// Analyze returns the four-section analysis plus both rewritten versions for
// the given text. The analysis and the rewrite are two upstream calls; the
// draft is only returned when both complete and validate.
func (p *Provider) Analyze(ctx context.Context, text string) (*Draft, error) {
	lang := detectLanguage(text)

	payload, err := p.complete(ctx, promptFor(analyzePrompt, lang), text)
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(payload)
	if err != nil {
		p.logger.Error("provider returned malformed analysis", "error", err, "lang", lang)

		return nil, err
	}

	rewrite, err := p.Rewrite(ctx, text)
	if err != nil {
		return nil, err
	}

	return &Draft{
		Analysis:     analysis,
		LongVersion:  rewrite.LongVersion,
		ShortVersion: rewrite.ShortVersion,
	}, nil
}

// Rewrite returns only the long and short empathetic rewrites.
func (p *Provider) Rewrite(ctx context.Context, text string) (*Draft, error) {
	lang := detectLanguage(text)

	payload, err := p.complete(ctx, promptFor(rewritePrompt, lang), text)
	if err != nil {
		return nil, err
	}

	long, short, err := parseRewrite(payload)
	if err != nil {
		p.logger.Error("provider returned malformed rewrite", "error", err, "lang", lang)

		return nil, err
	}

	return &Draft{LongVersion: long, ShortVersion: short}, nil
}

// complete applies the rate limiter and maps transport failures to
// ErrProviderUnavailable. Context cancellation passes through unchanged so
// the orchestrator can tell a disconnected client from a broken upstream.
func (p *Provider) complete(ctx context.Context, systemPrompt, text string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("provider rate limit: %w", err)
		}
	}

	payload, err := p.chat.CompleteJSON(ctx, systemPrompt, text)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("provider call aborted: %w", ctx.Err())
		}

		return "", apperrors.NewProviderUnavailableError("analysis provider unavailable", err)
	}

	return payload, nil
}

// parseAnalysis decodes and validates the analyze payload. Every section
// field must be a non-empty string.
func parseAnalysis(payload string) (*models.FullAnalysis, error) {
	var analysis models.FullAnalysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return nil, apperrors.NewMalformedResponseError("analysis payload is not valid JSON", err)
	}

	missing := missingAnalysisFields(&analysis)
	if len(missing) > 0 {
		return nil, apperrors.NewMalformedResponseError(
			"analysis payload is missing required fields: "+strings.Join(missing, ", "), nil)
	}

	return &analysis, nil
}

// parseRewrite decodes and validates the rewrite payload.
func parseRewrite(payload string) (long, short string, err error) {
	var rewrite struct {
		LongVersion  string `json:"long_version"`
		ShortVersion string `json:"short_version"`
	}

	if err := json.Unmarshal([]byte(payload), &rewrite); err != nil {
		return "", "", apperrors.NewMalformedResponseError("rewrite payload is not valid JSON", err)
	}

	if strings.TrimSpace(rewrite.LongVersion) == "" {
		return "", "", apperrors.NewMalformedResponseError("rewrite payload is missing long_version", nil)
	}

	if strings.TrimSpace(rewrite.ShortVersion) == "" {
		return "", "", apperrors.NewMalformedResponseError("rewrite payload is missing short_version", nil)
	}

	return rewrite.LongVersion, rewrite.ShortVersion, nil
}

func missingAnalysisFields(a *models.FullAnalysis) []string {
	fields := []struct {
		path  string
		value string
	}{
		{"self_awareness.emotional_background", a.SelfAwareness.EmotionalBackground},
		{"self_awareness.present_elements", a.SelfAwareness.PresentElements},
		{"self_awareness.missing_elements", a.SelfAwareness.MissingElements},
		{"self_awareness.step_back_analysis", a.SelfAwareness.StepBackAnalysis},
		{"self_regulation.current_phrasing", a.SelfRegulation.CurrentPhrasing},
		{"self_regulation.improvement_examples", a.SelfRegulation.ImprovementExamples},
		{"self_regulation.alternative_phrases", a.SelfRegulation.AlternativePhrases},
		{"empathy.missing_elements", a.Empathy.MissingElements},
		{"empathy.potential_additions", a.Empathy.PotentialAdditions},
		{"empathy.understanding_examples", a.Empathy.UnderstandingExamples},
		{"social_skills.current_impact", a.SocialSkills.CurrentImpact},
		{"social_skills.improvements", a.SocialSkills.Improvements},
		{"social_skills.examples", a.SocialSkills.Examples},
	}

	var missing []string

	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.path)
		}
	}

	return missing
}
