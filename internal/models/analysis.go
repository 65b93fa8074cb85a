// Package models defines the data structures shared by handlers, services and repositories.
package models

import (
	"time"

	"github.com/google/uuid"
)

// SelfAwarenessAnalysis covers the emotional state behind the message and
// whether the author took a "step back" before writing it.
type SelfAwarenessAnalysis struct {
	EmotionalBackground string `json:"emotional_background"`
	PresentElements     string `json:"present_elements"`
	MissingElements     string `json:"missing_elements"`
	StepBackAnalysis    string `json:"step_back_analysis"`
}

// SelfRegulationAnalysis covers how emotions are regulated in the current phrasing.
type SelfRegulationAnalysis struct {
	CurrentPhrasing     string `json:"current_phrasing"`
	ImprovementExamples string `json:"improvement_examples"`
	AlternativePhrases  string `json:"alternative_phrases"`
}

// EmpathyAnalysis covers missing empathetic elements and possible additions.
type EmpathyAnalysis struct {
	MissingElements       string `json:"missing_elements"`
	PotentialAdditions    string `json:"potential_additions"`
	UnderstandingExamples string `json:"understanding_examples"`
}

// SocialSkillsAnalysis covers the message's social impact.
type SocialSkillsAnalysis struct {
	CurrentImpact string `json:"current_impact"`
	Improvements  string `json:"improvements"`
	Examples      string `json:"examples"`
}

// FullAnalysis is the fixed four-section emotional intelligence breakdown.
// Field names are the upstream JSON contract; do not rename.
type FullAnalysis struct {
	SelfAwareness  SelfAwarenessAnalysis  `json:"self_awareness"`
	SelfRegulation SelfRegulationAnalysis `json:"self_regulation"`
	Empathy        EmpathyAnalysis        `json:"empathy"`
	SocialSkills   SocialSkillsAnalysis   `json:"social_skills"`
}

// AnalysisResult is a stored analysis record. Everything except Score is
// immutable once written. Analysis is nil for rewrite-only records.
type AnalysisResult struct {
	ID           uuid.UUID     `json:"id"`
	SourceText   string        `json:"source_text"`
	Analysis     *FullAnalysis `json:"analysis,omitempty"`
	LongVersion  string        `json:"long_version"`
	ShortVersion string        `json:"short_version"`
	Score        int           `json:"score"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ResultMatch is a similarity index hit: a stored result plus its cosine
// similarity (0..1) to the query text.
type ResultMatch struct {
	Result     AnalysisResult
	Similarity float64
}

// MessageRequest is the body of POST /api/analyzeMessage and /api/rewriteMessage.
type MessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	MessageID string `json:"message_id" validate:"required,uuid"`
	Liked     bool   `json:"liked"`
}

// ResponseAdditional carries response metadata the SPA needs for feedback:
// the stored result id, whether the response was served from the cache, and
// the similarity of the cache hit (1.0 for fresh results).
type ResponseAdditional struct {
	ID         uuid.UUID `json:"id"`
	Cached     bool      `json:"cached"`
	Similarity float64   `json:"similarity"`
}

// AnalyzeMessageResponse is the body of a successful POST /api/analyzeMessage.
type AnalyzeMessageResponse struct {
	Analysis     *FullAnalysis      `json:"analysis"`
	LongVersion  string             `json:"long_version"`
	ShortVersion string             `json:"short_version"`
	Additional   ResponseAdditional `json:"additional"`
}

// RewriteMessageResponse is the body of a successful POST /api/rewriteMessage.
// Same shape as analyze minus the analysis section.
type RewriteMessageResponse struct {
	LongVersion  string             `json:"long_version"`
	ShortVersion string             `json:"short_version"`
	Additional   ResponseAdditional `json:"additional"`
}

// FeedbackResponse is the body of a successful POST /api/feedback.
type FeedbackResponse struct {
	Status string `json:"status"`
}

// TranscribeResponse is the body of a successful POST /api/transcribe.
type TranscribeResponse struct {
	Text string `json:"text"`
}
