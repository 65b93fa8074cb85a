package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/empathyapp/backend/internal/apperrors"
	"github.com/empathyapp/backend/internal/observability"
)

// ScoreStore is the score-adjustment surface the feedback processor needs.
type ScoreStore interface {
	AdjustScore(ctx context.Context, id uuid.UUID, delta, floor int) (newScore int, evicted bool, err error)
}

// FeedbackService applies like/dislike signals to stored results. Feedback
// events are not persisted; they exist only as their effect on the score.
type FeedbackService struct {
	store   ScoreStore
	floor   int
	metrics observability.ProviderMetrics
	logger  *slog.Logger
}

// FeedbackServiceParams configures FeedbackService. Metrics and Logger may be nil.
type FeedbackServiceParams struct {
	Store   ScoreStore
	Floor   int
	Metrics observability.ProviderMetrics
	Logger  *slog.Logger
}

// NewFeedbackService creates a FeedbackService.
func NewFeedbackService(p FeedbackServiceParams) *FeedbackService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedbackService{
		store:   p.Store,
		floor:   p.Floor,
		metrics: p.Metrics,
		logger:  logger,
	}
}

// Submit applies one feedback event: +1 for a like, -1 for a dislike. Returns
// apperrors.ErrNotFound when the result does not exist (never stored, or
// already evicted) - callers treat that as silent-safe, nothing mutated.
func (s *FeedbackService) Submit(ctx context.Context, resultID uuid.UUID, liked bool) error {
	delta := -1
	if liked {
		delta = 1
	}

	newScore, evicted, err := s.store.AdjustScore(ctx, resultID, delta, s.floor)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Info("feedback for unknown result", "result_id", resultID.String())

			//nolint:wrapcheck // return as-is so the handler can map to 404
			return err
		}

		s.logger.Error("adjust score failed", "error", err, "result_id", resultID.String())

		return fmt.Errorf("adjust score: %w", err)
	}

	if evicted {
		if s.metrics != nil {
			s.metrics.RecordEviction(ctx)
		}

		s.logger.Info("result evicted below score floor",
			"result_id", resultID.String(), "score", newScore, "floor", s.floor)

		return nil
	}

	s.logger.Info("feedback applied",
		"result_id", resultID.String(), "liked", liked, "score", newScore)

	return nil
}
