// Package repository handles data access for stored analysis results.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/empathyapp/backend/internal/apperrors"
	"github.com/empathyapp/backend/internal/models"
)

// ResultsRepository owns the analysis_results table: the stored records, their
// mutable scores, and the embedding column the similarity index runs on.
// Record and index entry live in the same row, so eviction removes both in one
// statement.
type ResultsRepository struct {
	db *pgxpool.Pool
}

// NewResultsRepository creates a new results repository.
func NewResultsRepository(db *pgxpool.Pool) *ResultsRepository {
	return &ResultsRepository{db: db}
}

// Insert stores a complete result with a fresh id and score 0 and returns it.
// analysis may be nil (rewrite-only record). Embeddings are stored as halfvec
// (2 bytes per dimension); pgvector-go converts float32 when encoding.
func (r *ResultsRepository) Insert(
	ctx context.Context, sourceText string, analysis *models.FullAnalysis,
	longVersion, shortVersion string, embedding []float32,
) (*models.AnalysisResult, error) {
	var analysisJSON []byte

	if analysis != nil {
		var err error

		analysisJSON, err = json.Marshal(analysis)
		if err != nil {
			return nil, fmt.Errorf("marshal analysis: %w", err)
		}
	}

	record := &models.AnalysisResult{
		ID:           uuid.New(),
		SourceText:   sourceText,
		Analysis:     analysis,
		LongVersion:  longVersion,
		ShortVersion: shortVersion,
		Score:        0,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO analysis_results (id, source_text, analysis, long_version, short_version, score, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.SourceText, analysisJSON, record.LongVersion, record.ShortVersion,
		record.Score, pgvector.NewHalfVector(embedding), record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert analysis result: %w", err)
	}

	return record, nil
}

// Get returns the stored result for id, or apperrors.ErrNotFound when the
// record does not exist (never stored, or evicted).
func (r *ResultsRepository) Get(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, source_text, analysis, long_version, short_version, score, created_at
		FROM analysis_results WHERE id = $1`, id)

	record, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("analysis result", "")
		}

		return nil, fmt.Errorf("get analysis result: %w", err)
	}

	return record, nil
}

// AdjustScore atomically applies delta (+1 or -1) to the record's score.
// When the new score drops strictly below floor the record is deleted in the
// same transaction and evicted=true is returned. The UPDATE takes a row lock,
// so concurrent adjustments on one id serialize and no update is lost.
// Returns apperrors.ErrNotFound when no record exists for id.
func (r *ResultsRepository) AdjustScore(
	ctx context.Context, id uuid.UUID, delta, floor int,
) (newScore int, evicted bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin adjust score: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`UPDATE analysis_results SET score = score + $2 WHERE id = $1 RETURNING score`,
		id, delta,
	).Scan(&newScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, apperrors.NewNotFoundError("analysis result", "")
		}

		return 0, false, fmt.Errorf("adjust score: %w", err)
	}

	if newScore < floor {
		if _, err := tx.Exec(ctx, `DELETE FROM analysis_results WHERE id = $1`, id); err != nil {
			return 0, false, fmt.Errorf("evict analysis result: %w", err)
		}

		evicted = true
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit adjust score: %w", err)
	}

	return newScore, evicted, nil
}

// Nearest returns the single best match for queryEmbedding with cosine
// similarity >= threshold, or (nil, nil) when nothing qualifies. Similarity
// ties break toward the most recently created record. When requireAnalysis is
// true, rewrite-only records (NULL analysis) are skipped. Read-only.
func (r *ResultsRepository) Nearest(
	ctx context.Context, queryEmbedding []float32, threshold float64, requireAnalysis bool,
) (*models.ResultMatch, error) {
	queryVec := pgvector.NewHalfVector(queryEmbedding)

	query := `
		SELECT id, source_text, analysis, long_version, short_version, score, created_at,
		       (1 - (embedding <=> $1)) AS similarity
		FROM analysis_results
		WHERE (1 - (embedding <=> $1)) >= $2`
	if requireAnalysis {
		query += ` AND analysis IS NOT NULL`
	}

	query += `
		ORDER BY embedding <=> $1, created_at DESC
		LIMIT 1`

	row := r.db.QueryRow(ctx, query, queryVec, threshold)

	match := &models.ResultMatch{}

	record, err := scanResultWithSimilarity(row, &match.Similarity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("nearest analysis result: %w", err)
	}

	match.Result = *record

	return match, nil
}

// Delete removes a record (and its index entry) by id. Deleting a missing id
// is a no-op, not an error.
func (r *ResultsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM analysis_results WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete analysis result: %w", err)
	}

	return nil
}

// Count returns the number of stored results. Used by integration assertions,
// not by request paths.
func (r *ResultsRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM analysis_results`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count analysis results: %w", err)
	}

	return count, nil
}

func scanResult(row pgx.Row) (*models.AnalysisResult, error) {
	var (
		record       models.AnalysisResult
		analysisJSON []byte
	)

	if err := row.Scan(
		&record.ID, &record.SourceText, &analysisJSON,
		&record.LongVersion, &record.ShortVersion, &record.Score, &record.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := attachAnalysis(&record, analysisJSON); err != nil {
		return nil, err
	}

	return &record, nil
}

func scanResultWithSimilarity(row pgx.Row, similarity *float64) (*models.AnalysisResult, error) {
	var (
		record       models.AnalysisResult
		analysisJSON []byte
	)

	if err := row.Scan(
		&record.ID, &record.SourceText, &analysisJSON,
		&record.LongVersion, &record.ShortVersion, &record.Score, &record.CreatedAt,
		similarity,
	); err != nil {
		return nil, err
	}

	if err := attachAnalysis(&record, analysisJSON); err != nil {
		return nil, err
	}

	return &record, nil
}

func attachAnalysis(record *models.AnalysisResult, analysisJSON []byte) error {
	if len(analysisJSON) == 0 {
		return nil
	}

	var analysis models.FullAnalysis
	if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
		return fmt.Errorf("unmarshal stored analysis: %w", err)
	}

	record.Analysis = &analysis

	return nil
}
