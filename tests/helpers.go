// Package tests provides integration test helpers and utilities.
package tests

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/empathyapp/backend/pkg/database"
)

// postgresImage ships Postgres with the pgvector extension preinstalled.
const postgresImage = "pgvector/pgvector:pg16"

// startPostgres spins up a disposable Postgres container with pgvector and
// applies the schema migrations. The container is terminated on test cleanup.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("empathy_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start postgres container")

	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_ = container.Terminate(terminateCtx)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	applyMigrations(t, ctx, connStr)

	db, err := database.NewPostgresPool(ctx, connStr)
	require.NoError(t, err, "Failed to connect to test database")

	t.Cleanup(db.Close)

	return db
}

// applyMigrations runs every .sql file from the migrations directory in
// lexical order on a plain connection, before pgvector types are registered.
func applyMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	defer pool.Close()

	files, err := filepath.Glob(filepath.Join("..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no migration files found")

	for _, file := range files {
		sql, err := os.ReadFile(file)
		require.NoError(t, err)

		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "Failed to apply migration %s", file)
	}
}

// unitVector returns a 1536-dimensional unit vector with all weight on the
// given axis. Orthogonal axes give cosine similarity 0, same axis gives 1.
func unitVector(axis int) []float32 {
	vec := make([]float32, 1536)
	vec[axis] = 1

	return vec
}

// blendedVector returns a 1536-dimensional unit vector between two axes.
// Against unitVector(primary) its cosine similarity equals weight /
// sqrt(weight^2 + (1-weight)^2).
func blendedVector(primary, secondary int, weight float64) []float32 {
	vec := make([]float32, 1536)
	norm := math.Sqrt(weight*weight + (1-weight)*(1-weight))
	vec[primary] = float32(weight / norm)
	vec[secondary] = float32((1 - weight) / norm)

	return vec
}
