// Package search turns a natural-language query into a ranked
// similarity search over the stored note embeddings.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kalambet/neron/internal/dbpool"
	"github.com/kalambet/neron/internal/embedding"
)

var (
	// ErrInvalidTopK signals a caller contract violation: topK must be a
	// positive integer. Raised before any external call is made.
	ErrInvalidTopK = errors.New("search: top_k must be positive")

	// ErrEmbedding wraps a failure from the external embedding service.
	ErrEmbedding = errors.New("search: embedding request failed")

	// ErrDimensionMismatch signals that the embedding service returned a
	// vector of the wrong length, which would silently corrupt the
	// distance computation. No store query is issued.
	ErrDimensionMismatch = errors.New("search: embedding dimension mismatch")

	// ErrRepository wraps a failure while running the similarity query.
	ErrRepository = errors.New("search: query failed")
)

// Result is one ranked search hit. Similarity is in [0,1], higher is
// closer.
type Result struct {
	ID         int64
	Text       string
	Timestamp  time.Time
	Similarity float64
}

// Embedder produces a fixed-length vector for a text in the given input
// mode. *embedding.Client implements it.
type Embedder interface {
	Embed(ctx context.Context, text, inputType string) ([]float32, error)
}

// Gateway runs semantic searches: embed the query, then ask the store
// for the nearest stored embeddings.
type Gateway struct {
	embedder    Embedder
	pool        *dbpool.Pool
	dimension   int
	maxAttempts int
}

func NewGateway(embedder Embedder, pool *dbpool.Pool, dimension int) *Gateway {
	return &Gateway{embedder: embedder, pool: pool, dimension: dimension, maxAttempts: 3}
}

// The 1 - distance conversion is valid only because <=> is cosine
// distance, bounded to [0,2]. Do not reuse it with other metrics.
const searchQuery = `
	SELECT id, text, timestamp, 1 - (embedding <=> $1) AS similarity
	FROM neron
	ORDER BY embedding <=> $1
	LIMIT $2`

// Search returns the topK notes closest to the query text, descending
// by similarity. Results arrive already ordered by the store (ascending
// distance); they are not re-sorted here.
func (g *Gateway) Search(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidTopK, topK)
	}

	vec, err := g.embedder.Embed(ctx, text, embedding.InputTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	if len(vec) != g.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, g.dimension, len(vec))
	}

	var results []Result
	err = g.pool.WithConn(ctx, g.maxAttempts, func(conn dbpool.Conn) error {
		rows, err := conn.Query(ctx, searchQuery, pgvector.NewVector(vec), topK)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRepository, err)
		}
		defer rows.Close()

		for rows.Next() {
			var r Result
			if err := rows.Scan(&r.ID, &r.Text, &r.Timestamp, &r.Similarity); err != nil {
				return fmt.Errorf("%w: scanning row: %w", ErrRepository, err)
			}
			results = append(results, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrRepository, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("similarity search completed", "query", text, "results", len(results))
	return results, nil
}
