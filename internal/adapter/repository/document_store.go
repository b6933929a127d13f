// Package repository provides the Postgres/pgvector-backed dense search
// port, for deployments that keep documents and embeddings in Postgres
// instead of a dedicated vector database.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"retrieval-orchestrator/internal/domain"
)

type documentStore struct {
	pool *pgxpool.Pool
}

// NewDocumentStore creates a pgvector-backed domain.DenseSearchPort.
func NewDocumentStore(pool *pgxpool.Pool) domain.DenseSearchPort {
	return &documentStore{pool: pool}
}

// Search runs cosine-distance nearest-neighbor search over the documents
// table and returns candidates ranked 1-based in result order.
func (s *documentStore) Search(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	query := `
		SELECT id, content, 1 - (embedding <=> $1) AS score
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	rank := 0
	for rows.Next() {
		var id, content string
		var score float32
		if err := rows.Scan(&id, &content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		rank++
		candidates = append(candidates, domain.Candidate{
			DocID:  id,
			Text:   content,
			Source: domain.SourceDense,
			Rank:   rank,
			Score:  score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return candidates, nil
}
