package search

import (
	"context"
	"database/sql"
	"fmt"

	"assignmenthelper/api/internal/store"
	"github.com/pgvector/pgvector-go"
)

// PgVector ranks sources inside PostgreSQL with the pgvector cosine operator.
type PgVector struct {
	db *sql.DB
}

func NewPgVector(db *sql.DB) *PgVector {
	return &PgVector{db: db}
}

func (p *PgVector) Count(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM academic_sources`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sources: %w", err)
	}
	return count, nil
}

// defaultEfSearch is pgvector's default hnsw.ef_search. An hnsw index scan
// yields at most ef_search candidates.
const defaultEfSearch = 40

func efSearch(topK int) int {
	if topK > defaultEfSearch {
		return topK
	}
	return defaultEfSearch
}

// Nearest orders by cosine distance, then by id so equal distances are stable.
// ef_search is raised to topK for the query so an index scan cannot return
// fewer rows than requested.
func (p *PgVector) Nearest(ctx context.Context, query []float32, topK int) ([]Scored, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin nearest tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch(topK))); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, title, authors, publication_year, abstract, source_type, url, created_at,
			embedding <=> $1::vector AS distance
		FROM academic_sources
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector, id
		LIMIT $2`, pgvector.NewVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("nearest sources: %w", err)
	}
	defer rows.Close()

	results := make([]Scored, 0, topK)
	for rows.Next() {
		var row store.SourceRow
		var distance float64
		if err := rows.Scan(append(row.Targets(), &distance)...); err != nil {
			return nil, fmt.Errorf("scan nearest source: %w", err)
		}
		results = append(results, Scored{Source: row.Source(), Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit nearest tx: %w", err)
	}
	return results, nil
}
