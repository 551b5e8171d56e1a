package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"assignmenthelper/api/internal/store"
)

// PgCatalog implements Catalogue with case-insensitive pattern matching as the
// fallback when Meilisearch is unavailable.
type PgCatalog struct {
	db *sql.DB
}

func NewPgCatalog(db *sql.DB) *PgCatalog {
	return &PgCatalog{db: db}
}

// Lookup matches q against title and authors. Exact title matches sort first.
func (p *PgCatalog) Lookup(ctx context.Context, q string, limit int) ([]Summary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Summary{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, authors, publication_year, abstract, source_type, url, created_at
		FROM academic_sources
		WHERE title ILIKE $1 ESCAPE '\' OR authors ILIKE $1 ESCAPE '\'
		ORDER BY (LOWER(title) = LOWER($2)) DESC, id
		LIMIT $3`, "%"+escapeLike(q)+"%", q, limit)
	if err != nil {
		return nil, fmt.Errorf("catalogue lookup: %w", err)
	}
	defer rows.Close()

	results := make([]Summary, 0)
	for rows.Next() {
		var row store.SourceRow
		if err := rows.Scan(row.Targets()...); err != nil {
			return nil, fmt.Errorf("scan catalogue row: %w", err)
		}
		results = append(results, summaryFromSource(row.Source()))
	}
	return results, rows.Err()
}

// LoadAllRecords reads every source for a full Meilisearch reindex.
func (p *PgCatalog) LoadAllRecords(ctx context.Context) ([]SourceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, authors, publication_year, abstract, source_type, url, created_at
		FROM academic_sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load source records: %w", err)
	}
	defer rows.Close()

	records := make([]SourceRecord, 0)
	for rows.Next() {
		var row store.SourceRow
		if err := rows.Scan(row.Targets()...); err != nil {
			return nil, fmt.Errorf("scan source record: %w", err)
		}
		records = append(records, RecordFromSource(row.Source()))
	}
	return records, rows.Err()
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
