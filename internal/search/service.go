package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"assignmenthelper/api/internal/embedding"
	"assignmenthelper/api/internal/logger"
	"assignmenthelper/api/internal/similarity"
	"assignmenthelper/api/internal/store"
)

var ErrEmptyQuery = errors.New("query must not be empty")

// Options tunes semantic search.
type Options struct {
	Dimension int
	Floor     float64
}

// Service embeds queries and ranks sources, and fronts the catalogue lookup
// that tries Meilisearch first and falls back to Postgres.
type Service struct {
	embedder  embedding.Embedder
	ranker    Ranker
	catalogue Catalogue
	meili     *Meili
	opts      Options
	log       *logger.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(embedder embedding.Embedder, ranker Ranker, catalogue Catalogue, meili *Meili, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		embedder:  embedder,
		ranker:    ranker,
		catalogue: catalogue,
		meili:     meili,
		opts:      opts,
		log:       log,
	}
}

// Search returns at most topK sources ordered by descending similarity. Every
// match is returned; AboveFloor marks those at or over the relevance floor.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	count, err := s.ranker.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, similarity.ErrEmptyCorpus
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if s.opts.Dimension > 0 && len(vector) != s.opts.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", similarity.ErrDimensionMismatch, s.opts.Dimension, len(vector))
	}

	scored, err := s.ranker.Nearest(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(scored))
	for _, hit := range scored {
		sim := 1 - hit.Distance
		results = append(results, Result{
			ID:              hit.Source.ID,
			Title:           hit.Source.Title,
			Authors:         hit.Source.Authors,
			PublicationYear: hit.Source.PublicationYear,
			Abstract:        hit.Source.Abstract,
			SourceType:      hit.Source.SourceType,
			URL:             hit.Source.URL,
			Relevance:       similarity.Relevance(sim),
			Similarity:      sim,
			AboveFloor:      sim >= s.opts.Floor,
		})
	}
	return results, nil
}

// Lookup tries Meilisearch if healthy, otherwise falls back to the catalogue.
func (s *Service) Lookup(ctx context.Context, q string, limit int) ([]Summary, error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}
	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.Lookup(q, limit)
		if err == nil {
			return results, nil
		}
		s.log.Warn("meilisearch lookup failed, falling back to postgres", "error", err)
	}
	if s.catalogue == nil {
		return []Summary{}, nil
	}
	return s.catalogue.Lookup(ctx, q, limit)
}

// IndexSources pushes newly stored sources into Meilisearch. It is a no-op
// when Meilisearch is not configured or unreachable.
func (s *Service) IndexSources(sources []store.AcademicSource) error {
	if s.meili == nil || !s.meili.Healthy() || len(sources) == 0 {
		return nil
	}
	records := make([]SourceRecord, 0, len(sources))
	for _, source := range sources {
		records = append(records, RecordFromSource(source))
	}
	if err := s.meili.IndexSources(records); err != nil {
		return fmt.Errorf("index sources: %w", err)
	}
	return nil
}

// ReindexAllFromPG pushes every stored source into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.catalogue == nil {
		return
	}
	records, err := s.catalogue.LoadAllRecords(ctx)
	if err != nil {
		s.log.Warn("reindex load failed", "error", err)
		return
	}
	if err := s.meili.IndexSources(records); err != nil {
		s.log.Warn("reindex sources failed", "error", err)
		return
	}
	s.log.Info("reindexed sources", "count", len(records))
}
