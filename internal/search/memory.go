package search

import (
	"context"
	"errors"

	"assignmenthelper/api/internal/similarity"
	"assignmenthelper/api/internal/store"
)

// SourceLister is the slice of the store the in-process ranker needs.
type SourceLister interface {
	CountSources(ctx context.Context) (int, error)
	ListSources(ctx context.Context, withEmbeddings bool) ([]store.AcademicSource, error)
}

// Memory loads every embedded source and ranks them in process.
type Memory struct {
	sources SourceLister
}

func NewMemory(sources SourceLister) *Memory {
	return &Memory{sources: sources}
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	return m.sources.CountSources(ctx)
}

func (m *Memory) Nearest(ctx context.Context, query []float32, topK int) ([]Scored, error) {
	sources, err := m.sources.ListSources(ctx, true)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]store.AcademicSource, len(sources))
	corpus := make([]similarity.Entry, 0, len(sources))
	for _, source := range sources {
		byID[source.ID] = source
		corpus = append(corpus, similarity.Entry{ID: source.ID, Vector: source.Embedding})
	}

	matches, err := similarity.Rank(corpus, query, topK, 0)
	if errors.Is(err, similarity.ErrEmptyCorpus) {
		return []Scored{}, nil
	}
	if err != nil {
		return nil, err
	}
	results := make([]Scored, 0, len(matches))
	for _, match := range matches {
		results = append(results, Scored{Source: byID[match.ID], Distance: match.Distance})
	}
	return results, nil
}
