package search

import (
	"context"

	"assignmenthelper/api/internal/store"
)

// Result is a single semantic search hit returned to the caller.
type Result struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Authors         *string `json:"authors"`
	PublicationYear *int    `json:"publication_year"`
	Abstract        *string `json:"abstract"`
	SourceType      string  `json:"source_type"`
	URL             *string `json:"url"`
	Relevance       string  `json:"relevance"`
	Similarity      float64 `json:"similarity"`
	AboveFloor      bool    `json:"above_floor"`
}

// Summary is a catalogue lookup hit.
type Summary struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Authors         *string `json:"authors"`
	PublicationYear *int    `json:"publication_year"`
	SourceType      string  `json:"source_type"`
	URL             *string `json:"url"`
}

// Scored pairs a source with its cosine distance to the query.
type Scored struct {
	Source   store.AcademicSource
	Distance float64
}

// Ranker finds the sources nearest to a query embedding.
type Ranker interface {
	Count(ctx context.Context) (int, error)
	Nearest(ctx context.Context, query []float32, topK int) ([]Scored, error)
}

// Catalogue does lexical title/author lookups.
type Catalogue interface {
	Lookup(ctx context.Context, q string, limit int) ([]Summary, error)
	LoadAllRecords(ctx context.Context) ([]SourceRecord, error)
}

// SourceRecord is the data we index for an academic source.
type SourceRecord struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Authors         string `json:"authors"`
	Abstract        string `json:"abstract"`
	PublicationYear int    `json:"publicationYear"`
	SourceType      string `json:"sourceType"`
	URL             string `json:"url"`
}

// RecordFromSource flattens a stored source for indexing.
func RecordFromSource(source store.AcademicSource) SourceRecord {
	record := SourceRecord{
		ID:         source.ID,
		Title:      source.Title,
		SourceType: source.SourceType,
		Authors:    deref(source.Authors),
		Abstract:   deref(source.Abstract),
		URL:        deref(source.URL),
	}
	if source.PublicationYear != nil {
		record.PublicationYear = *source.PublicationYear
	}
	return record
}

func summaryFromSource(source store.AcademicSource) Summary {
	return Summary{
		ID:              source.ID,
		Title:           source.Title,
		Authors:         source.Authors,
		PublicationYear: source.PublicationYear,
		SourceType:      source.SourceType,
		URL:             source.URL,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
