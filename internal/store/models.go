package store

import (
	"encoding/json"
	"time"
)

// Account is a registered student.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     *string
	StudentID    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Assignment struct {
	ID            int64
	StudentID     int64
	Filename      string
	OriginalText  string
	Topic         *string
	AcademicLevel *string
	WordCount     int
	StorageKey    *string
	UploadedAt    time.Time
}

// AnalysisResult is written by the external workflow and only read here.
type AnalysisResult struct {
	ID                      int64
	AssignmentID            int64
	OriginalSummary         *string
	SuggestedSources        json.RawMessage
	PlagiarismScore         *float64
	FlaggedSections         json.RawMessage
	ResearchSuggestions     *string
	CitationRecommendations *string
	ConfidenceScore         *float64
	AnalyzedAt              time.Time
}

type AcademicSource struct {
	ID              int64
	Title           string
	Authors         *string
	PublicationYear *int
	Abstract        *string
	FullText        *string
	SourceType      string
	URL             *string
	Embedding       []float32
	CreatedAt       time.Time
}
