// Package analysis reads results written by the external analysis workflow and
// forwards reviewed assignments to the instructor.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"assignmenthelper/api/internal/store"
)

var (
	ErrNotFound           = errors.New("analysis not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrInProgress         = errors.New("analysis not found yet; processing may still be in progress")
	ErrAccessDenied       = errors.New("not authorized to access this analysis")
)

// Store is the read side of assignments and their analysis rows.
type Store interface {
	GetAssignment(ctx context.Context, id int64) (store.Assignment, error)
	GetAnalysis(ctx context.Context, id int64) (store.AnalysisResult, error)
	LatestAnalysis(ctx context.Context, assignmentID int64) (store.AnalysisResult, error)
}

type Reader struct {
	store Store
}

func NewReader(s Store) *Reader {
	return &Reader{store: s}
}

// GetByID returns the analysis if its assignment belongs to requesterID.
func (r *Reader) GetByID(ctx context.Context, analysisID, requesterID int64) (store.AnalysisResult, error) {
	result, err := r.store.GetAnalysis(ctx, analysisID)
	if errors.Is(err, store.ErrNotFound) {
		return store.AnalysisResult{}, ErrNotFound
	}
	if err != nil {
		return store.AnalysisResult{}, fmt.Errorf("get analysis %d: %w", analysisID, err)
	}
	if _, err := r.ownedAssignment(ctx, result.AssignmentID, requesterID); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return store.AnalysisResult{}, ErrNotFound
		}
		return store.AnalysisResult{}, err
	}
	return result, nil
}

// LatestForAssignment returns the most recent analysis of an assignment owned
// by requesterID.
func (r *Reader) LatestForAssignment(ctx context.Context, assignmentID, requesterID int64) (store.AnalysisResult, error) {
	_, result, err := r.latest(ctx, assignmentID, requesterID)
	return result, err
}

func (r *Reader) latest(ctx context.Context, assignmentID, requesterID int64) (store.Assignment, store.AnalysisResult, error) {
	assignment, err := r.ownedAssignment(ctx, assignmentID, requesterID)
	if err != nil {
		return store.Assignment{}, store.AnalysisResult{}, err
	}
	result, err := r.store.LatestAnalysis(ctx, assignmentID)
	if errors.Is(err, store.ErrNotFound) {
		return assignment, store.AnalysisResult{}, ErrInProgress
	}
	if err != nil {
		return assignment, store.AnalysisResult{}, fmt.Errorf("latest analysis for assignment %d: %w", assignmentID, err)
	}
	return assignment, result, nil
}

func (r *Reader) ownedAssignment(ctx context.Context, assignmentID, requesterID int64) (store.Assignment, error) {
	assignment, err := r.store.GetAssignment(ctx, assignmentID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Assignment{}, ErrAssignmentNotFound
	}
	if err != nil {
		return store.Assignment{}, fmt.Errorf("get assignment %d: %w", assignmentID, err)
	}
	if assignment.StudentID != requesterID {
		return store.Assignment{}, ErrAccessDenied
	}
	return assignment, nil
}
