package analysis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"assignmenthelper/api/internal/logger"
	"assignmenthelper/api/internal/store"
	"assignmenthelper/api/internal/webhook"
)

var ErrSubmitFailed = errors.New("failed to notify the instructor")

// Notifier delivers JSON payloads to the instructor workflow.
type Notifier interface {
	Post(ctx context.Context, url string, payload any) error
}

// Submitter forwards an assignment and its latest analysis to the instructor.
type Submitter struct {
	reader       *Reader
	notifier     Notifier
	url          string
	teacherEmail string
	log          *logger.Logger
}

func NewSubmitter(reader *Reader, notifier Notifier, url, teacherEmail string, log *logger.Logger) *Submitter {
	if log == nil {
		log = logger.Nop()
	}
	return &Submitter{
		reader:       reader,
		notifier:     notifier,
		url:          strings.TrimSpace(url),
		teacherEmail: teacherEmail,
		log:          log,
	}
}

// Submit sends the submission and reports any delivery failure.
func (s *Submitter) Submit(ctx context.Context, account store.Account, assignmentID int64) (store.AnalysisResult, error) {
	assignment, result, err := s.reader.latest(ctx, assignmentID, account.ID)
	if err != nil {
		return store.AnalysisResult{}, err
	}
	if s.notifier == nil || s.url == "" {
		return store.AnalysisResult{}, fmt.Errorf("%w: %v", ErrSubmitFailed, webhook.ErrNotConfigured)
	}

	payload := webhook.TeacherSubmission{
		StudentID:       strconv.FormatInt(account.ID, 10),
		StudentEmail:    account.Email,
		TeacherEmail:    s.teacherEmail,
		AssignmentID:    assignment.ID,
		Filename:        assignment.Filename,
		AnalysisID:      result.ID,
		Summary:         result.OriginalSummary,
		PlagiarismScore: result.PlagiarismScore,
	}
	if err := s.notifier.Post(ctx, s.url, payload); err != nil {
		s.log.Warn("instructor webhook failed", "assignment_id", assignment.ID, "error", err)
		return store.AnalysisResult{}, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	s.log.Info("assignment submitted to instructor", "assignment_id", assignment.ID, "analysis_id", result.ID)
	return result, nil
}
