package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"assignmenthelper/api/internal/store"
	"assignmenthelper/api/internal/webhook"
)

type fakeStore struct {
	assignments map[int64]store.Assignment
	analyses    []store.AnalysisResult
}

func (f *fakeStore) GetAssignment(ctx context.Context, id int64) (store.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return store.Assignment{}, store.ErrNotFound
	}
	return assignment, nil
}

func (f *fakeStore) GetAnalysis(ctx context.Context, id int64) (store.AnalysisResult, error) {
	for _, result := range f.analyses {
		if result.ID == id {
			return result, nil
		}
	}
	return store.AnalysisResult{}, store.ErrNotFound
}

func (f *fakeStore) LatestAnalysis(ctx context.Context, assignmentID int64) (store.AnalysisResult, error) {
	var (
		latest store.AnalysisResult
		found  bool
	)
	for _, result := range f.analyses {
		if result.AssignmentID != assignmentID {
			continue
		}
		if !found || result.AnalyzedAt.After(latest.AnalyzedAt) ||
			(result.AnalyzedAt.Equal(latest.AnalyzedAt) && result.ID > latest.ID) {
			latest, found = result, true
		}
	}
	if !found {
		return store.AnalysisResult{}, store.ErrNotFound
	}
	return latest, nil
}

func fixture() *fakeStore {
	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	summary := "Second pass"
	score := 0.12
	return &fakeStore{
		assignments: map[int64]store.Assignment{
			10: {ID: 10, StudentID: 1, Filename: "essay.txt"},
			11: {ID: 11, StudentID: 2, Filename: "other.txt"},
			12: {ID: 12, StudentID: 1, Filename: "draft.txt"},
		},
		analyses: []store.AnalysisResult{
			{ID: 100, AssignmentID: 10, AnalyzedAt: t2, OriginalSummary: &summary, PlagiarismScore: &score},
			{ID: 101, AssignmentID: 10, AnalyzedAt: t1},
			{ID: 102, AssignmentID: 11, AnalyzedAt: t1},
		},
	}
}

func TestGetByID(t *testing.T) {
	reader := NewReader(fixture())
	ctx := context.Background()

	result, err := reader.GetByID(ctx, 101, 1)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if result.AssignmentID != 10 {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := reader.GetByID(ctx, 102, 1); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if _, err := reader.GetByID(ctx, 999, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestForAssignment(t *testing.T) {
	reader := NewReader(fixture())
	ctx := context.Background()

	result, err := reader.LatestForAssignment(ctx, 10, 1)
	if err != nil {
		t.Fatalf("LatestForAssignment() error = %v", err)
	}
	if result.ID != 100 {
		t.Fatalf("expected the later analysis (100), got %d", result.ID)
	}

	if _, err := reader.LatestForAssignment(ctx, 11, 1); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if _, err := reader.LatestForAssignment(ctx, 12, 1); !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}
	if _, err := reader.LatestForAssignment(ctx, 404, 1); !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

type fakeNotifier struct {
	postFn func(url string, payload any) error
}

func (f *fakeNotifier) Post(ctx context.Context, url string, payload any) error {
	return f.postFn(url, payload)
}

func TestSubmit(t *testing.T) {
	account := store.Account{ID: 1, Email: "ada@uni.edu"}
	ctx := context.Background()

	t.Run("forwards latest analysis", func(t *testing.T) {
		var got webhook.TeacherSubmission
		notifier := &fakeNotifier{postFn: func(url string, payload any) error {
			got = payload.(webhook.TeacherSubmission)
			return nil
		}}
		submitter := NewSubmitter(NewReader(fixture()), notifier, "http://workflow.local/teacher", "prof@uni.edu", nil)

		result, err := submitter.Submit(ctx, account, 10)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if result.ID != 100 || got.AnalysisID != 100 || got.AssignmentID != 10 {
			t.Fatalf("unexpected submission %+v", got)
		}
		if got.StudentID != "1" || got.TeacherEmail != "prof@uni.edu" || got.Filename != "essay.txt" {
			t.Fatalf("unexpected submission %+v", got)
		}
		if got.Summary == nil || *got.Summary != "Second pass" || got.PlagiarismScore == nil {
			t.Fatalf("expected summary and score, got %+v", got)
		}
	})

	t.Run("delivery failure is reported", func(t *testing.T) {
		notifier := &fakeNotifier{postFn: func(string, any) error {
			return &webhook.StatusError{StatusCode: 503}
		}}
		submitter := NewSubmitter(NewReader(fixture()), notifier, "http://workflow.local/teacher", "", nil)
		if _, err := submitter.Submit(ctx, account, 10); !errors.Is(err, ErrSubmitFailed) {
			t.Fatalf("expected ErrSubmitFailed, got %v", err)
		}
	})

	t.Run("unconfigured webhook", func(t *testing.T) {
		submitter := NewSubmitter(NewReader(fixture()), nil, "", "", nil)
		if _, err := submitter.Submit(ctx, account, 10); !errors.Is(err, ErrSubmitFailed) {
			t.Fatalf("expected ErrSubmitFailed, got %v", err)
		}
	})

	t.Run("ownership and progress checked first", func(t *testing.T) {
		called := false
		notifier := &fakeNotifier{postFn: func(string, any) error {
			called = true
			return nil
		}}
		submitter := NewSubmitter(NewReader(fixture()), notifier, "http://workflow.local/teacher", "", nil)
		if _, err := submitter.Submit(ctx, account, 11); !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("expected ErrAccessDenied, got %v", err)
		}
		if _, err := submitter.Submit(ctx, account, 12); !errors.Is(err, ErrInProgress) {
			t.Fatalf("expected ErrInProgress, got %v", err)
		}
		if called {
			t.Fatal("expected no webhook call")
		}
	})
}
