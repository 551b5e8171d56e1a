package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"assignmenthelper/api/internal/logger"
	"assignmenthelper/api/internal/objectstore"
	"assignmenthelper/api/internal/store"
	"assignmenthelper/api/internal/webhook"
)

const DefaultMaxBytes int64 = 20 << 20

var (
	ErrFilenameRequired = errors.New("file name is required")
	ErrTooLarge         = errors.New("uploaded file is too large")
)

// AssignmentStore persists uploaded assignments.
type AssignmentStore interface {
	InsertAssignment(ctx context.Context, assignment store.Assignment) (store.Assignment, error)
	SetAssignmentStorageKey(ctx context.Context, assignmentID int64, key string) error
}

// Archiver keeps a copy of the raw upload.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Notifier delivers JSON payloads to the analysis workflow.
type Notifier interface {
	Post(ctx context.Context, url string, payload any) error
}

type Options struct {
	WebhookURL   string
	TeacherEmail string
	MaxBytes     int64
}

type Service struct {
	assignments AssignmentStore
	archiver    Archiver
	notifier    Notifier
	opts        Options
	log         *logger.Logger
}

// NewService wires ingestion. archiver and notifier may be nil.
func NewService(assignments AssignmentStore, archiver Archiver, notifier Notifier, opts Options, log *logger.Logger) *Service {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		assignments: assignments,
		archiver:    archiver,
		notifier:    notifier,
		opts:        opts,
		log:         log,
	}
}

// MaxBytes is the largest upload accepted.
func (s *Service) MaxBytes() int64 {
	return s.opts.MaxBytes
}

// Ingest extracts text from raw, stores it for account and notifies the
// analysis workflow. Archival and notification failures never fail the upload.
func (s *Service) Ingest(ctx context.Context, account store.Account, filename string, raw []byte) (store.Assignment, error) {
	filename = filepath.Base(strings.TrimSpace(strings.ReplaceAll(filename, `\`, "/")))
	if filename == "" || filename == "." || filename == "/" {
		return store.Assignment{}, ErrFilenameRequired
	}
	if int64(len(raw)) > s.opts.MaxBytes {
		return store.Assignment{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.opts.MaxBytes)
	}

	text, err := ExtractText(filename, raw)
	if err != nil {
		return store.Assignment{}, err
	}

	assignment, err := s.assignments.InsertAssignment(ctx, store.Assignment{
		StudentID:    account.ID,
		Filename:     filename,
		OriginalText: text,
		WordCount:    CountWords(text),
	})
	if err != nil {
		return store.Assignment{}, fmt.Errorf("store assignment: %w", err)
	}

	log := s.log.With("assignment_id", assignment.ID, "account_id", account.ID)
	log.Info("assignment stored", "filename", filename, "word_count", assignment.WordCount)

	// The row is committed; a client disconnect must not abort the follow-up work.
	followUp := context.WithoutCancel(ctx)
	if key, ok := s.archive(followUp, log, account.ID, filename, raw); ok {
		if err := s.assignments.SetAssignmentStorageKey(followUp, assignment.ID, key); err != nil {
			log.Warn("record storage key failed", "key", key, "error", err)
		} else {
			assignment.StorageKey = &key
		}
	}
	s.notify(followUp, log, account, assignment)

	return assignment, nil
}

func (s *Service) archive(ctx context.Context, log *logger.Logger, accountID int64, filename string, raw []byte) (string, bool) {
	if s.archiver == nil {
		return "", false
	}
	key := objectstore.ObjectKey(accountID, filename)
	if err := s.archiver.Put(ctx, key, raw, objectstore.ContentType(filename)); err != nil {
		log.Warn("archive upload failed", "error", err)
		return "", false
	}
	return key, true
}

func (s *Service) notify(ctx context.Context, log *logger.Logger, account store.Account, assignment store.Assignment) {
	if s.notifier == nil || strings.TrimSpace(s.opts.WebhookURL) == "" {
		log.Debug("analysis webhook not configured, skipping notification")
		return
	}
	payload := webhook.UploadNotification{
		StudentID:      StudentRef(account),
		StudentEmail:   account.Email,
		TeacherEmail:   s.opts.TeacherEmail,
		AssignmentID:   assignment.ID,
		Filename:       assignment.Filename,
		AssignmentText: assignment.OriginalText,
	}
	if err := s.notifier.Post(ctx, s.opts.WebhookURL, payload); err != nil {
		log.Warn("analysis webhook failed", "error", err)
		return
	}
	log.Info("analysis webhook delivered")
}

// StudentRef is the account identifier sent to the workflow.
func StudentRef(account store.Account) string {
	return strconv.FormatInt(account.ID, 10)
}
