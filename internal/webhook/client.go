// Package webhook posts JSON payloads to the external workflow service.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 30 * time.Second

var ErrNotConfigured = errors.New("webhook url is not configured")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook responded with status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	http    *http.Client
	timeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}, timeout: timeout}
}

// Post sends payload as JSON to url. The whole exchange is bounded by the
// client timeout.
func (c *Client) Post(ctx context.Context, url string, payload any) error {
	if strings.TrimSpace(url) == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// UploadNotification tells the workflow a new assignment is ready for analysis.
type UploadNotification struct {
	StudentID      string `json:"student_id"`
	StudentEmail   string `json:"student_email"`
	TeacherEmail   string `json:"teacher_email"`
	AssignmentID   int64  `json:"assignment_id"`
	Filename       string `json:"filename"`
	AssignmentText string `json:"assignmentText"`
}

// TeacherSubmission forwards a reviewed assignment and its analysis to the instructor.
type TeacherSubmission struct {
	StudentID       string   `json:"student_id"`
	StudentEmail    string   `json:"student_email"`
	TeacherEmail    string   `json:"teacher_email"`
	AssignmentID    int64    `json:"assignment_id"`
	Filename        string   `json:"filename"`
	AnalysisID      int64    `json:"analysis_id"`
	Summary         *string  `json:"summary"`
	PlagiarismScore *float64 `json:"plagiarism_score"`
}
