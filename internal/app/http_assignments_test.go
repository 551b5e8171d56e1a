package app

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"assignmenthelper/api/internal/webhook"
)

func uploadFile(t *testing.T, handler http.Handler, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestUploadStoresAssignmentAndNotifies(t *testing.T) {
	fs := newFakeStore()
	notifier := &fakeNotifier{}
	handler := NewHTTPServer(newTestService(t, fs, &fakeSearcher{}, notifier), "*").Handler()
	token := registerToken(t, handler, "ada@uni.edu", "analytical")

	rr := uploadFile(t, handler, token, "essay.txt", []byte("Hello world foo"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	if payload["message"] != "Assignment uploaded successfully" || payload["status"] != "Analysis in progress" {
		t.Fatalf("unexpected upload response %v", payload)
	}
	if payload["word_count"] != float64(3) || payload["filename"] != "essay.txt" {
		t.Fatalf("unexpected upload response %v", payload)
	}

	if len(notifier.calls) != 1 {
		t.Fatalf("expected one webhook call, got %d", len(notifier.calls))
	}
	notification, ok := notifier.calls[0].(webhook.UploadNotification)
	if !ok || notification.AssignmentText != "Hello world foo" || notification.TeacherEmail != "prof@uni.edu" {
		t.Fatalf("unexpected notification %+v", notifier.calls[0])
	}
}

func TestUploadSucceedsWhenWebhookFails(t *testing.T) {
	notifier := &fakeNotifier{postFn: func(string, any) error {
		return errors.New("context deadline exceeded")
	}}
	handler := NewHTTPServer(newTestService(t, newFakeStore(), &fakeSearcher{}, notifier), "*").Handler()
	token := registerToken(t, handler, "ada@uni.edu", "analytical")

	rr := uploadFile(t, handler, token, "essay.txt", []byte("still stored"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected upload to succeed, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUploadRequiresFile(t *testing.T) {
	handler := newTestHandler(t, newFakeStore())
	token := registerToken(t, handler, "ada@uni.edu", "analytical")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("note", "no file here")
	_ = writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUploadBrokenDocumentIsUpstreamFailure(t *testing.T) {
	handler := newTestHandler(t, newFakeStore())
	token := registerToken(t, handler, "ada@uni.edu", "analytical")

	rr := uploadFile(t, handler, token, "essay.docx", []byte("not a zip archive"))
	if rr.Code != http.StatusInternalServerError || decodeMap(t, rr)["code"] != "UPSTREAM_FAILURE" {
		t.Fatalf("expected UPSTREAM_FAILURE, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestListAssignmentsOnlyOwn(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	ada := registerToken(t, handler, "ada@uni.edu", "analytical")
	grace := registerToken(t, handler, "grace@uni.edu", "compiler")

	uploadFile(t, handler, ada, "one.txt", []byte("first"))
	uploadFile(t, handler, ada, "two.txt", []byte("second upload"))
	uploadFile(t, handler, grace, "hers.txt", []byte("not yours"))

	rr := doJSON(t, handler, http.MethodGet, "/api/v1/assignments", "", ada)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var list []map[string]any
	decodeInto(t, rr, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(list))
	}
	if list[0]["filename"] != "two.txt" || list[1]["filename"] != "one.txt" {
		t.Fatalf("expected newest first, got %v", list)
	}
	if _, ok := list[0]["original_text"]; ok {
		t.Fatal("list must not include the extracted text")
	}
}

func TestAnalysisOwnership(t *testing.T) {
	fs := newFakeStore()
	handler := newTestHandler(t, fs)
	ada := registerToken(t, handler, "ada@uni.edu", "analytical")
	grace := registerToken(t, handler, "grace@uni.edu", "compiler")

	uploadFile(t, handler, ada, "essay.txt", []byte("some words"))
	var assignmentID int64
	for id := range fs.assignments {
		assignmentID = id
	}

	pending := doJSON(t, handler, http.MethodGet, "/api/v1/assignments/"+strconv.FormatInt(assignmentID, 10)+"/analysis", "", ada)
	if pending.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before analysis exists, got %d", pending.Code)
	}
	if decodeMap(t, pending)["detail"] != "Analysis not found yet; processing may still be in progress" {
		t.Fatalf("unexpected body %s", pending.Body.String())
	}

	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	fs.addAnalysis(assignmentID, t1)
	latest := fs.addAnalysis(assignmentID, t1.Add(time.Hour))

	rr := doJSON(t, handler, http.MethodGet, "/api/v1/assignments/"+strconv.FormatInt(assignmentID, 10)+"/analysis", "", ada)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if decodeMap(t, rr)["id"] != float64(latest.ID) {
		t.Fatalf("expected latest analysis %d, got %s", latest.ID, rr.Body.String())
	}

	byID := doJSON(t, handler, http.MethodGet, "/api/v1/analysis/"+strconv.FormatInt(latest.ID, 10), "", ada)
	if byID.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", byID.Code)
	}
	response := decodeMap(t, byID)
	if _, ok := response["suggested_sources"]; !ok {
		t.Fatalf("expected suggested_sources field, got %v", response)
	}

	foreign := doJSON(t, handler, http.MethodGet, "/api/v1/analysis/"+strconv.FormatInt(latest.ID, 10), "", grace)
	if foreign.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", foreign.Code)
	}

	missing := doJSON(t, handler, http.MethodGet, "/api/v1/analysis/9999", "", ada)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", missing.Code)
	}

	badID := doJSON(t, handler, http.MethodGet, "/api/v1/analysis/abc", "", ada)
	if badID.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", badID.Code)
	}
}

func TestSubmitToTeacher(t *testing.T) {
	fs := newFakeStore()
	notifier := &fakeNotifier{}
	handler := NewHTTPServer(newTestService(t, fs, &fakeSearcher{}, notifier), "*").Handler()
	ada := registerToken(t, handler, "ada@uni.edu", "analytical")

	uploadFile(t, handler, ada, "essay.txt", []byte("some words"))
	var assignmentID int64
	for id := range fs.assignments {
		assignmentID = id
	}
	path := "/api/v1/assignments/" + strconv.FormatInt(assignmentID, 10) + "/submit"

	if rr := doJSON(t, handler, http.MethodPost, path, "", ada); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 while analysis is pending, got %d", rr.Code)
	}

	result := fs.addAnalysis(assignmentID, time.Now())
	rr := doJSON(t, handler, http.MethodPost, path, "", ada)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if decodeMap(t, rr)["analysis_id"] != float64(result.ID) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
	submission, ok := notifier.calls[len(notifier.calls)-1].(webhook.TeacherSubmission)
	if !ok || submission.AnalysisID != result.ID {
		t.Fatalf("unexpected submission %+v", notifier.calls[len(notifier.calls)-1])
	}

	notifier.postFn = func(string, any) error { return &webhook.StatusError{StatusCode: 500} }
	failed := doJSON(t, handler, http.MethodPost, path, "", ada)
	if failed.Code != http.StatusBadGateway || decodeMap(t, failed)["code"] != "WEBHOOK_FAILED" {
		t.Fatalf("expected WEBHOOK_FAILED, got %d body=%s", failed.Code, failed.Body.String())
	}
}
