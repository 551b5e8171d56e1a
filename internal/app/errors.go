package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"assignmenthelper/api/internal/analysis"
	"assignmenthelper/api/internal/auth"
	"assignmenthelper/api/internal/authpw"
	"assignmenthelper/api/internal/embedding"
	"assignmenthelper/api/internal/ingest"
	"assignmenthelper/api/internal/search"
	"assignmenthelper/api/internal/similarity"
	"assignmenthelper/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func (e *DomainError) wrap(cause error) *DomainError {
	e.cause = cause
	return e
}

func validationError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func unauthenticated(message string) *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func accessDenied(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

// conflict keeps status 400 so existing clients see the same response for
// duplicate registrations.
func conflict(code, message string) *DomainError {
	return domainError(http.StatusBadRequest, code, message, nil)
}

func upstreamFailure(code, message string) *DomainError {
	return domainError(http.StatusInternalServerError, code, message, nil)
}

// errorResponse maps domain sentinels to API errors. Anything unknown is a 500
// without leaking internals.
func errorResponse(err error) *DomainError {
	var domainErr *DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, store.ErrEmailTaken):
		return conflict("EMAIL_EXISTS", "Email already registered").wrap(err)
	case errors.Is(err, store.ErrStudentIDTaken):
		return conflict("STUDENT_ID_EXISTS", "Student ID already registered").wrap(err)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return unauthenticated("Incorrect email or password").wrap(err)
	case errors.Is(err, auth.ErrUnauthenticated):
		return unauthenticated("Could not validate credentials").wrap(err)
	case errors.Is(err, authpw.ErrInvalidEmail),
		errors.Is(err, authpw.ErrPasswordRequired),
		errors.Is(err, authpw.ErrPasswordTooShort),
		errors.Is(err, authpw.ErrPasswordUnchanged),
		errors.Is(err, authpw.ErrIncorrectPassword),
		errors.Is(err, ingest.ErrFilenameRequired),
		errors.Is(err, ingest.ErrTooLarge),
		errors.Is(err, search.ErrEmptyQuery):
		return validationError(sentence(rootMessage(err))).wrap(err)
	case errors.Is(err, authpw.ErrAccountNotFound):
		return notFound("No account is registered with this email").wrap(err)
	case errors.Is(err, analysis.ErrNotFound):
		return notFound("Analysis not found").wrap(err)
	case errors.Is(err, analysis.ErrAssignmentNotFound):
		return notFound("Assignment not found").wrap(err)
	case errors.Is(err, analysis.ErrInProgress):
		return notFound("Analysis not found yet; processing may still be in progress").wrap(err)
	case errors.Is(err, analysis.ErrAccessDenied):
		return accessDenied("Access denied").wrap(err)
	case errors.Is(err, analysis.ErrSubmitFailed):
		return domainError(http.StatusBadGateway, "WEBHOOK_FAILED", "Failed to notify the instructor", nil).wrap(err)
	case errors.Is(err, ingest.ErrExtraction):
		return upstreamFailure("UPSTREAM_FAILURE", "Error processing file: "+err.Error()).wrap(err)
	case errors.Is(err, similarity.ErrEmptyCorpus):
		return upstreamFailure("EMPTY_CORPUS", "Error searching sources: "+err.Error()).wrap(err)
	case errors.Is(err, similarity.ErrDimensionMismatch):
		return upstreamFailure("DIMENSION_MISMATCH", "Error searching sources: "+err.Error()).wrap(err)
	case errors.Is(err, embedding.ErrEmbedding), errors.Is(err, embedding.ErrNotConfigured):
		return upstreamFailure("UPSTREAM_FAILURE", "Error searching sources: "+err.Error()).wrap(err)
	default:
		return domainError(http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil).wrap(err)
	}
}

// rootMessage is the text of the innermost wrapped error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func sentence(message string) string {
	if message == "" {
		return message
	}
	return strings.ToUpper(message[:1]) + message[1:]
}
