package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"assignmenthelper/api/internal/analysis"
	"assignmenthelper/api/internal/auth"
	"assignmenthelper/api/internal/authpw"
	"assignmenthelper/api/internal/config"
	"assignmenthelper/api/internal/ingest"
	"assignmenthelper/api/internal/logger"
	"assignmenthelper/api/internal/search"
	"assignmenthelper/api/internal/store"
)

const (
	defaultTopK  = 5
	maxTopK      = 50
	defaultLimit = 10
	maxLimit     = 50
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type RegisterInput struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FullName  *string `json:"full_name"`
	StudentID *string `json:"student_id"`
}

type AccountResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	StudentID *string   `json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}

type UploadResponse struct {
	Message      string `json:"message"`
	AssignmentID int64  `json:"assignment_id"`
	Filename     string `json:"filename"`
	WordCount    int    `json:"word_count"`
	Status       string `json:"status"`
}

type AssignmentResponse struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	Topic         *string   `json:"topic"`
	AcademicLevel *string   `json:"academic_level"`
	WordCount     int       `json:"word_count"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

type AnalysisResponse struct {
	ID                      int64           `json:"id"`
	AssignmentID            int64           `json:"assignment_id"`
	OriginalSummary         *string         `json:"original_summary"`
	SuggestedSources        json.RawMessage `json:"suggested_sources"`
	PlagiarismScore         *float64        `json:"plagiarism_score"`
	FlaggedSections         json.RawMessage `json:"flagged_sections"`
	ResearchSuggestions     *string         `json:"research_suggestions"`
	CitationRecommendations *string         `json:"citation_recommendations"`
	ConfidenceScore         *float64        `json:"confidence_score"`
	AnalyzedAt              time.Time       `json:"analyzed_at"`
}

type dataStore interface {
	authpw.AccountStore
	ingest.AssignmentStore
	analysis.Store
	ListAssignments(ctx context.Context, studentID int64) ([]store.Assignment, error)
	Ping(ctx context.Context) error
}

// SourceSearcher ranks and looks up academic sources.
type SourceSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]search.Result, error)
	Lookup(ctx context.Context, q string, limit int) ([]search.Summary, error)
}

// Deps are the process-scoped collaborators built in main. Archiver and
// Notifier may be nil.
type Deps struct {
	Store    dataStore
	Tokens   *auth.Issuer
	Hasher   *authpw.Hasher
	Search   SourceSearcher
	Archiver ingest.Archiver
	Notifier ingest.Notifier
	Log      *logger.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	tokens    *auth.Issuer
	accounts  *authpw.Service
	ingest    *ingest.Service
	reader    *analysis.Reader
	submitter *analysis.Submitter
	search    SourceSearcher
	log       *logger.Logger
}

func NewService(cfg config.Config, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = authpw.NewHasher(cfg.BcryptCost)
	}

	reader := analysis.NewReader(deps.Store)
	var submitNotifier analysis.Notifier
	if deps.Notifier != nil {
		submitNotifier = deps.Notifier
	}

	return &Service{
		cfg:      cfg,
		store:    deps.Store,
		tokens:   deps.Tokens,
		accounts: authpw.NewService(deps.Store, hasher),
		ingest: ingest.NewService(deps.Store, deps.Archiver, deps.Notifier, ingest.Options{
			WebhookURL:   cfg.WebhookURL,
			TeacherEmail: cfg.TeacherEmail,
			MaxBytes:     cfg.MaxUploadBytes,
		}, log.With("component", "ingest")),
		reader:    reader,
		submitter: analysis.NewSubmitter(reader, submitNotifier, cfg.TeacherWebhookURL, cfg.TeacherEmail, log.With("component", "submit")),
		search:    deps.Search,
		log:       log,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) MaxUploadBytes() int64 {
	return s.ingest.MaxBytes()
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (TokenResponse, error) {
	account, err := s.accounts.Register(ctx, authpw.RegisterRequest{
		Email:     input.Email,
		Password:  input.Password,
		FullName:  deref(input.FullName),
		StudentID: deref(input.StudentID),
	})
	if err != nil {
		return TokenResponse{}, err
	}
	s.log.Info("account registered", "account_id", account.ID)
	return s.issue(account)
}

func (s *Service) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	account, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return TokenResponse{}, err
	}
	return s.issue(account)
}

func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	if err := s.accounts.ResetPassword(ctx, email, newPassword); err != nil {
		return err
	}
	s.log.Info("password reset", "email", email)
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, account store.Account, oldPassword, newPassword string) error {
	if err := s.accounts.ChangePassword(ctx, account, oldPassword, newPassword); err != nil {
		return err
	}
	s.log.Info("password changed", "account_id", account.ID)
	return nil
}

// AccountFromToken resolves a bearer token to the account it was issued for.
func (s *Service) AccountFromToken(ctx context.Context, token string) (store.Account, error) {
	email, err := s.tokens.Validate(token)
	if err != nil {
		return store.Account{}, err
	}
	account, err := s.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, auth.ErrUnauthenticated
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

func (s *Service) Upload(ctx context.Context, account store.Account, filename string, raw []byte) (UploadResponse, error) {
	assignment, err := s.ingest.Ingest(ctx, account, filename, raw)
	if err != nil {
		return UploadResponse{}, err
	}
	return UploadResponse{
		Message:      "Assignment uploaded successfully",
		AssignmentID: assignment.ID,
		Filename:     assignment.Filename,
		WordCount:    assignment.WordCount,
		Status:       "Analysis in progress",
	}, nil
}

func (s *Service) ListAssignments(ctx context.Context, account store.Account) ([]AssignmentResponse, error) {
	assignments, err := s.store.ListAssignments(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, AssignmentResponse{
			ID:            a.ID,
			Filename:      a.Filename,
			Topic:         a.Topic,
			AcademicLevel: a.AcademicLevel,
			WordCount:     a.WordCount,
			UploadedAt:    a.UploadedAt,
		})
	}
	return out, nil
}

func (s *Service) Analysis(ctx context.Context, account store.Account, analysisID int64) (AnalysisResponse, error) {
	result, err := s.reader.GetByID(ctx, analysisID, account.ID)
	if err != nil {
		return AnalysisResponse{}, err
	}
	return analysisResponse(result), nil
}

func (s *Service) LatestAnalysis(ctx context.Context, account store.Account, assignmentID int64) (AnalysisResponse, error) {
	result, err := s.reader.LatestForAssignment(ctx, assignmentID, account.ID)
	if err != nil {
		return AnalysisResponse{}, err
	}
	return analysisResponse(result), nil
}

func (s *Service) SubmitToTeacher(ctx context.Context, account store.Account, assignmentID int64) (map[string]any, error) {
	result, err := s.submitter.Submit(ctx, account, assignmentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":       "Assignment submitted to instructor",
		"assignment_id": assignmentID,
		"analysis_id":   result.ID,
	}, nil
}

func (s *Service) SearchSources(ctx context.Context, query string, topK int) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, validationError("query is required")
	}
	if topK < 1 || topK > maxTopK {
		return nil, validationError(fmt.Sprintf("top_k must be between 1 and %d", maxTopK))
	}
	results, err := s.search.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) LookupSources(ctx context.Context, q string, limit int) ([]search.Summary, error) {
	if strings.TrimSpace(q) == "" {
		return nil, validationError("q is required")
	}
	if limit < 1 || limit > maxLimit {
		return nil, validationError(fmt.Sprintf("limit must be between 1 and %d", maxLimit))
	}
	return s.search.Lookup(ctx, q, limit)
}

func (s *Service) issue(account store.Account) (TokenResponse, error) {
	token, _, err := s.tokens.Issue(account.Email)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("issue token: %w", err)
	}
	return TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

func accountResponse(account store.Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID,
		Email:     account.Email,
		FullName:  account.FullName,
		StudentID: account.StudentID,
		CreatedAt: account.CreatedAt,
	}
}

func analysisResponse(result store.AnalysisResult) AnalysisResponse {
	return AnalysisResponse{
		ID:                      result.ID,
		AssignmentID:            result.AssignmentID,
		OriginalSummary:         result.OriginalSummary,
		SuggestedSources:        result.SuggestedSources,
		PlagiarismScore:         result.PlagiarismScore,
		FlaggedSections:         result.FlaggedSections,
		ResearchSuggestions:     result.ResearchSuggestions,
		CitationRecommendations: result.CitationRecommendations,
		ConfidenceScore:         result.ConfidenceScore,
		AnalyzedAt:              result.AnalyzedAt,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
