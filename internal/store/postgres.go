package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const accountColumns = `id, email, password_hash, full_name, student_id, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var account Account
	var fullName, studentID sql.NullString
	if err := row.Scan(&account.ID, &account.Email, &account.PasswordHash, &fullName, &studentID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return Account{}, err
	}
	account.FullName = nullString(fullName)
	account.StudentID = nullString(studentID)
	return account, nil
}

// CreateAccount inserts a new student. Duplicate email or student id yields
// ErrEmailTaken or ErrStudentIDTaken.
func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) (Account, error) {
	var created Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO students (email, password_hash, full_name, student_id)
			VALUES ($1, $2, $3, $4)
			RETURNING `+accountColumns,
			account.Email, account.PasswordHash, account.FullName, account.StudentID,
		)
		var err error
		created, err = scanAccount(row)
		if err != nil {
			return fmt.Errorf("insert account: %w", classifyUnique(err))
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM students WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) GetAccountByID(ctx context.Context, id int64) (Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM students WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account by id: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, accountID int64, passwordHash string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE students SET password_hash = $2, updated_at = NOW() WHERE id = $1`, accountID, passwordHash)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update password rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) InsertAssignment(ctx context.Context, assignment Assignment) (Assignment, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO assignments (student_id, filename, original_text, topic, academic_level, word_count)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, uploaded_at`,
			assignment.StudentID, assignment.Filename, assignment.OriginalText,
			assignment.Topic, assignment.AcademicLevel, assignment.WordCount,
		).Scan(&assignment.ID, &assignment.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

func (s *PostgresStore) SetAssignmentStorageKey(ctx context.Context, assignmentID int64, key string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE assignments SET storage_key = $2 WHERE id = $1`, assignmentID, key); err != nil {
		return fmt.Errorf("set storage key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id int64) (Assignment, error) {
	var assignment Assignment
	var topic, level, storageKey sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, filename, original_text, topic, academic_level, word_count, storage_key, uploaded_at
		FROM assignments WHERE id = $1`, id,
	).Scan(&assignment.ID, &assignment.StudentID, &assignment.Filename, &assignment.OriginalText,
		&topic, &level, &assignment.WordCount, &storageKey, &assignment.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	assignment.Topic = nullString(topic)
	assignment.AcademicLevel = nullString(level)
	assignment.StorageKey = nullString(storageKey)
	return assignment, nil
}

// ListAssignments returns a student's assignments, newest first, without their text.
func (s *PostgresStore) ListAssignments(ctx context.Context, studentID int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, filename, topic, academic_level, word_count, storage_key, uploaded_at
		FROM assignments
		WHERE student_id = $1
		ORDER BY uploaded_at DESC, id DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	items := make([]Assignment, 0)
	for rows.Next() {
		var item Assignment
		var topic, level, storageKey sql.NullString
		if err := rows.Scan(&item.ID, &item.StudentID, &item.Filename, &topic, &level, &item.WordCount, &storageKey, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		item.Topic = nullString(topic)
		item.AcademicLevel = nullString(level)
		item.StorageKey = nullString(storageKey)
		items = append(items, item)
	}
	return items, rows.Err()
}

const analysisColumns = `id, assignment_id, original_summary, suggested_sources, plagiarism_score, flagged_sections,
	research_suggestions, citation_recommendations, confidence_score, analyzed_at`

func scanAnalysis(row interface{ Scan(...any) error }) (AnalysisResult, error) {
	var result AnalysisResult
	var summary, suggestions, citations sql.NullString
	var plagiarism, confidence sql.NullFloat64
	var sources, flagged []byte
	if err := row.Scan(&result.ID, &result.AssignmentID, &summary, &sources, &plagiarism, &flagged,
		&suggestions, &citations, &confidence, &result.AnalyzedAt); err != nil {
		return AnalysisResult{}, err
	}
	result.OriginalSummary = nullString(summary)
	result.ResearchSuggestions = nullString(suggestions)
	result.CitationRecommendations = nullString(citations)
	result.PlagiarismScore = nullFloat(plagiarism)
	result.ConfidenceScore = nullFloat(confidence)
	result.SuggestedSources = rawJSON(sources)
	result.FlaggedSections = rawJSON(flagged)
	return result, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id int64) (AnalysisResult, error) {
	result, err := scanAnalysis(s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analysis_results WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return AnalysisResult{}, ErrNotFound
	}
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("get analysis: %w", err)
	}
	return result, nil
}

// LatestAnalysis returns the most recently analyzed result; ties on analyzed_at
// go to the higher id.
func (s *PostgresStore) LatestAnalysis(ctx context.Context, assignmentID int64) (AnalysisResult, error) {
	result, err := scanAnalysis(s.db.QueryRowContext(ctx, `
		SELECT `+analysisColumns+`
		FROM analysis_results
		WHERE assignment_id = $1
		ORDER BY analyzed_at DESC, id DESC
		LIMIT 1`, assignmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return AnalysisResult{}, ErrNotFound
	}
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("latest analysis: %w", err)
	}
	return result, nil
}

// InsertSource stores an academic source. A nil embedding is stored as NULL.
func (s *PostgresStore) InsertSource(ctx context.Context, source AcademicSource) (AcademicSource, error) {
	if source.SourceType == "" {
		source.SourceType = "paper"
	}
	var embedding any
	if len(source.Embedding) > 0 {
		embedding = pgvector.NewVector(source.Embedding)
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO academic_sources (title, authors, publication_year, abstract, full_text, source_type, url, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at`,
			source.Title, source.Authors, source.PublicationYear, source.Abstract,
			source.FullText, source.SourceType, source.URL, embedding,
		).Scan(&source.ID, &source.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert source: %w", err)
		}
		return nil
	})
	if err != nil {
		return AcademicSource{}, err
	}
	return source, nil
}

func (s *PostgresStore) CountSources(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM academic_sources`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sources: %w", err)
	}
	return count, nil
}

// ListSources returns every source in id order. Embeddings are loaded only when
// withEmbeddings is set, and then sources without one are skipped.
func (s *PostgresStore) ListSources(ctx context.Context, withEmbeddings bool) ([]AcademicSource, error) {
	query := `SELECT id, title, authors, publication_year, abstract, source_type, url, created_at FROM academic_sources ORDER BY id`
	if withEmbeddings {
		query = `SELECT id, title, authors, publication_year, abstract, source_type, url, created_at, embedding
			FROM academic_sources WHERE embedding IS NOT NULL ORDER BY id`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	items := make([]AcademicSource, 0)
	for rows.Next() {
		var row SourceRow
		var vec pgvector.Vector
		dest := row.Targets()
		if withEmbeddings {
			dest = append(dest, &vec)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		source := row.Source()
		if withEmbeddings {
			source.Embedding = vec.Slice()
		}
		items = append(items, source)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SourceRow holds nullable scan targets for the academic_sources columns
// id, title, authors, publication_year, abstract, source_type, url, created_at.
type SourceRow struct {
	source     AcademicSource
	authors    sql.NullString
	year       sql.NullInt64
	abstract   sql.NullString
	sourceType sql.NullString
	url        sql.NullString
}

func (r *SourceRow) Targets() []any {
	return []any{&r.source.ID, &r.source.Title, &r.authors, &r.year, &r.abstract, &r.sourceType, &r.url, &r.source.CreatedAt}
}

func (r *SourceRow) Source() AcademicSource {
	source := r.source
	source.Authors = nullString(r.authors)
	source.Abstract = nullString(r.abstract)
	source.URL = nullString(r.url)
	source.SourceType = "paper"
	if r.sourceType.Valid && r.sourceType.String != "" {
		source.SourceType = r.sourceType.String
	}
	if r.year.Valid {
		year := int(r.year.Int64)
		source.PublicationYear = &year
	}
	return source
}

func nullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullFloat(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func rawJSON(value []byte) []byte {
	if len(value) == 0 {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
