package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var (
	ErrNotFound       = errors.New("not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrStudentIDTaken = errors.New("student id already registered")
)

// classifyUnique maps unique violations on the students table to sentinel errors.
func classifyUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "students_email_key":
		return ErrEmailTaken
	case "students_student_id_key":
		return ErrStudentIDTaken
	default:
		return err
	}
}
