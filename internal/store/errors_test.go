package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyUnique(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"email", &pgconn.PgError{Code: "23505", ConstraintName: "students_email_key"}, ErrEmailTaken},
		{"student id", &pgconn.PgError{Code: "23505", ConstraintName: "students_student_id_key"}, ErrStudentIDTaken},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "students_email_key"}), ErrEmailTaken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyUnique(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestClassifyUniquePassesThroughOtherErrors(t *testing.T) {
	other := &pgconn.PgError{Code: "23505", ConstraintName: "assignments_pkey"}
	if got := classifyUnique(other); got != error(other) {
		t.Fatalf("expected unrelated constraint untouched, got %v", got)
	}
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "students_email_key"}
	if got := classifyUnique(fk); errors.Is(got, ErrEmailTaken) {
		t.Fatal("expected non-unique violation to pass through")
	}
	plain := errors.New("boom")
	if got := classifyUnique(plain); got != plain {
		t.Fatalf("expected plain error untouched, got %v", got)
	}
}
