// Package authpw provides email/password accounts for students.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"assignmenthelper/api/internal/store"
)

// MinPasswordLength applies to password reset and change.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidEmail       = errors.New("a valid email address is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordUnchanged  = errors.New("new password must be different from the current password")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrAccountNotFound    = errors.New("no account is registered with this email")
)

// Service manages student accounts
type Service struct {
	store  AccountStore
	hasher *Hasher
}

// AccountStore defines the storage interface for accounts
type AccountStore interface {
	CreateAccount(ctx context.Context, account store.Account) (store.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	GetAccountByID(ctx context.Context, id int64) (store.Account, error)
	UpdatePasswordHash(ctx context.Context, accountID int64, passwordHash string) error
}

func NewService(accounts AccountStore, hasher *Hasher) *Service {
	return &Service{store: accounts, hasher: hasher}
}

// RegisterRequest contains registration parameters
type RegisterRequest struct {
	Email     string
	Password  string
	FullName  string
	StudentID string
}

// Register creates an account. Duplicate email or student id surfaces as
// store.ErrEmailTaken or store.ErrStudentIDTaken.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.Account, error) {
	email, err := normaliseEmail(req.Email)
	if err != nil {
		return store.Account{}, err
	}
	if req.Password == "" {
		return store.Account{}, ErrPasswordRequired
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return store.Account{}, err
	}

	account, err := s.store.CreateAccount(ctx, store.Account{
		Email:        email,
		PasswordHash: hash,
		FullName:     optional(req.FullName),
		StudentID:    optional(req.StudentID),
	})
	if err != nil {
		return store.Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// Authenticate returns the account whose password matches. Unknown email and
// wrong password are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, email, password string) (store.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return store.Account{}, ErrInvalidCredentials
	}
	account, err := s.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Account{}, err
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		return store.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// ResetPassword sets a new password for the account registered with email.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	if tooShort(newPassword) {
		return ErrPasswordTooShort
	}
	account, err := s.store.GetAccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	return s.setPassword(ctx, account.ID, newPassword)
}

// ChangePassword replaces the password of an authenticated account.
func (s *Service) ChangePassword(ctx context.Context, account store.Account, oldPassword, newPassword string) error {
	if tooShort(newPassword) {
		return ErrPasswordTooShort
	}
	if !s.hasher.Verify(oldPassword, account.PasswordHash) {
		return ErrIncorrectPassword
	}
	if newPassword == oldPassword || s.hasher.Verify(newPassword, account.PasswordHash) {
		return ErrPasswordUnchanged
	}
	return s.setPassword(ctx, account.ID, newPassword)
}

func (s *Service) setPassword(ctx context.Context, accountID int64, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// tooShort counts characters, not bytes.
func tooShort(password string) bool {
	return utf8.RuneCountInString(password) < MinPasswordLength
}

func normaliseEmail(value string) (string, error) {
	email := strings.TrimSpace(value)
	if email == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
