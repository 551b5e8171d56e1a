package authpw

import (
	"context"
	"errors"
	"testing"

	"assignmenthelper/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// mockAccountStore is an in-memory AccountStore that enforces the same
// uniqueness rules as the students table.
type mockAccountStore struct {
	accounts   map[int64]store.Account
	emailIndex map[string]int64
	studentIDs map[string]int64
	nextID     int64
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts:   make(map[int64]store.Account),
		emailIndex: make(map[string]int64),
		studentIDs: make(map[string]int64),
	}
}

func (m *mockAccountStore) CreateAccount(ctx context.Context, account store.Account) (store.Account, error) {
	if _, ok := m.emailIndex[account.Email]; ok {
		return store.Account{}, store.ErrEmailTaken
	}
	if account.StudentID != nil {
		if _, ok := m.studentIDs[*account.StudentID]; ok {
			return store.Account{}, store.ErrStudentIDTaken
		}
	}
	m.nextID++
	account.ID = m.nextID
	m.accounts[account.ID] = account
	m.emailIndex[account.Email] = account.ID
	if account.StudentID != nil {
		m.studentIDs[*account.StudentID] = account.ID
	}
	return account, nil
}

func (m *mockAccountStore) GetAccountByEmail(ctx context.Context, email string) (store.Account, error) {
	if id, ok := m.emailIndex[email]; ok {
		return m.accounts[id], nil
	}
	return store.Account{}, store.ErrNotFound
}

func (m *mockAccountStore) GetAccountByID(ctx context.Context, id int64) (store.Account, error) {
	if account, ok := m.accounts[id]; ok {
		return account, nil
	}
	return store.Account{}, store.ErrNotFound
}

func (m *mockAccountStore) UpdatePasswordHash(ctx context.Context, accountID int64, passwordHash string) error {
	account, ok := m.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	account.PasswordHash = passwordHash
	m.accounts[accountID] = account
	return nil
}

func newTestAccounts() (*Service, *mockAccountStore) {
	mockStore := newMockAccountStore()
	return NewService(mockStore, NewHasher(bcrypt.MinCost)), mockStore
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, mockStore := newTestAccounts()

	t.Run("successful registration", func(t *testing.T) {
		account, err := svc.Register(ctx, RegisterRequest{
			Email:     "ada@uni.edu",
			Password:  "analytical",
			FullName:  "Ada Lovelace",
			StudentID: "S-100",
		})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if account.ID == 0 {
			t.Fatal("expected account id to be assigned")
		}
		if account.PasswordHash == "analytical" {
			t.Fatal("expected password to be hashed")
		}
		if account.FullName == nil || *account.FullName != "Ada Lovelace" {
			t.Fatalf("expected full name stored, got %v", account.FullName)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Email: "ada@uni.edu", Password: "other"})
		if !errors.Is(err, store.ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("duplicate student id", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Email: "grace@uni.edu", Password: "cobol", StudentID: "S-100"})
		if !errors.Is(err, store.ErrStudentIDTaken) {
			t.Fatalf("expected ErrStudentIDTaken, got %v", err)
		}
	})

	t.Run("blank optional fields stored as null", func(t *testing.T) {
		account, err := svc.Register(ctx, RegisterRequest{Email: "alan@uni.edu", Password: "enigma", FullName: "  "})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if account.FullName != nil || account.StudentID != nil {
			t.Fatalf("expected nil optional fields, got %+v", account)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		for _, email := range []string{"", "not-an-email", "Ada <ada@uni.edu>"} {
			if _, err := svc.Register(ctx, RegisterRequest{Email: email, Password: "secret"}); !errors.Is(err, ErrInvalidEmail) {
				t.Fatalf("expected ErrInvalidEmail for %q, got %v", email, err)
			}
		}
	})

	t.Run("missing password", func(t *testing.T) {
		if _, err := svc.Register(ctx, RegisterRequest{Email: "x@uni.edu"}); !errors.Is(err, ErrPasswordRequired) {
			t.Fatalf("expected ErrPasswordRequired, got %v", err)
		}
	})

	if len(mockStore.accounts) != 2 {
		t.Fatalf("expected 2 stored accounts, got %d", len(mockStore.accounts))
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccounts()
	if _, err := svc.Register(ctx, RegisterRequest{Email: "ada@uni.edu", Password: "analytical"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		account, err := svc.Authenticate(ctx, "ada@uni.edu", "analytical")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if account.Email != "ada@uni.edu" {
			t.Fatalf("unexpected account %+v", account)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := svc.Authenticate(ctx, "ada@uni.edu", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		if _, err := svc.Authenticate(ctx, "nobody@uni.edu", "analytical"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccounts()
	if _, err := svc.Register(ctx, RegisterRequest{Email: "ada@uni.edu", Password: "analytical"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.ResetPassword(ctx, "ada@uni.edu", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := svc.ResetPassword(ctx, "ada@uni.edu", "日本語"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected multi-byte short password rejected, got %v", err)
	}
	if err := svc.ResetPassword(ctx, "nobody@uni.edu", "longenough"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := svc.ResetPassword(ctx, "ada@uni.edu", "difference"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ada@uni.edu", "difference"); err != nil {
		t.Fatalf("expected new password to authenticate, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ada@uni.edu", "analytical"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, mockStore := newTestAccounts()
	account, err := svc.Register(ctx, RegisterRequest{Email: "ada@uni.edu", Password: "analytical"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	cases := []struct {
		name    string
		old     string
		new     string
		wantErr error
	}{
		{"same as current", "analytical", "analytical", ErrPasswordUnchanged},
		{"wrong current", "guess-again", "brand-new", ErrIncorrectPassword},
		{"too short", "analytical", "tiny", ErrPasswordTooShort},
		{"too short in characters", "analytical", "日本", ErrPasswordTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.ChangePassword(ctx, account, tc.old, tc.new); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if err := svc.ChangePassword(ctx, account, "analytical", "パスワード認証"); err != nil {
		t.Fatalf("expected six multi-byte characters accepted, got %v", err)
	}
	account = mockStore.accounts[account.ID]
	if err := svc.ChangePassword(ctx, account, "パスワード認証", "engine-notes"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	stored := mockStore.accounts[account.ID]
	if !svc.hasher.Verify("engine-notes", stored.PasswordHash) {
		t.Fatal("expected stored hash to match the new password")
	}
}
