package authpw

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, password := range []string{"secret", "pässwörd-ünïcode", strings.Repeat("x", MaxPasswordBytes)} {
		digest, err := h.Hash(password)
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		if !h.Verify(password, digest) {
			t.Fatalf("expected %q to verify against its digest", password)
		}
		if h.Verify(password+"!", digest) && len(password) < MaxPasswordBytes {
			t.Fatalf("expected different password to fail for %q", password)
		}
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, _ := h.Hash("secret")
	b, _ := h.Hash("secret")
	if a == b {
		t.Fatal("expected two digests of the same password to differ")
	}
}

func TestTruncationIsSymmetric(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	prefix := strings.Repeat("a", MaxPasswordBytes)
	digest, err := h.Hash(prefix + "first-suffix")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !h.Verify(prefix+"other-suffix", digest) {
		t.Fatal("expected passwords sharing the first 72 bytes to verify")
	}
	if !h.Verify(prefix, digest) {
		t.Fatal("expected the 72-byte prefix itself to verify")
	}
}

func TestTruncateCountsBytesNotRunes(t *testing.T) {
	password := strings.Repeat("é", 40) // 80 bytes
	if got := len(truncate(password)); got != MaxPasswordBytes {
		t.Fatalf("expected %d bytes, got %d", MaxPasswordBytes, got)
	}
}

func TestVerifyLegacyDigests(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	digest, _ := h.Hash("secret")

	t.Run("prefixed", func(t *testing.T) {
		if !h.Verify("secret", "{bcrypt}"+digest) {
			t.Fatal("expected prefixed digest to verify")
		}
	})
	t.Run("whitespace", func(t *testing.T) {
		if !h.Verify("secret", "  "+digest+"\n") {
			t.Fatal("expected padded digest to verify")
		}
	})
	t.Run("prefixed mismatch", func(t *testing.T) {
		if h.Verify("wrong", "{bcrypt}"+digest) {
			t.Fatal("expected wrong password to fail")
		}
	})
	t.Run("garbage", func(t *testing.T) {
		if h.Verify("secret", "not-a-digest") {
			t.Fatal("expected garbage digest to fail")
		}
		if h.Verify("secret", "") {
			t.Fatal("expected empty digest to fail")
		}
	})
}

func TestNewHasherClampsCost(t *testing.T) {
	if h := NewHasher(0); h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
	if h := NewHasher(99); h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
}
