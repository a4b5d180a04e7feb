package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashers_RoundTrip(t *testing.T) {
	hashers := map[string]PasswordHasher{
		"bcrypt": BcryptHasher{Cost: bcrypt.MinCost},
		"argon2id": Argon2idHasher{Params: &argon2id.Params{
			Memory:      8 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		}},
	}
	for name, h := range hashers {
		digest, err := h.Hash("secret123")
		if err != nil {
			t.Fatalf("%s: hash: %v", name, err)
		}
		if digest == "secret123" || digest == "" {
			t.Fatalf("%s: expected irreversible digest", name)
		}
		if !h.Verify("secret123", digest) {
			t.Fatalf("%s: expected verify to succeed", name)
		}
		if h.Verify("secret124", digest) {
			t.Fatalf("%s: expected verify to fail on wrong password", name)
		}
		if h.Verify("secret123", "") {
			t.Fatalf("%s: expected verify to fail on empty digest", name)
		}

		again, err := h.Hash("secret123")
		if err != nil {
			t.Fatalf("%s: hash: %v", name, err)
		}
		if again == digest {
			t.Fatalf("%s: expected salted digests to differ", name)
		}
	}
}

func TestNewPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher("", 10)
	if err != nil {
		t.Fatalf("default hasher: %v", err)
	}
	if b, ok := h.(BcryptHasher); !ok || b.Cost != 10 {
		t.Fatalf("expected bcrypt hasher with cost 10, got %#v", h)
	}
	if h, err := NewPasswordHasher("Argon2id", 0); err != nil {
		t.Fatalf("argon2id hasher: %v", err)
	} else if _, ok := h.(Argon2idHasher); !ok {
		t.Fatalf("expected argon2id hasher, got %#v", h)
	}
	if _, err := NewPasswordHasher("md5", 0); err == nil {
		t.Fatalf("expected unknown hasher error")
	}
}

func TestValidateNewPassword(t *testing.T) {
	if err := ValidateNewPassword("secret123", "secret123"); err != nil {
		t.Fatalf("expected valid password, got %v", err)
	}
	if err := ValidateNewPassword("short", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	long := strings.Repeat("a", 73)
	if err := ValidateNewPassword(long, long); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := ValidateNewPassword("secret123", "secret124"); !errors.Is(err, ErrPasswordsMismatch) {
		t.Fatalf("expected ErrPasswordsMismatch, got %v", err)
	}
	if err := ValidateNewPassword("secret123", ""); !errors.Is(err, ErrPasswordsMismatch) {
		t.Fatalf("expected ErrPasswordsMismatch for empty confirm, got %v", err)
	}
	if err := ValidateNewPassword("", ""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort for empty password, got %v", err)
	}
	// 40 runas pero 80 bytes: bcrypt no las admite.
	multibyte := strings.Repeat("ñ", 40)
	if err := ValidateNewPassword(multibyte, multibyte); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong for multibyte input, got %v", err)
	}
}

func TestNewResetToken(t *testing.T) {
	plain, hash, err := NewResetToken()
	if err != nil {
		t.Fatalf("new reset token: %v", err)
	}
	if len(plain) != 64 {
		t.Fatalf("expected 32 random bytes hex encoded, got %d chars", len(plain))
	}
	if hash == plain {
		t.Fatalf("hash must differ from plaintext")
	}
	if HashResetToken(plain) != hash {
		t.Fatalf("expected deterministic reset hash")
	}

	other, _, err := NewResetToken()
	if err != nil {
		t.Fatalf("new reset token: %v", err)
	}
	if other == plain {
		t.Fatalf("expected distinct tokens")
	}
}

func TestFallbackTimingDigests(t *testing.T) {
	if fallbackTimingDigest(BcryptHasher{}) != bcryptTimingDigest {
		t.Fatalf("expected bcrypt digest for bcrypt hasher")
	}
	cost, err := bcrypt.Cost([]byte(bcryptTimingDigest))
	if err != nil || cost != bcrypt.DefaultCost {
		t.Fatalf("expected well-formed bcrypt digest at default cost, got %d (%v)", cost, err)
	}

	if fallbackTimingDigest(Argon2idHasher{}) != argon2idTimingDigest {
		t.Fatalf("expected argon2id digest for argon2id hasher")
	}
	params, _, _, err := argon2id.DecodeHash(argon2idTimingDigest)
	if err != nil {
		t.Fatalf("decode argon2id digest: %v", err)
	}
	if params.Memory != argon2id.DefaultParams.Memory || params.KeyLength != 32 {
		t.Fatalf("unexpected argon2id params: %+v", params)
	}
}
