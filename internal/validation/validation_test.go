package validation

import (
	"errors"
	"strings"
	"testing"
)

var errNameRequired = errors.New("name required")

type sample struct {
	Name    string `validate:"required"`
	Secret  string `validate:"required,min=3,maxbytes=6"`
	Confirm string `validate:"eqfield=Secret"`
	Email   string `validate:"omitempty,email"`
}

func TestStruct_MapsFirstFailingField(t *testing.T) {
	msgs := Messages{"Name.required": errNameRequired}

	if err := Struct(sample{Name: "a", Secret: "abcd", Confirm: "abcd"}, msgs); err != nil {
		t.Fatalf("expected valid sample, got %v", err)
	}
	if err := Struct(sample{Secret: "x"}, msgs); !errors.Is(err, errNameRequired) {
		t.Fatalf("expected mapped name error first, got %v", err)
	}

	err := Struct(sample{Name: "a", Secret: "abcd", Confirm: "abcd", Email: "nope"}, msgs)
	if err == nil || !strings.Contains(err.Error(), "email is invalid") {
		t.Fatalf("expected fallback message for unmapped tag, got %v", err)
	}
}

func TestStruct_MaxBytesCountsBytes(t *testing.T) {
	tooLong := errors.New("too long")
	msgs := Messages{"Secret.maxbytes": tooLong}

	// Cuatro runas, ocho bytes.
	secret := "ññññ"
	if err := Struct(sample{Name: "a", Secret: secret, Confirm: secret}, msgs); !errors.Is(err, tooLong) {
		t.Fatalf("expected maxbytes to reject multibyte input, got %v", err)
	}
}

func TestValidator_IsShared(t *testing.T) {
	if Validator() != Validator() {
		t.Fatalf("expected a single shared validator")
	}
}
