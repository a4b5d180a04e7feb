package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"natours/internal/apperr"
	"natours/internal/domain"
	"natours/internal/repository"
)

type brokenLookupRepo struct {
	*memoryUserRepo
}

func (brokenLookupRepo) GetByID(context.Context, string, ...repository.FindOption) (domain.User, error) {
	return domain.User{}, errors.New("connection refused")
}

func TestSessionGuard_Authenticate(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	ctx := context.Background()
	session := f.signup(t, "a@b.io", "guide")

	user, err := f.guard.Authenticate(ctx, session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != session.User.ID || user.Role != domain.RoleGuide {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash != "" {
		t.Fatalf("guard must not load the hash")
	}

	_, err = f.guard.Authenticate(ctx, "  ")
	assertAppErr(t, err, apperr.KindUnauthorized, msgNotLoggedIn)
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}

	_, err = f.guard.Authenticate(ctx, "garbage")
	assertAppErr(t, err, apperr.KindUnauthorized, msgTokenInvalid)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestSessionGuard_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	session := f.signup(t, "a@b.io", "")

	f.clock.Advance(time.Hour + time.Second)
	_, err := f.guard.Authenticate(context.Background(), session.Token)
	assertAppErr(t, err, apperr.KindUnauthorized, msgTokenInvalid)
}

func TestSessionGuard_UserGone(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	session := f.signup(t, "a@b.io", "")
	f.repo.remove(session.User.ID)

	_, err := f.guard.Authenticate(context.Background(), session.Token)
	assertAppErr(t, err, apperr.KindUnauthorized, msgUserGone)
	if !errors.Is(err, ErrUserGone) {
		t.Fatalf("expected ErrUserGone, got %v", err)
	}
}

func TestSessionGuard_StoreFailureIsInternal(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	session := f.signup(t, "a@b.io", "")
	guard := NewSessionGuard(zap.NewNop(), f.tokens, brokenLookupRepo{f.repo}, nil)

	_, err := guard.Authenticate(context.Background(), session.Token)
	assertUnexpected(t, err)

	if _, ok := guard.Identify(context.Background(), session.Token); ok {
		t.Fatalf("identify must swallow store failures")
	}
}

func TestSessionGuard_Identify(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	ctx := context.Background()
	session := f.signup(t, "a@b.io", "")

	user, ok := f.guard.Identify(ctx, session.Token)
	if !ok || user.ID != session.User.ID {
		t.Fatalf("expected identified user, got %+v ok=%v", user, ok)
	}
	for _, token := range []string{"", LoggedOutToken, "garbage"} {
		if _, ok := f.guard.Identify(ctx, token); ok {
			t.Fatalf("expected no user for %q", token)
		}
	}
}

func TestAuthorize(t *testing.T) {
	allowed := domain.NewRoleSet(domain.RoleAdmin, domain.RoleLeadGuide)

	err := Authorize(domain.User{Role: domain.RoleUser}, allowed)
	assertAppErr(t, err, apperr.KindForbidden, msgForbidden)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := Authorize(domain.User{Role: domain.RoleLeadGuide}, allowed); err != nil {
		t.Fatalf("expected lead-guide allowed: %v", err)
	}
	if err := Authorize(domain.User{Role: domain.RoleAdmin}, allowed); err != nil {
		t.Fatalf("expected admin allowed: %v", err)
	}
	if err := Authorize(domain.User{Role: domain.RoleAdmin}, domain.NewRoleSet()); err == nil {
		t.Fatalf("empty allow-list must deny everyone")
	}
}
