package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"natours/internal/apperr"
	"natours/internal/domain"
	"natours/internal/metrics"
	"natours/internal/repository"
)

var (
	ErrNotLoggedIn  = errors.New("no session token")
	ErrUserGone     = errors.New("token subject no longer exists")
	ErrStaleSession = errors.New("password changed after token was issued")
	ErrForbidden    = errors.New("role not allowed")
)

const (
	msgNotLoggedIn  = "You are not logged in! Please log in to get access."
	msgTokenInvalid = "Invalid token or your session has expired. Please log in again."
	msgUserGone     = "The user belonging to this token does no longer exist."
	msgStaleSession = "User recently changed password! Please log in again."
	msgForbidden    = "You do not have permission to perform this action"
)

// SessionGuard resuelve el usuario actual a partir de un token de sesion.
type SessionGuard struct {
	logger  *zap.Logger
	tokens  *TokenIssuer
	users   repository.UserRepository
	metrics *metrics.Metrics
}

func NewSessionGuard(logger *zap.Logger, tokens *TokenIssuer, users repository.UserRepository, m *metrics.Metrics) *SessionGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionGuard{logger: logger, tokens: tokens, users: users, metrics: m}
}

// Authenticate exige un token valido cuyo usuario exista y no haya cambiado
// la contraseña despues de la emision.
func (g *SessionGuard) Authenticate(ctx context.Context, token string) (domain.User, error) {
	user, err := g.authenticate(ctx, token)
	g.metrics.RecordAuthEvent("protect", err)
	return user, err
}

func (g *SessionGuard) authenticate(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, apperr.Unauthorized(msgNotLoggedIn, ErrNotLoggedIn)
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return domain.User{}, apperr.Unauthorized(msgTokenInvalid, err)
	}
	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, apperr.Unauthorized(msgUserGone, ErrUserGone)
		}
		g.logger.Error("load session user failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return domain.User{}, fmt.Errorf("load session user: %w", err)
	}
	if user.ChangedPasswordAfter(claims.IssuedAt) {
		return domain.User{}, apperr.Unauthorized(msgStaleSession, ErrStaleSession)
	}
	return user, nil
}

// Identify es la variante tolerante: cualquier fallo equivale a "sin sesion".
func (g *SessionGuard) Identify(ctx context.Context, token string) (domain.User, bool) {
	if strings.TrimSpace(token) == "" || token == LoggedOutToken {
		return domain.User{}, false
	}
	user, err := g.authenticate(ctx, token)
	if err != nil {
		if _, operational := apperr.As(err); !operational {
			g.logger.Warn("identify session failed", zap.Error(err))
		}
		return domain.User{}, false
	}
	return user, true
}

// LoggedOutToken es el valor que deja el logout en la cookie.
const LoggedOutToken = "loggedout"

// Authorize verifica que el rol del usuario este en allowed.
func Authorize(user domain.User, allowed domain.RoleSet) error {
	if !allowed.Contains(user.Role) {
		return apperr.Forbidden(msgForbidden, ErrForbidden)
	}
	return nil
}
