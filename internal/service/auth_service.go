package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"natours/internal/apperr"
	"natours/internal/domain"
	"natours/internal/email"
	"natours/internal/metrics"
	"natours/internal/repository"
	"natours/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrWrongPassword      = errors.New("current password mismatch")
	ErrResetTokenInvalid  = errors.New("reset token invalid or expired")
	ErrEmailSendFailure   = errors.New("email send failed")
)

const (
	msgMissingCredentials = "Please provide email and password!"
	msgInvalidCredentials = "Incorrect email or password!"
	msgMissingEmail       = "Please provide your email address."
	msgNoUserWithEmail    = "There is no user with that email address."
	msgEmailSendFailure   = "There was an error sending the email. Try again later!"
	msgResetTokenInvalid  = "Token is invalid or has expired"
	msgWrongPassword      = "Your current password is wrong."
	msgEmailTaken         = "Email already in use"

	resetPath = "/api/v1/users/resetPassword/"
)

// AuthConfig agrupa los parametros del flujo de credenciales.
type AuthConfig struct {
	ResetTTL         time.Duration
	ResetURLBase     string
	AllowAdminSignup bool
}

// AuthService coordina alta, login y cambios de contraseña.
type AuthService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	hasher      PasswordHasher
	tokens      *TokenIssuer
	emailSender email.Sender
	metrics     *metrics.Metrics
	cfg         AuthConfig
	now         func() time.Time

	dummyMu   sync.Mutex
	dummyHash string
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens *TokenIssuer, emailSender email.Sender, m *metrics.Metrics, cfg AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 10 * time.Minute
	}
	return &AuthService{
		logger:      logger,
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		emailSender: emailSender,
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
	}
}

// WithClock reemplaza el reloj del servicio (expiracion de reseteos y sellos de cambio).
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Session es el resultado de cualquier operacion que inicia sesion.
type Session struct {
	User  domain.User
	Token string
}

type SignupInput struct {
	Name            string `validate:"required"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8,maxbytes=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
	Role            string
	Photo           string
}

var signupMessages = mergeMessages(domain.UserMessages, passwordMessages)

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (Session, error) {
	session, err := s.signup(ctx, input)
	s.metrics.RecordAuthEvent("signup", err)
	return session, err
}

func (s *AuthService) signup(ctx context.Context, input SignupInput) (Session, error) {
	role := domain.RoleUser
	if raw := strings.TrimSpace(input.Role); raw != "" {
		parsed, err := domain.ParseRole(raw)
		if err != nil {
			return Session{}, apperr.BadRequest(fmt.Sprintf("Invalid input data. Role %q is not allowed", raw), err)
		}
		role = parsed
	}
	if role == domain.RoleAdmin && !s.cfg.AllowAdminSignup {
		role = domain.RoleUser
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = domain.NormalizeEmail(input.Email)
	if err := validation.Struct(input, signupMessages); err != nil {
		return Session{}, invalidInput(err)
	}

	photo := strings.TrimSpace(input.Photo)
	if photo == "" {
		photo = domain.DefaultPhoto
	}
	user := domain.User{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Email:     input.Email,
		Photo:     photo,
		Role:      role,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		return Session{}, s.storeError("create user", err)
	}
	user.PasswordHash = ""

	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issueSession(user)
}

func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	session, err := s.login(ctx, emailAddr, password)
	s.metrics.RecordAuthEvent("login", err)
	return session, err
}

func (s *AuthService) login(ctx context.Context, emailAddr, password string) (Session, error) {
	emailAddr = domain.NormalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return Session{}, apperr.BadRequest(msgMissingCredentials, ErrMissingCredentials)
	}

	user, err := s.users.GetByEmail(ctx, emailAddr, repository.WithPassword())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Igualamos el costo con el de un usuario existente.
			s.hasher.Verify(password, s.timingHash())
			return Session{}, apperr.Unauthorized(msgInvalidCredentials, ErrInvalidCredentials)
		}
		return Session{}, s.storeError("load user by email", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return Session{}, apperr.Unauthorized(msgInvalidCredentials, ErrInvalidCredentials)
	}
	user.PasswordHash = ""
	return s.issueSession(user)
}

// ForgotPassword genera un token de reseteo de un solo uso y lo envia por email.
// Si el envio falla el token se descarta.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr string) error {
	err := s.forgotPassword(ctx, emailAddr)
	s.metrics.RecordAuthEvent("forgot_password", err)
	return err
}

func (s *AuthService) forgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = domain.NormalizeEmail(emailAddr)
	if emailAddr == "" {
		return apperr.BadRequest(msgMissingEmail, ErrMissingCredentials)
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(msgNoUserWithEmail, err)
		}
		return s.storeError("load user by email", err)
	}

	plain, hash, err := NewResetToken()
	if err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	expires := s.now().UTC().Add(s.cfg.ResetTTL)
	user.PasswordResetToken = hash
	user.PasswordResetExpires = &expires
	if err := s.users.Save(ctx, user, repository.SaveOptions{}); err != nil {
		return s.storeError("store reset token", err)
	}

	msg := resetMessage(user.Email, s.resetURL(plain), s.cfg.ResetTTL)
	if s.emailSender == nil {
		err = errors.New("email sender not configured")
	} else {
		err = s.emailSender.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Warn("send reset email failed", zap.String("user_id", user.ID), zap.Error(err))
		user.ClearPasswordReset()
		if rollbackErr := s.users.Save(ctx, user, repository.SaveOptions{}); rollbackErr != nil {
			s.logger.Error("discard reset token failed", zap.String("user_id", user.ID), zap.Error(rollbackErr))
		}
		return apperr.Internal(msgEmailSendFailure, fmt.Errorf("%w: %v", ErrEmailSendFailure, err))
	}

	s.logger.Info("password reset requested", zap.String("user_id", user.ID), zap.Time("expires_at", expires))
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (Session, error) {
	session, err := s.resetPassword(ctx, token, password, confirm)
	s.metrics.RecordAuthEvent("reset_password", err)
	return session, err
}

func (s *AuthService) resetPassword(ctx context.Context, token, password, confirm string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, apperr.BadRequest(msgResetTokenInvalid, ErrResetTokenInvalid)
	}
	user, err := s.users.GetByResetTokenHash(ctx, HashResetToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.BadRequest(msgResetTokenInvalid, ErrResetTokenInvalid)
		}
		return Session{}, s.storeError("load user by reset token", err)
	}
	now := s.now().UTC()
	if !user.HasPendingReset(now) {
		user.ClearPasswordReset()
		if err := s.users.Save(ctx, user, repository.SaveOptions{}); err != nil {
			s.logger.Warn("clear expired reset token failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		return Session{}, apperr.BadRequest(msgResetTokenInvalid, ErrResetTokenInvalid)
	}

	// La politica se valida antes de consumir el token para poder reintentar.
	if err := ValidateNewPassword(password, confirm); err != nil {
		return Session{}, invalidInput(err)
	}
	if err := s.setPassword(ctx, &user, password, now); err != nil {
		return Session{}, err
	}

	s.logger.Info("password reset completed", zap.String("user_id", user.ID))
	return s.issueSession(user)
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, password, confirm string) (Session, error) {
	session, err := s.updatePassword(ctx, userID, current, password, confirm)
	s.metrics.RecordAuthEvent("update_password", err)
	return session, err
}

func (s *AuthService) updatePassword(ctx context.Context, userID, current, password, confirm string) (Session, error) {
	user, err := s.users.GetByID(ctx, userID, repository.WithPassword())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.Unauthorized(msgUserGone, ErrUserGone)
		}
		return Session{}, s.storeError("load user", err)
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return Session{}, apperr.Unauthorized(msgWrongPassword, ErrWrongPassword)
	}
	if err := ValidateNewPassword(password, confirm); err != nil {
		return Session{}, invalidInput(err)
	}
	if err := s.setPassword(ctx, &user, password, s.now().UTC()); err != nil {
		return Session{}, err
	}

	s.logger.Info("password updated", zap.String("user_id", user.ID))
	return s.issueSession(user)
}

// setPassword sella el cambio en now; el token emitido a continuacion comparte
// el segundo del sello y sigue siendo valido.
func (s *AuthService) setPassword(ctx context.Context, user *domain.User, password string, now time.Time) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	changedAt := now
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.ClearPasswordReset()
	if err := s.users.Save(ctx, *user, repository.SaveOptions{Validate: true}); err != nil {
		return s.storeError("save password", err)
	}
	user.PasswordHash = ""
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, s.storeError("list users", err)
	}
	return users, nil
}

// AssignRole cambia el rol de otro usuario; reservado a administradores en el router.
func (s *AuthService) AssignRole(ctx context.Context, userID, rawRole string) (domain.User, error) {
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.User{}, apperr.BadRequest(fmt.Sprintf("Invalid input data. Role %q is not allowed", rawRole), err)
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, apperr.NotFound("No user found with that ID", err)
		}
		return domain.User{}, s.storeError("update role", err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, s.storeError("reload user", err)
	}
	s.logger.Info("role assigned", zap.String("user_id", userID), zap.String("role", string(role)))
	return user, nil
}

func (s *AuthService) issueSession(user domain.User) (Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}
	return Session{User: user, Token: token}, nil
}

func (s *AuthService) resetURL(plain string) string {
	return strings.TrimRight(s.cfg.ResetURLBase, "/") + resetPath + plain
}

// timingHash solo cachea un digest generado con exito; si falla usa uno fijo
// y reintenta en la proxima llamada.
func (s *AuthService) timingHash() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash != "" {
		return s.dummyHash
	}
	hash, err := s.hasher.Hash(uuid.NewString())
	if err != nil {
		s.logger.Warn("build timing hash failed", zap.Error(err))
		return fallbackTimingDigest(s.hasher)
	}
	s.dummyHash = hash
	return hash
}

func (s *AuthService) storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperr.Conflict(msgEmailTaken, err)
	case errors.Is(err, repository.ErrValidation):
		return invalidInput(err)
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
}

func mergeMessages(sets ...validation.Messages) validation.Messages {
	merged := validation.Messages{}
	for _, set := range sets {
		maps.Copy(merged, set)
	}
	return merged
}

func invalidInput(err error) error {
	msg := err.Error()
	if strings.HasPrefix(msg, repository.ErrValidation.Error()+": ") {
		msg = strings.TrimPrefix(msg, repository.ErrValidation.Error()+": ")
	}
	return apperr.BadRequest("Invalid input data. "+capitalize(msg), err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func resetMessage(to, url string, ttl time.Duration) email.Message {
	minutes := int(ttl.Minutes())
	text := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\nIf you didn't forget your password, please ignore this email!", url)
	html := fmt.Sprintf(`<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p><p><a href="%s">%s</a></p><p>If you didn't forget your password, please ignore this email!</p>`, url, url)
	return email.Message{
		To:      to,
		Subject: fmt.Sprintf("Your password reset token (valid for %d min)", minutes),
		Text:    text,
		HTML:    html,
	}
}
