package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig se construye una vez en el arranque a partir de la configuracion.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// TokenIssuer emite y valida tokens de sesion JWT.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenClaims es lo que queda de un token verificado.
type TokenClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// ErrTokenInvalid cubre firma, formato, expiracion y emisor sin distinguirlos.
var ErrTokenInvalid = errors.New("jwt invalid")

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "natours"
	}
	return &TokenIssuer{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// WithClock reemplaza el reloj; pensado para tests de expiracion.
func (s *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	s.now = now
	return s
}

func (s *TokenIssuer) TTL() time.Duration {
	return s.ttl
}

func (s *TokenIssuer) Issue(userID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(userID) == "" {
		return "", ErrTokenInvalid
	}
	now := s.now().UTC()
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenIssuer) Verify(tokenString string) (TokenClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return TokenClaims{}, ErrTokenInvalid
	}
	var claims sessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return TokenClaims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.Subject != claims.UserID || claims.IssuedAt == nil {
		return TokenClaims{}, ErrTokenInvalid
	}
	return TokenClaims{
		UserID:    claims.UserID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
