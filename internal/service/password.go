package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"

	"natours/internal/validation"
)

const resetTokenBytes = 32

var (
	ErrPasswordTooShort  = errors.New("password must have at least 8 characters")
	ErrPasswordTooLong   = errors.New("password must have at most 72 bytes")
	ErrPasswordsMismatch = errors.New("passwords are not the same")
)

// passwordInput lleva la politica de contraseñas; bcrypt ignora lo que pase de 72 bytes.
type passwordInput struct {
	Password        string `validate:"required,min=8,maxbytes=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

var passwordMessages = validation.Messages{
	"Password.required":        ErrPasswordTooShort,
	"Password.min":             ErrPasswordTooShort,
	"Password.maxbytes":        ErrPasswordTooLong,
	"PasswordConfirm.required": ErrPasswordsMismatch,
	"PasswordConfirm.eqfield":  ErrPasswordsMismatch,
}

// PasswordHasher hashea credenciales con un algoritmo lento y con sal.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// Verify delega en bcrypt, que compara en tiempo constante.
func (h BcryptHasher) Verify(plain, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

type Argon2idHasher struct {
	Params *argon2id.Params
}

func (h Argon2idHasher) Hash(plain string) (string, error) {
	params := h.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	return argon2id.CreateHash(plain, params)
}

func (h Argon2idHasher) Verify(plain, digest string) bool {
	if digest == "" {
		return false
	}
	ok, err := argon2id.ComparePasswordAndHash(plain, digest)
	return err == nil && ok
}

// Digests fijos con el costo por defecto de cada algoritmo. Sirven para igualar
// tiempos de login cuando no se pudo generar uno propio.
const (
	bcryptTimingDigest   = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
	argon2idTimingDigest = "$argon2id$v=19$m=65536,t=1,p=2$Foibq2wOt8vjgkEAmlEDGA$8aWNALGgHUfl24uLQUXfVkhlUuq+uWjEDIomIHc0u2Q"
)

func fallbackTimingDigest(h PasswordHasher) string {
	if _, ok := h.(Argon2idHasher); ok {
		return argon2idTimingDigest
	}
	return bcryptTimingDigest
}

// NewPasswordHasher elige el algoritmo configurado en PASSWORD_HASHER.
func NewPasswordHasher(kind string, bcryptCost int) (PasswordHasher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "bcrypt":
		return BcryptHasher{Cost: bcryptCost}, nil
	case "argon2id":
		return Argon2idHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", kind)
	}
}

// ValidateNewPassword aplica la politica de contraseñas del esquema de usuario.
func ValidateNewPassword(password, confirm string) error {
	return validation.Struct(passwordInput{Password: password, PasswordConfirm: confirm}, passwordMessages)
}

// HashResetToken usa sha256: el token ya es aleatorio de alta entropia,
// no hace falta un hash lento.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// NewResetToken devuelve el token en claro (solo para el email) y su hash.
func NewResetToken() (string, string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain := hex.EncodeToString(buf)
	return plain, HashResetToken(plain), nil
}
