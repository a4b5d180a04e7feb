package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"natours/internal/validation"
)

// Role es el rol de un usuario dentro de Natours.
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var allRoles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

// ParseRole valida un rol contra el conjunto cerrado de roles.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// RoleSet es la lista de roles permitidos para una operacion protegida.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

const DefaultPhoto = "default.jpg"

var (
	ErrNameRequired  = errors.New("please tell us your name")
	ErrEmailRequired = errors.New("please provide your email")
	ErrEmailInvalid  = errors.New("please provide a valid email")

	errRoleNotAllowed = errors.New("role not allowed")
)

// UserMessages traduce los tags de User a mensajes de esquema.
var UserMessages = validation.Messages{
	"Name.required":  ErrNameRequired,
	"Email.required": ErrEmailRequired,
	"Email.email":    ErrEmailInvalid,
	"Role.required":  errRoleNotAllowed,
	"Role.oneof":     errRoleNotAllowed,
}

type User struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name" validate:"required"`
	Email                string     `json:"email" validate:"required,email"`
	Photo                string     `json:"photo,omitempty"`
	Role                 Role       `json:"role" validate:"required,oneof=user guide lead-guide admin"`
	PasswordHash         string     `json:"-"`
	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   string     `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
}

// ChangedPasswordAfter reporta si la contraseña cambio despues de emitido el token.
// iat tiene resolucion de segundos: un cambio en el mismo segundo no invalida.
func (u User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// HasPendingReset reporta si hay un token de reseteo todavia vigente.
func (u User) HasPendingReset(now time.Time) bool {
	return u.PasswordResetToken != "" && u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
}

func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

// Validate aplica las reglas de esquema del usuario.
func (u User) Validate() error {
	err := validation.Struct(u, UserMessages)
	if errors.Is(err, errRoleNotAllowed) {
		return fmt.Errorf("role %q is not allowed", u.Role)
	}
	return err
}

// NormalizeEmail deja el email en minusculas y sin espacios.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
