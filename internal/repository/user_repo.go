package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"natours/internal/domain"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already in use")
	ErrValidation     = errors.New("user validation failed")
)

// FindOption ajusta la proyeccion de una consulta.
type FindOption func(*findOptions)

type findOptions struct {
	withPassword bool
}

// WithPassword incluye el hash de la contraseña, omitido por defecto.
func WithPassword() FindOption {
	return func(o *findOptions) {
		o.withPassword = true
	}
}

func applyFindOptions(opts []FindOption) findOptions {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SelectsPassword reporta si opts piden el hash; util para implementaciones en memoria.
func SelectsPassword(opts ...FindOption) bool {
	return applyFindOptions(opts).withPassword
}

// SaveOptions controla la validacion de esquema al persistir.
type SaveOptions struct {
	Validate bool
}

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string, opts ...FindOption) (domain.User, error)
	GetByEmail(ctx context.Context, email string, opts ...FindOption) (domain.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (domain.User, error)
	// Save persiste los campos mutables. Un PasswordHash vacio conserva el actual.
	Save(ctx context.Context, user domain.User, opts SaveOptions) error
	List(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) error
}

func validateUser(user domain.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// PgQuerier es el subconjunto de *pgxpool.Pool que usa el repositorio.
type PgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository sobre Postgres.
type PgUserRepository struct {
	pool PgQuerier
}

func NewPgUserRepository(pool PgQuerier) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, name, email, photo, role, password_changed_at, password_reset_token, password_reset_expires, active, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("%w: please provide a password", ErrValidation)
	}
	const query = `
		INSERT INTO users (id, name, email, photo, role, password_hash, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Photo,
		string(user.Role),
		user.PasswordHash,
		user.Active,
		user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string, opts ...FindOption) (domain.User, error) {
	return r.getOne(ctx, "id = $1 AND active", id, applyFindOptions(opts))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string, opts ...FindOption) (domain.User, error) {
	return r.getOne(ctx, "email = $1 AND active", email, applyFindOptions(opts))
}

// GetByResetTokenHash no filtra por expiracion: el llamador decide.
func (r *PgUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (domain.User, error) {
	return r.getOne(ctx, "password_reset_token = $1 AND active", hash, findOptions{})
}

func (r *PgUserRepository) getOne(ctx context.Context, where string, arg any, o findOptions) (domain.User, error) {
	passwordColumn := "''"
	if o.withPassword {
		passwordColumn = "password_hash"
	}
	query := `SELECT ` + userColumns + `, ` + passwordColumn + ` FROM users WHERE ` + where

	var (
		u          domain.User
		role       string
		resetToken *string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Photo,
		&role,
		&u.PasswordChangedAt,
		&resetToken,
		&u.PasswordResetExpires,
		&u.Active,
		&u.CreatedAt,
		&u.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = domain.Role(role)
	if resetToken != nil {
		u.PasswordResetToken = *resetToken
	}
	return u, nil
}

func (r *PgUserRepository) Save(ctx context.Context, user domain.User, opts SaveOptions) error {
	if opts.Validate {
		if err := validateUser(user); err != nil {
			return err
		}
	}
	const query = `
		UPDATE users SET
			name = $2,
			email = $3,
			photo = $4,
			role = $5,
			password_hash = COALESCE(NULLIF($6, ''), password_hash),
			password_changed_at = $7,
			password_reset_token = NULLIF($8, ''),
			password_reset_expires = $9,
			active = $10
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Photo,
		string(user.Role),
		user.PasswordHash,
		user.PasswordChangedAt,
		user.PasswordResetToken,
		user.PasswordResetExpires,
		user.Active,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, photo, role, created_at FROM users WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var (
			u    domain.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Photo, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = domain.Role(role)
		u.Active = true
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1 AND active`, id, string(role))
	if err != nil {
		return fmt.Errorf("update role for user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
