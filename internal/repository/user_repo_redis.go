package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"natours/internal/domain"
)

// userDocument es la forma persistida en Redis; domain.User oculta sus secretos en JSON.
type userDocument struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Photo                string     `json:"photo"`
	Role                 string     `json:"role"`
	PasswordHash         string     `json:"password_hash"`
	PasswordChangedAt    *time.Time `json:"password_changed_at,omitempty"`
	PasswordResetToken   string     `json:"password_reset_token,omitempty"`
	PasswordResetExpires *time.Time `json:"password_reset_expires,omitempty"`
	Active               bool       `json:"active"`
	CreatedAt            time.Time  `json:"created_at"`
}

func toDocument(u domain.User) userDocument {
	return userDocument{
		ID:                   u.ID,
		Name:                 u.Name,
		Email:                u.Email,
		Photo:                u.Photo,
		Role:                 string(u.Role),
		PasswordHash:         u.PasswordHash,
		PasswordChangedAt:    u.PasswordChangedAt,
		PasswordResetToken:   u.PasswordResetToken,
		PasswordResetExpires: u.PasswordResetExpires,
		Active:               u.Active,
		CreatedAt:            u.CreatedAt,
	}
}

func (d userDocument) toUser(withPassword bool) domain.User {
	u := domain.User{
		ID:                   d.ID,
		Name:                 d.Name,
		Email:                d.Email,
		Photo:                d.Photo,
		Role:                 domain.Role(d.Role),
		PasswordChangedAt:    d.PasswordChangedAt,
		PasswordResetToken:   d.PasswordResetToken,
		PasswordResetExpires: d.PasswordResetExpires,
		Active:               d.Active,
		CreatedAt:            d.CreatedAt,
	}
	if withPassword {
		u.PasswordHash = d.PasswordHash
	}
	return u
}

// RedisUserRepository guarda usuarios como documentos JSON con indices secundarios.
type RedisUserRepository struct {
	client redis.Cmdable
	prefix string
}

func NewRedisUserRepository(client redis.Cmdable) *RedisUserRepository {
	return &RedisUserRepository{
		client: client,
		prefix: "natours:user:",
	}
}

func (r *RedisUserRepository) docKey(id string) string { return r.prefix + id }
func (r *RedisUserRepository) emailKey(email string) string { return r.prefix + "email:" + email }
func (r *RedisUserRepository) resetKey(hash string) string { return r.prefix + "reset:" + hash }
func (r *RedisUserRepository) indexKey() string { return r.prefix + "ids" }

func (r *RedisUserRepository) Create(ctx context.Context, user domain.User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("%w: please provide a password", ErrValidation)
	}
	ok, err := r.client.SetNX(ctx, r.emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("reserve email: %w", err)
	}
	if !ok {
		return ErrDuplicateEmail
	}
	payload, err := json.Marshal(toDocument(user))
	if err != nil {
		return r.releaseEmail(ctx, user.Email, fmt.Errorf("encode user: %w", err))
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.docKey(user.ID), payload, 0)
		p.SAdd(ctx, r.indexKey(), user.ID)
		return nil
	})
	if err != nil {
		return r.releaseEmail(ctx, user.Email, fmt.Errorf("create user: %w", err), r.docKey(user.ID))
	}
	return nil
}

// releaseEmail libera una reserva de email tras una escritura fallida.
func (r *RedisUserRepository) releaseEmail(ctx context.Context, email string, cause error, extra ...string) error {
	keys := append([]string{r.emailKey(email)}, extra...)
	if err := r.client.Del(context.WithoutCancel(ctx), keys...).Err(); err != nil {
		return fmt.Errorf("%w (release email: %v)", cause, err)
	}
	return cause
}

func (r *RedisUserRepository) load(ctx context.Context, id string) (userDocument, error) {
	raw, err := r.client.Get(ctx, r.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return userDocument{}, ErrNotFound
	}
	if err != nil {
		return userDocument{}, fmt.Errorf("get user %s: %w", id, err)
	}
	var doc userDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return userDocument{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	return doc, nil
}

func (r *RedisUserRepository) lookup(ctx context.Context, key string) (string, error) {
	id, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", key, err)
	}
	return id, nil
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id string, opts ...FindOption) (domain.User, error) {
	doc, err := r.load(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if !doc.Active {
		return domain.User{}, ErrNotFound
	}
	return doc.toUser(applyFindOptions(opts).withPassword), nil
}

func (r *RedisUserRepository) GetByEmail(ctx context.Context, email string, opts ...FindOption) (domain.User, error) {
	id, err := r.lookup(ctx, r.emailKey(email))
	if err != nil {
		return domain.User{}, err
	}
	return r.GetByID(ctx, id, opts...)
}

// GetByResetTokenHash resuelve el indice de reseteo. El indice expira junto
// con el token, pero se revalida contra el documento por si quedo obsoleto.
func (r *RedisUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (domain.User, error) {
	id, err := r.lookup(ctx, r.resetKey(hash))
	if err != nil {
		return domain.User{}, err
	}
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if user.PasswordResetToken != hash {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

func (r *RedisUserRepository) Save(ctx context.Context, user domain.User, opts SaveOptions) error {
	if opts.Validate {
		if err := validateUser(user); err != nil {
			return err
		}
	}
	prev, err := r.load(ctx, user.ID)
	if err != nil {
		return err
	}
	if user.Email != prev.Email {
		ok, err := r.client.SetNX(ctx, r.emailKey(user.Email), user.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("reserve email: %w", err)
		}
		if !ok {
			return ErrDuplicateEmail
		}
	}

	doc := toDocument(user)
	if doc.PasswordHash == "" {
		doc.PasswordHash = prev.PasswordHash
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		err = fmt.Errorf("encode user: %w", err)
		if user.Email != prev.Email {
			return r.releaseEmail(ctx, user.Email, err)
		}
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.docKey(user.ID), payload, 0)
		if user.Email != prev.Email {
			p.Del(ctx, r.emailKey(prev.Email))
		}
		if prev.PasswordResetToken != "" && prev.PasswordResetToken != doc.PasswordResetToken {
			p.Del(ctx, r.resetKey(prev.PasswordResetToken))
		}
		if doc.PasswordResetToken != "" && doc.PasswordResetExpires != nil {
			p.Set(ctx, r.resetKey(doc.PasswordResetToken), user.ID, 0)
			p.ExpireAt(ctx, r.resetKey(doc.PasswordResetToken), *doc.PasswordResetExpires)
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("save user %s: %w", user.ID, err)
		if user.Email != prev.Email {
			return r.releaseEmail(ctx, user.Email, err)
		}
		return err
	}
	return nil
}

func (r *RedisUserRepository) List(ctx context.Context) ([]domain.User, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		doc, err := r.load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if doc.Active {
			users = append(users, doc.toUser(false))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *RedisUserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	user.Role = role
	return r.Save(ctx, user, SaveOptions{Validate: true})
}
