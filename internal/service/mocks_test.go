package service

import (
	"context"
	"sort"
	"sync"

	"natours/internal/domain"
	"natours/internal/email"
	"natours/internal/repository"
)

type memoryUserRepo struct {
	mu       sync.Mutex
	users    map[string]domain.User
	byEmail  map[string]string
	saveErr  error
	saveCall int
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		users:   make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (m *memoryUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.users[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *memoryUserRepo) GetByID(_ context.Context, id string, opts ...repository.FindOption) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id, repository.SelectsPassword(opts...))
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, emailAddr string, opts ...repository.FindOption) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[emailAddr]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.get(id, repository.SelectsPassword(opts...))
}

func (m *memoryUserRepo) GetByResetTokenHash(_ context.Context, hash string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, user := range m.users {
		if hash != "" && user.PasswordResetToken == hash {
			return m.get(id, false)
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *memoryUserRepo) Save(_ context.Context, user domain.User, opts repository.SaveOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCall++
	if m.saveErr != nil {
		return m.saveErr
	}
	prev, ok := m.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if opts.Validate {
		if err := user.Validate(); err != nil {
			return repository.ErrValidation
		}
	}
	if user.PasswordHash == "" {
		user.PasswordHash = prev.PasswordHash
	}
	delete(m.byEmail, prev.Email)
	m.byEmail[user.Email] = user.ID
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserRepo) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for id := range m.users {
		user, _ := m.get(id, false)
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Role = role
	m.users[id] = user
	return nil
}

func (m *memoryUserRepo) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		delete(m.byEmail, user.Email)
		delete(m.users, id)
	}
}

// stored devuelve el registro crudo, hash incluido.
func (m *memoryUserRepo) stored(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memoryUserRepo) get(id string, withPassword bool) (domain.User, error) {
	user, ok := m.users[id]
	if !ok || !user.Active {
		return domain.User{}, repository.ErrNotFound
	}
	if !withPassword {
		user.PasswordHash = ""
	}
	return user, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) last() (email.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return email.Message{}, false
	}
	return s.sent[len(s.sent)-1], true
}

// flakyHasher falla al hashear mientras hashErr este puesto y registra los digests verificados.
type flakyHasher struct {
	inner    PasswordHasher
	hashErr  error
	verified []string
}

func (h *flakyHasher) Hash(plain string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return h.inner.Hash(plain)
}

func (h *flakyHasher) Verify(plain, digest string) bool {
	h.verified = append(h.verified, digest)
	return h.inner.Verify(plain, digest)
}
