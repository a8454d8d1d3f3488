package devauth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	_ UserRepository  = (*MemoryUserRepository)(nil)
	_ TokenRepository = (*MemoryTokenRepository)(nil)
)

// MemoryUserRepository keeps users in process memory. Lookups by username
// and email are case-insensitive.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[uuid.UUID]User)}
}

func (r *MemoryUserRepository) Save(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) FindByIdentifier(_ context.Context, identifier string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, identifier) {
			return &u, nil
		}
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, identifier) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

type MemoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]RefreshToken
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: make(map[string]RefreshToken)}
}

func (r *MemoryTokenRepository) Save(_ context.Context, token *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.TokenHash] = *token
	return nil
}

func (r *MemoryTokenRepository) Revoke(_ context.Context, tokenHash string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	delete(r.tokens, tokenHash)
	return &t, nil
}

func (r *MemoryTokenRepository) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, hash)
		}
	}
	return nil
}
