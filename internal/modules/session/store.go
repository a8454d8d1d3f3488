package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Persister stores the session blob under a key. Load returns ErrNotFound
// when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

// Store holds the current session. Reads are lock-free snapshots; writers
// are serialized and every mutation is persisted before it returns.
type Store struct {
	key       string
	persister Persister
	logger    *slog.Logger
	observers []func(State)

	mu    sync.Mutex
	state atomic.Pointer[State]
}

type StoreOption func(*Store)

// WithKey overrides the storage key
func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers fn to be called with the new state after every
// mutation. Observers run on the writer's goroutine and must not call
// back into the store's mutating methods.
func WithObserver(fn func(State)) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// NewStore returns an empty, logged-out store. Call Load to restore a
// persisted session.
func NewStore(p Persister, opts ...StoreOption) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	s := &Store{
		key:       DefaultStorageKey,
		persister: p,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(&State{})
	return s
}

// Load restores the persisted session. A missing or unreadable blob leaves
// the store logged out.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.persister.Load(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		s.state.Store(&State{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	var st State
	if err := json.Unmarshal(blob, &st); err != nil {
		s.logger.Warn("discarding unreadable session", slog.String("key", s.key), slog.String("error", err.Error()))
		s.state.Store(&State{})
		return nil
	}
	st = st.normalize()
	s.state.Store(&st)
	return nil
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() State {
	return s.state.Load().clone()
}

// Credentials returns the current token pair, empty when logged out
func (s *Store) Credentials() Credentials {
	return s.state.Load().Credentials()
}

func (s *Store) IsAuthenticated() bool {
	return s.state.Load().IsAuth
}

// Profile returns the stored profile, or nil
func (s *Store) Profile() *Profile {
	return s.Snapshot().User
}

// Login replaces the session with a fresh authenticated one
func (s *Store) Login(ctx context.Context, creds Credentials, profile *Profile) error {
	if !creds.Complete() {
		return ErrEmptyCredentials
	}
	return s.mutate(ctx, func(State) State {
		next := State{AccessToken: creds.AccessToken, RefreshToken: creds.RefreshToken, IsAuth: true}
		if profile != nil {
			p := *profile
			next.User = &p
		}
		return next
	})
}

// SetTokens stores a refreshed pair and keeps the profile
func (s *Store) SetTokens(ctx context.Context, creds Credentials) error {
	if !creds.Complete() {
		return ErrEmptyCredentials
	}
	return s.mutate(ctx, func(cur State) State {
		cur.AccessToken = creds.AccessToken
		cur.RefreshToken = creds.RefreshToken
		cur.IsAuth = true
		return cur
	})
}

// SetProfile stores the user profile of the current session
func (s *Store) SetProfile(ctx context.Context, profile Profile) error {
	return s.mutate(ctx, func(cur State) State {
		cur.User = &profile
		return cur
	})
}

// Logout clears the session. The in-memory state is cleared even when
// persisting fails; the persistence error is still returned.
func (s *Store) Logout(ctx context.Context) error {
	return s.mutate(ctx, func(State) State { return State{} })
}

func (s *Store) mutate(ctx context.Context, fn func(State) State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.state.Load().clone())
	s.state.Store(&next)

	blob, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.persister.Save(ctx, s.key, blob); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	for _, observe := range s.observers {
		observe(next.clone())
	}
	return nil
}
