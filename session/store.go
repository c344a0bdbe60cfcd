// Package session persists the signed-in identity (user id + access token)
// of one browser in a durable key-value store.
//
// Callers depend on Store only; the storage medium is chosen at wiring time
// (memory, sqlite/postgres through gorm, redis).
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Storage keys of the two session entries.
const (
	KeyToken  = "token"
	KeyUserID = "_id"
)

var (
	// ErrStorage wraps every failure of the storage medium.
	ErrStorage = errors.New("session storage")
	// ErrIncomplete is returned by Save when the user id or token is empty.
	ErrIncomplete = errors.New("session requires both user id and token")
)

// Storage is a string key-value medium.
type Storage interface {
	// Get returns the value of key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// BatchStorage writes or removes several keys in one atomic step.
type BatchStorage interface {
	Storage
	SetMany(ctx context.Context, entries map[string]string) error
	DeleteMany(ctx context.Context, keys ...string) error
}

// Session is the persisted identity.
type Session struct {
	UserID string
	Token  string
}

// Valid reports whether both fields are set. A half-set session is treated
// as signed out.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.UserID) != "" && strings.TrimSpace(s.Token) != ""
}

// Store is the only way the application reads or writes the session.
type Store struct {
	kv Storage
	mu sync.Mutex
}

// NewStore returns a store over kv.
func NewStore(kv Storage) *Store {
	return &Store{kv: kv}
}

// Save writes both entries together. With a BatchStorage the write is atomic;
// otherwise a failed second write removes the first so that no partial
// session is left behind.
func (s *Store) Save(ctx context.Context, userID, token string) error {
	if !(Session{UserID: userID, Token: token}).Valid() {
		return ErrIncomplete
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.kv.(BatchStorage); ok {
		if err := b.SetMany(ctx, map[string]string{KeyUserID: userID, KeyToken: token}); err != nil {
			return fmt.Errorf("%w: save: %w", ErrStorage, err)
		}
		return nil
	}
	if err := s.kv.Set(ctx, KeyUserID, userID); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrStorage, KeyUserID, err)
	}
	if err := s.kv.Set(ctx, KeyToken, token); err != nil {
		if rbErr := s.kv.Delete(ctx, KeyUserID); rbErr != nil {
			return fmt.Errorf("%w: save %s: %w (rollback: %v)", ErrStorage, KeyToken, err, rbErr)
		}
		return fmt.Errorf("%w: save %s: %w", ErrStorage, KeyToken, err)
	}
	return nil
}

// Clear removes both entries. Clearing an empty session is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.kv.(BatchStorage); ok {
		if err := b.DeleteMany(ctx, KeyUserID, KeyToken); err != nil {
			return fmt.Errorf("%w: clear: %w", ErrStorage, err)
		}
		return nil
	}
	var errs []error
	for _, k := range []string{KeyToken, KeyUserID} {
		if err := s.kv.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: clear: %w", ErrStorage, errors.Join(errs...))
	}
	return nil
}

// Snapshot reads both entries. Absent entries are empty strings.
func (s *Store) Snapshot(ctx context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, _, err := s.kv.Get(ctx, KeyUserID)
	if err != nil {
		return Session{}, fmt.Errorf("%w: read %s: %w", ErrStorage, KeyUserID, err)
	}
	tok, _, err := s.kv.Get(ctx, KeyToken)
	if err != nil {
		return Session{}, fmt.Errorf("%w: read %s: %w", ErrStorage, KeyToken, err)
	}
	return Session{UserID: uid, Token: tok}, nil
}

// IsAuthenticated is true iff both entries are present and non-empty.
// A storage failure reads as signed out.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	sess, err := s.Snapshot(ctx)
	return err == nil && sess.Valid()
}

// UserID returns the stored user id, or "" when absent or unreadable.
func (s *Store) UserID(ctx context.Context) string {
	sess, _ := s.Snapshot(ctx)
	return sess.UserID
}

// Token returns the stored access token, or "" when absent or unreadable.
func (s *Store) Token(ctx context.Context) string {
	sess, _ := s.Snapshot(ctx)
	return sess.Token
}
