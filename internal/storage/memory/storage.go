package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/storage"
)

// Storage is an in-memory identity store
type Storage struct {
	mu sync.RWMutex

	users    map[string]*model.User // by email
	byMayhem map[string]string      // mayhem id -> email
	byToken  map[string]string      // access token -> email
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:    make(map[string]*model.User),
		byMayhem: make(map[string]string),
		byToken:  make(map[string]string),
	}
}

// Ensure Storage implements the interface
var _ storage.TxIdentityStore = (*Storage)(nil)

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(email)
}

func (s *Storage) GetUserByMayhemID(ctx context.Context, mayhemID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.byMayhem[mayhemID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return s.lookup(email)
}

func (s *Storage) GetUserByToken(ctx context.Context, token string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.byToken[token]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return s.lookup(email)
}

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(user)
}

func (s *Storage) DeleteUser(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(email)
	return nil
}

func (s *Storage) SetAccessToken(ctx context.Context, email, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(email, func(u *model.User) { u.AccessToken = token })
}

func (s *Storage) SetSessionKey(ctx context.Context, email, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(email, func(u *model.User) { u.SessionKey = key })
}

func (s *Storage) SetTownPath(ctx context.Context, email, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(email, func(u *model.User) { u.TownPath = path })
}

// Begin starts a transaction whose writes are replayed under one lock on Commit.
// A failing write undoes the ones before it.
func (s *Storage) Begin(ctx context.Context) (storage.IdentityTx, error) {
	return &tx{s: s}, nil
}

// lookup returns a copy so callers never alias stored records
func (s *Storage) lookup(email string) (*model.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// saveLocked refuses a mayhem id indexed to another email
func (s *Storage) saveLocked(user *model.User) error {
	if owner, ok := s.byMayhem[user.MayhemID]; ok && user.MayhemID != "" && owner != user.Email {
		return fmt.Errorf("%w: mayhem id %s belongs to %s", model.ErrUserExists, user.MayhemID, owner)
	}
	s.deleteLocked(user.Email)
	cp := *user
	s.users[cp.Email] = &cp
	if cp.MayhemID != "" {
		s.byMayhem[cp.MayhemID] = cp.Email
	}
	if cp.AccessToken != "" {
		s.byToken[cp.AccessToken] = cp.Email
	}
	return nil
}

func (s *Storage) deleteLocked(email string) {
	old, ok := s.users[email]
	if !ok {
		return
	}
	if s.byMayhem[old.MayhemID] == email {
		delete(s.byMayhem, old.MayhemID)
	}
	if s.byToken[old.AccessToken] == email {
		delete(s.byToken, old.AccessToken)
	}
	delete(s.users, email)
}

func (s *Storage) updateLocked(email string, mutate func(u *model.User)) error {
	u, err := s.lookup(email)
	if err != nil {
		return err
	}
	mutate(u)
	return s.saveLocked(u)
}

// snapshotLocked captures the indexes; records are never mutated in place
// so shallow copies are enough to restore them.
func (s *Storage) snapshotLocked() func() {
	users, byMayhem, byToken := maps.Clone(s.users), maps.Clone(s.byMayhem), maps.Clone(s.byToken)
	return func() {
		s.users, s.byMayhem, s.byToken = users, byMayhem, byToken
	}
}

// tx queues writes and replays them under a single lock on Commit
type tx struct {
	s    *Storage
	ops  []func() error
	done bool
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return t.s.GetUserByEmail(ctx, email)
}

func (t *tx) GetUserByMayhemID(ctx context.Context, mayhemID string) (*model.User, error) {
	return t.s.GetUserByMayhemID(ctx, mayhemID)
}

func (t *tx) GetUserByToken(ctx context.Context, token string) (*model.User, error) {
	return t.s.GetUserByToken(ctx, token)
}

func (t *tx) SaveUser(ctx context.Context, user *model.User) error {
	cp := *user
	t.ops = append(t.ops, func() error { return t.s.saveLocked(&cp) })
	return nil
}

func (t *tx) DeleteUser(ctx context.Context, email string) error {
	t.ops = append(t.ops, func() error { t.s.deleteLocked(email); return nil })
	return nil
}

func (t *tx) SetAccessToken(ctx context.Context, email, token string) error {
	t.ops = append(t.ops, func() error {
		return t.s.updateLocked(email, func(u *model.User) { u.AccessToken = token })
	})
	return nil
}

func (t *tx) SetSessionKey(ctx context.Context, email, key string) error {
	t.ops = append(t.ops, func() error {
		return t.s.updateLocked(email, func(u *model.User) { u.SessionKey = key })
	})
	return nil
}

func (t *tx) SetTownPath(ctx context.Context, email, path string) error {
	t.ops = append(t.ops, func() error {
		return t.s.updateLocked(email, func(u *model.User) { u.TownPath = path })
	})
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	restore := t.s.snapshotLocked()
	for _, op := range t.ops {
		if err := op(); err != nil {
			restore()
			return err
		}
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.done = true
	t.ops = nil
	return nil
}
