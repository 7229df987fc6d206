package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/storage"
)

// Storage is a Redis-backed identity store
type Storage struct {
	client *redis.Client
	keys   keys
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		keys:   keys{prefix: cfg.KeyPrefix},
	}
}

// Client exposes the underlying client for components sharing the connection
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.TxIdentityStore = (*Storage)(nil)

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	data, err := s.client.Get(ctx, s.keys.user(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) GetUserByMayhemID(ctx context.Context, mayhemID string) (*model.User, error) {
	return s.getByIndex(ctx, s.keys.mayhemIndex(mayhemID))
}

func (s *Storage) GetUserByToken(ctx context.Context, token string) (*model.User, error) {
	return s.getByIndex(ctx, s.keys.tokenIndex(token))
}

func (s *Storage) getByIndex(ctx context.Context, indexKey string) (*model.User, error) {
	email, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserByEmail(ctx, email)
}

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	if err := s.checkMayhemID(ctx, user, nil); err != nil {
		return err
	}
	prev, err := s.existing(ctx, user.Email)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	if err := s.queueSave(ctx, pipe, prev, user); err != nil {
		return err
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) DeleteUser(ctx context.Context, email string) error {
	prev, err := s.existing(ctx, email)
	if err != nil || prev == nil {
		return err
	}
	pipe := s.client.TxPipeline()
	s.queueDelete(ctx, pipe, prev)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) SetAccessToken(ctx context.Context, email, token string) error {
	return s.update(ctx, email, func(u *model.User) { u.AccessToken = token })
}

func (s *Storage) SetSessionKey(ctx context.Context, email, key string) error {
	return s.update(ctx, email, func(u *model.User) { u.SessionKey = key })
}

func (s *Storage) SetTownPath(ctx context.Context, email, path string) error {
	return s.update(ctx, email, func(u *model.User) { u.TownPath = path })
}

// Begin starts a MULTI/EXEC transaction. Writes are queued and only sent on Commit.
func (s *Storage) Begin(ctx context.Context) (storage.IdentityTx, error) {
	return &tx{
		s:       s,
		pipe:    s.client.TxPipeline(),
		overlay: make(map[string]*model.User),
	}, nil
}

func (s *Storage) update(ctx context.Context, email string, mutate func(u *model.User)) error {
	prev, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	next := *prev
	mutate(&next)

	pipe := s.client.TxPipeline()
	if err := s.queueSave(ctx, pipe, prev, &next); err != nil {
		return err
	}
	_, err = pipe.Exec(ctx)
	return err
}

// existing returns the stored user or nil when there is none
func (s *Storage) existing(ctx context.Context, email string) (*model.User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

// checkMayhemID refuses a mayhem id indexed to another email. released
// reports owners a transaction has already moved off the id.
func (s *Storage) checkMayhemID(ctx context.Context, user *model.User, released func(email string) bool) error {
	if user.MayhemID == "" {
		return nil
	}
	owner, err := s.client.Get(ctx, s.keys.mayhemIndex(user.MayhemID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner == user.Email || (released != nil && released(owner)) {
		return nil
	}
	return fmt.Errorf("%w: mayhem id %s belongs to %s", model.ErrUserExists, user.MayhemID, owner)
}

// queueSave writes next and moves its index entries away from prev
func (s *Storage) queueSave(ctx context.Context, pipe redis.Pipeliner, prev, next *model.User) error {
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if prev != nil {
		if prev.MayhemID != "" && prev.MayhemID != next.MayhemID {
			pipe.Del(ctx, s.keys.mayhemIndex(prev.MayhemID))
		}
		if prev.AccessToken != "" && prev.AccessToken != next.AccessToken {
			pipe.Del(ctx, s.keys.tokenIndex(prev.AccessToken))
		}
	}
	pipe.Set(ctx, s.keys.user(next.Email), data, 0)
	if next.MayhemID != "" {
		pipe.Set(ctx, s.keys.mayhemIndex(next.MayhemID), next.Email, 0)
	}
	if next.AccessToken != "" {
		pipe.Set(ctx, s.keys.tokenIndex(next.AccessToken), next.Email, 0)
	}
	return nil
}

func (s *Storage) queueDelete(ctx context.Context, pipe redis.Pipeliner, prev *model.User) {
	if prev.MayhemID != "" {
		pipe.Del(ctx, s.keys.mayhemIndex(prev.MayhemID))
	}
	if prev.AccessToken != "" {
		pipe.Del(ctx, s.keys.tokenIndex(prev.AccessToken))
	}
	pipe.Del(ctx, s.keys.user(prev.Email))
}

// tx queues writes on a TxPipeline. overlay tracks the state each queued
// write produced so several writes to one user compose.
type tx struct {
	s       *Storage
	pipe    redis.Pipeliner
	overlay map[string]*model.User // nil value: deleted in this tx
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

func (t *tx) current(ctx context.Context, email string) (*model.User, error) {
	if u, ok := t.overlay[email]; ok {
		return u, nil
	}
	return t.s.existing(ctx, email)
}

func (t *tx) SaveUser(ctx context.Context, user *model.User) error {
	for email, u := range t.overlay {
		if u != nil && email != user.Email && user.MayhemID != "" && u.MayhemID == user.MayhemID {
			return fmt.Errorf("%w: mayhem id %s belongs to %s", model.ErrUserExists, user.MayhemID, email)
		}
	}
	released := func(email string) bool {
		u, ok := t.overlay[email]
		return ok && (u == nil || u.MayhemID != user.MayhemID)
	}
	if err := t.s.checkMayhemID(ctx, user, released); err != nil {
		return err
	}
	prev, err := t.current(ctx, user.Email)
	if err != nil {
		return err
	}
	next := *user
	if err := t.s.queueSave(ctx, t.pipe, prev, &next); err != nil {
		return err
	}
	t.overlay[user.Email] = &next
	return nil
}

func (t *tx) DeleteUser(ctx context.Context, email string) error {
	prev, err := t.current(ctx, email)
	if err != nil || prev == nil {
		return err
	}
	t.s.queueDelete(ctx, t.pipe, prev)
	t.overlay[email] = nil
	return nil
}

func (t *tx) update(ctx context.Context, email string, mutate func(u *model.User)) error {
	prev, err := t.current(ctx, email)
	if err != nil {
		return err
	}
	if prev == nil {
		return model.ErrUserNotFound
	}
	next := *prev
	mutate(&next)
	if err := t.s.queueSave(ctx, t.pipe, prev, &next); err != nil {
		return err
	}
	t.overlay[email] = &next
	return nil
}

func (t *tx) SetAccessToken(ctx context.Context, email, token string) error {
	return t.update(ctx, email, func(u *model.User) { u.AccessToken = token })
}

func (t *tx) SetSessionKey(ctx context.Context, email, key string) error {
	return t.update(ctx, email, func(u *model.User) { u.SessionKey = key })
}

func (t *tx) SetTownPath(ctx context.Context, email, path string) error {
	return t.update(ctx, email, func(u *model.User) { u.TownPath = path })
}

func (t *tx) Commit(ctx context.Context) error {
	_, err := t.pipe.Exec(ctx)
	return err
}

func (t *tx) Rollback(ctx context.Context) error {
	t.pipe.Discard()
	return nil
}
