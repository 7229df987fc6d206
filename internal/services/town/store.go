// Package town persists each player's binary town save on disk.
package town

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcoot/townserver/internal/dependencies/random"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/protocol/landpb"
	"github.com/mcoot/townserver/internal/storage"
)

// LegacyOwnerKey is shared by every anonymous player in legacy mode
const LegacyOwnerKey = "mytown"

// Config holds town storage settings
type Config struct {
	Dir                        string
	LegacyMode                 bool
	LegacyPath                 string
	DeleteExistingUserOnImport bool
}

// CurrencyInitializer creates a player's balance file on import
type CurrencyInitializer interface {
	CreateDefault(ownerKey string) error
}

// decodeAttempt is one way of reading a stored save
type decodeAttempt struct {
	name string
	skip int
}

// Tried in order; the first that yields a non-empty message wins
var decodeAttempts = []decodeAttempt{
	{name: "direct", skip: 0},
	{name: "legacy-header", skip: 12},
}

// Store reads and writes town files
type Store struct {
	cfg        Config
	identities storage.IdentityStore
	currency   CurrencyInitializer
	random     random.Random
	logger     *slog.Logger

	mu *sync.Mutex
}

func NewStore(cfg Config, identities storage.IdentityStore, currency CurrencyInitializer, rnd random.Random, logger *slog.Logger) *Store {
	return &Store{
		cfg:        cfg,
		identities: identities,
		currency:   currency,
		random:     rnd,
		logger:     logger,
		mu:         &sync.Mutex{},
	}
}

// With returns a store that records path updates through the given
// identity store. File access stays serialised with the parent.
func (s *Store) With(identities storage.IdentityStore) *Store {
	c := *s
	c.identities = identities
	return &c
}

// OwnerKey names the files belonging to an identity
func (s *Store) OwnerKey(id *model.Identity) string {
	if !id.Anonymous {
		return id.Email
	}
	if s.cfg.LegacyMode {
		return LegacyOwnerKey
	}
	return "anon_" + id.UserID
}

// PathForKey returns the town file for an owner key
func (s *Store) PathForKey(ownerKey string) string {
	if s.cfg.LegacyMode && ownerKey == LegacyOwnerKey && s.cfg.LegacyPath != "" {
		return s.cfg.LegacyPath
	}
	return filepath.Join(s.cfg.Dir, ownerKey+".pb")
}

// PathFor returns the town file for id and remembers it in the identity store
func (s *Store) PathFor(ctx context.Context, id *model.Identity) (string, error) {
	key := s.OwnerKey(id)
	if err := model.CheckOwnerKey(key); err != nil {
		return "", err
	}
	path := s.PathForKey(key)

	if id.TownPath != path {
		if err := s.identities.SetTownPath(ctx, id.Email, path); err != nil {
			s.logger.Error("failed to cache town path", "email", id.Email, "path", path, "error", err)
			return "", err
		}
		id.TownPath = path
	}
	return path, nil
}

// Load reads the town for id. Missing or undecodable files return
// model.ErrTownNotFound. A stored id that differs from the player's mayhem
// id is corrected and saved before returning.
func (s *Store) Load(ctx context.Context, id *model.Identity) (*landpb.LandMessage, error) {
	path, err := s.PathFor(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrTownNotFound
	}
	if err != nil {
		s.logger.Error("failed to read town", "path", path, "error", err)
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrStorage, path, err)
	}

	msg, via := decode(data)
	if msg == nil {
		s.logger.Warn("town file could not be decoded", "path", path, "size", len(data))
		return nil, model.ErrTownNotFound
	}
	if via != decodeAttempts[0].name {
		s.logger.Info("town decoded with fallback", "path", path, "attempt", via)
	}

	if id.MayhemID != "" && msg.ID != id.MayhemID {
		s.logger.Info("correcting stored town id", "path", path, "stored", msg.ID, "mayhem_id", id.MayhemID)
		msg.ID = id.MayhemID
		if err := s.write(path, msg.Marshal()); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

func decode(data []byte) (*landpb.LandMessage, string) {
	for _, a := range decodeAttempts {
		if len(data) <= a.skip {
			continue
		}
		msg, err := landpb.UnmarshalLand(data[a.skip:])
		if err == nil && !msg.IsEmpty() {
			return msg, a.name
		}
	}
	return nil, ""
}

// Save writes msg as the town for id
func (s *Store) Save(ctx context.Context, id *model.Identity, msg *landpb.LandMessage) error {
	path, err := s.PathFor(ctx, id)
	if err != nil {
		return err
	}
	return s.write(path, msg.Marshal())
}

// CreateBlank returns a new town for id with default friend data
func (s *Store) CreateBlank(id *model.Identity) *landpb.LandMessage {
	landID := id.MayhemID
	if landID == "" {
		landID = "placeholder_" + s.random.Hex(8)
	}
	return &landpb.LandMessage{
		ID:         landID,
		FriendData: landpb.NewFriendData(),
	}
}

// LoadOrCreate loads the town for id, creating and saving a blank one when
// none exists. created reports whether a blank town was made.
func (s *Store) LoadOrCreate(ctx context.Context, id *model.Identity) (msg *landpb.LandMessage, created bool, err error) {
	msg, err = s.Load(ctx, id)
	if err == nil {
		return msg, false, nil
	}
	if !errors.Is(err, model.ErrTownNotFound) {
		return nil, false, err
	}

	msg = s.CreateBlank(id)
	if err := s.Save(ctx, id, msg); err != nil {
		return nil, false, err
	}
	s.logger.Info("created blank town", "email", id.Email, "land_id", msg.ID)
	return msg, true, nil
}

// Import copies the raw file at srcPath into the town of ownerKey
func (s *Store) Import(ctx context.Context, srcPath, ownerKey string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		s.logger.Error("failed to read import source", "path", srcPath, "error", err)
		return fmt.Errorf("%w: read %s: %v", model.ErrStorage, srcPath, err)
	}
	return s.ImportBytes(ctx, data, ownerKey)
}

// ImportBytes writes data unmodified as the town of ownerKey and makes sure
// the owner has a currency balance
func (s *Store) ImportBytes(ctx context.Context, data []byte, ownerKey string) error {
	if err := model.CheckOwnerKey(ownerKey); err != nil {
		return err
	}

	if s.cfg.DeleteExistingUserOnImport {
		if err := s.identities.DeleteUser(ctx, ownerKey); err != nil && !errors.Is(err, model.ErrUserNotFound) {
			s.logger.Error("failed to delete user before import", "owner", ownerKey, "error", err)
			return err
		}
	}

	dest := s.PathForKey(ownerKey)
	if err := s.write(dest, data); err != nil {
		return err
	}
	if err := s.currency.CreateDefault(ownerKey); err != nil {
		s.logger.Error("failed to create currency for imported town", "owner", ownerKey, "error", err)
		return err
	}

	s.logger.Info("town imported", "owner", ownerKey, "path", dest, "size", len(data))
	return nil
}

// Validate rejects towns without an id or friend data
func (s *Store) Validate(msg *landpb.LandMessage) error {
	if msg.ID == "" {
		return fmt.Errorf("%w: missing id", model.ErrInvalidTown)
	}
	if msg.FriendData == nil {
		return fmt.Errorf("%w: missing friend data", model.ErrInvalidTown)
	}
	return nil
}

func (s *Store) write(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.logger.Error("failed to create town dir", "path", path, "error", err)
		return fmt.Errorf("%w: mkdir %s: %v", model.ErrStorage, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("failed to write town", "path", path, "error", err)
		return fmt.Errorf("%w: write %s: %v", model.ErrStorage, path, err)
	}
	return nil
}
