package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/townserver/internal/dependencies/clock"
	"github.com/mcoot/townserver/internal/dependencies/random"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
)

// anonymousDomain marks synthetic emails given to anonymous players
const anonymousDomain = "anonymous.invalid"

const maxIDAttempts = 5

// Moderator is a dashboard account allowed to act on pending towns
type Moderator struct {
	Username     string
	PasswordHash string
}

// Service seeds identity records and checks moderator credentials
type Service struct {
	store      storage.IdentityStore
	clock      clock.Clock
	random     random.Random
	moderators map[string]string
	logger     *slog.Logger
}

// New creates a new auth service
func New(store storage.IdentityStore, clk clock.Clock, rnd random.Random, moderators []Moderator, logger *slog.Logger) *Service {
	byName := make(map[string]string, len(moderators))
	for _, m := range moderators {
		byName[m.Username] = m.PasswordHash
	}
	return &Service{
		store:      store,
		clock:      clk,
		random:     rnd,
		moderators: byName,
		logger:     logger,
	}
}

// CreateUserParams describes a registered player
type CreateUserParams struct {
	Email    string
	Password string
	// MayhemID is generated when empty
	MayhemID string
}

// CreateUser registers a player with a fresh access token
func (s *Service) CreateUser(ctx context.Context, p CreateUserParams) (*model.User, error) {
	email := strings.TrimSpace(strings.ToLower(p.Email))
	if email == "" || !strings.Contains(email, "@") || strings.ContainsAny(email, `/\`) {
		return nil, ErrInvalidEmail
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, model.ErrUserExists
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	user := &model.User{
		Email:     email,
		UserID:    s.numericID(),
		CreatedAt: s.clock.Now(),
	}
	if user.MayhemID, err = s.allocateMayhemID(ctx, p.MayhemID); err != nil {
		return nil, err
	}
	user.AccessToken = s.random.Hex(16)
	if p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", "email", email, "mayhem_id", user.MayhemID)
	return user, nil
}

// CreateAnonymous creates a player without an email; its town is keyed by user id
func (s *Service) CreateAnonymous(ctx context.Context) (*model.User, error) {
	mayhemID, err := s.allocateMayhemID(ctx, "")
	if err != nil {
		return nil, err
	}
	userID := uuid.NewString()
	user := &model.User{
		Email:       fmt.Sprintf("anon_%s@%s", userID, anonymousDomain),
		UserID:      userID,
		MayhemID:    mayhemID,
		AccessToken: s.random.Hex(16),
		Anonymous:   true,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("anonymous user created", "user_id", userID)
	return user, nil
}

// RotateToken issues a new access token, invalidating the previous one
func (s *Service) RotateToken(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token := s.random.Hex(16)
	if err := s.store.SetAccessToken(ctx, email, token); err != nil {
		return "", err
	}
	return token, nil
}

// VerifyModerator checks basic-auth credentials against the configured accounts
func (s *Service) VerifyModerator(username, password string) bool {
	hash, ok := s.moderators[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// allocateMayhemID returns requested when no player holds it yet, or a
// freshly generated free id when requested is empty
func (s *Service) allocateMayhemID(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		taken, err := s.mayhemIDTaken(ctx, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("%w: mayhem id %s", model.ErrUserExists, requested)
		}
		return requested, nil
	}
	for i := 0; i < maxIDAttempts; i++ {
		id := s.numericID()
		taken, err := s.mayhemIDTaken(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no free mayhem id after %d attempts", model.ErrUserExists, maxIDAttempts)
}

func (s *Service) mayhemIDTaken(ctx context.Context, id string) (bool, error) {
	_, err := s.store.GetUserByMayhemID(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, model.ErrUserNotFound) {
		return false, nil
	}
	return false, err
}

// numericID mimics the numeric ids the game client expects
func (s *Service) numericID() string {
	return fmt.Sprintf("%d", 1_000_000_000+s.random.Intn(900_000_000))
}
