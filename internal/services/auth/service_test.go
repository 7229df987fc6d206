package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/townserver/internal/dependencies/mocks"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/storage/memory"
	"github.com/mcoot/townserver/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()

	hash, err := bcrypt.GenerateFromPassword([]byte("donut"), bcrypt.MinCost)
	s.Require().NoError(err)
	mods := []Moderator{{Username: "skinner", PasswordHash: string(hash)}}

	s.service = New(s.storage, s.clock, s.random, mods, testutil.NopLogger())
	s.ctx = context.Background()
}

// CreateUser tests

func (s *ServiceSuite) TestCreateUserPersistsEveryLookupKey() {
	s.random.QueueIntn(42, 7)
	s.random.QueueHex("tok-1")

	user, err := s.service.CreateUser(s.ctx, CreateUserParams{Email: " Homer@Springfield.com ", Password: "mmm"})
	s.Require().NoError(err)

	s.Equal("homer@springfield.com", user.Email)
	s.Equal("1000000042", user.UserID)
	s.Equal("1000000007", user.MayhemID)
	s.Equal("tok-1", user.AccessToken)

	byToken, err := s.storage.GetUserByToken(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal("homer@springfield.com", byToken.Email)
	s.NotEqual("mmm", byToken.PasswordHash)
}

func (s *ServiceSuite) TestCreateUserKeepsGivenMayhemID() {
	user, err := s.service.CreateUser(s.ctx, CreateUserParams{Email: "lisa@springfield.com", MayhemID: "m-lisa"})
	s.Require().NoError(err)
	s.Equal("m-lisa", user.MayhemID)
	s.Empty(user.PasswordHash)
}

func (s *ServiceSuite) TestCreateUserFailsIfEmailExists() {
	_, _ = s.service.CreateUser(s.ctx, CreateUserParams{Email: "lisa@springfield.com"})

	_, err := s.service.CreateUser(s.ctx, CreateUserParams{Email: "lisa@springfield.com"})
	s.ErrorIs(err, model.ErrUserExists)
}

func (s *ServiceSuite) TestCreateUserFailsIfMayhemIDTaken() {
	_, err := s.service.CreateUser(s.ctx, CreateUserParams{Email: "lisa@springfield.com", MayhemID: "555"})
	s.Require().NoError(err)

	_, err = s.service.CreateUser(s.ctx, CreateUserParams{Email: "maggie@springfield.com", MayhemID: "555"})
	s.ErrorIs(err, model.ErrUserExists)

	owner, err := s.storage.GetUserByMayhemID(s.ctx, "555")
	s.Require().NoError(err)
	s.Equal("lisa@springfield.com", owner.Email)
	_, err = s.storage.GetUserByEmail(s.ctx, "maggie@springfield.com")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *ServiceSuite) TestCreateUserSkipsTakenGeneratedID() {
	s.random.QueueIntn(1, 7, 2, 7, 8)

	first, err := s.service.CreateUser(s.ctx, CreateUserParams{Email: "lisa@springfield.com"})
	s.Require().NoError(err)
	s.Equal("1000000007", first.MayhemID)

	second, err := s.service.CreateUser(s.ctx, CreateUserParams{Email: "maggie@springfield.com"})
	s.Require().NoError(err)
	s.Equal("1000000008", second.MayhemID)
}

func (s *ServiceSuite) TestCreateUserRejectsBadEmail() {
	for _, email := range []string{"", "nobody", "../x@y"} {
		_, err := s.service.CreateUser(s.ctx, CreateUserParams{Email: email})
		s.ErrorIs(err, ErrInvalidEmail, email)
	}
}

// CreateAnonymous tests

func (s *ServiceSuite) TestCreateAnonymous() {
	user, err := s.service.CreateAnonymous(s.ctx)
	s.Require().NoError(err)

	s.True(user.Anonymous)
	s.NotEmpty(user.UserID)
	s.True(strings.HasPrefix(user.Email, "anon_"+user.UserID))

	_, err = s.storage.GetUserByMayhemID(s.ctx, user.MayhemID)
	s.NoError(err)
}

// RotateToken tests

func (s *ServiceSuite) TestRotateTokenReplacesToken() {
	s.random.QueueHex("tok-old", "tok-new")
	_, _ = s.service.CreateUser(s.ctx, CreateUserParams{Email: "bart@springfield.com", Password: "eatmyshorts"})

	token, err := s.service.RotateToken(s.ctx, "bart@springfield.com", "eatmyshorts")
	s.Require().NoError(err)
	s.Equal("tok-new", token)

	_, err = s.storage.GetUserByToken(s.ctx, "tok-old")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *ServiceSuite) TestRotateTokenWrongPassword() {
	_, _ = s.service.CreateUser(s.ctx, CreateUserParams{Email: "bart@springfield.com", Password: "eatmyshorts"})

	_, err := s.service.RotateToken(s.ctx, "bart@springfield.com", "cowabunga")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestRotateTokenUnknownUser() {
	_, err := s.service.RotateToken(s.ctx, "nobody@springfield.com", "x")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// VerifyModerator tests

func (s *ServiceSuite) TestVerifyModerator() {
	s.True(s.service.VerifyModerator("skinner", "donut"))
	s.False(s.service.VerifyModerator("skinner", "wrong"))
	s.False(s.service.VerifyModerator("chalmers", "donut"))
}
