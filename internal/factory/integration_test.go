package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/townserver/internal/config"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/protocol/landpb"
	"github.com/mcoot/townserver/internal/services/auth"
	"github.com/mcoot/townserver/internal/services/identity"
	"github.com/mcoot/townserver/internal/services/land"
	"github.com/mcoot/townserver/internal/services/pending"
)

type IntegrationSuite struct {
	suite.Suite
	dir string
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.dir = s.T().TempDir()
	app, err := NewTestApp(s.dir)
	s.Require().NoError(err)
	s.app = app
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *IntegrationSuite) createUser(email, mayhemID string) *model.User {
	user, err := s.app.AuthService.CreateUser(s.ctx, auth.CreateUserParams{Email: email, MayhemID: mayhemID})
	s.Require().NoError(err)
	return user
}

func (s *IntegrationSuite) landRequest(user *model.User, body []byte) *land.Request {
	return &land.Request{
		Signals:  identity.Signals{URLID: user.MayhemID, Tokens: []string{user.AccessToken}},
		RemoteIP: "10.0.0.7",
		Body:     body,
	}
}

func (s *IntegrationSuite) stage(id, name string) string {
	fd := landpb.NewFriendData()
	fd.Name = name
	msg := &landpb.LandMessage{ID: id, FriendData: fd}
	path, err := s.app.PendingRegistry.Stage(s.ctx, msg.Marshal())
	s.Require().NoError(err)
	return path
}

// Test: A new player visits, saves, and spends donuts
func (s *IntegrationSuite) TestPlayerSessionFlow() {
	homer := s.createUser("homer@springfield.com", "m-homer")

	// Step 1: First visit creates a blank town
	body, err := s.app.LandService.GetLand(s.ctx, s.landRequest(homer, nil))
	s.Require().NoError(err)
	msg, err := landpb.UnmarshalLand(body)
	s.Require().NoError(err)
	s.Equal("m-homer", msg.ID)
	s.Equal(1, s.app.Tracker.Active())

	// Step 2: Save a named town
	msg.FriendData.Name = "Evergreen Terrace"
	_, err = s.app.LandService.PutLand(s.ctx, s.landRequest(homer, msg.Marshal()))
	s.Require().NoError(err)

	// Step 3: Spend and earn donuts
	batch := landpb.ExtraLandMessage{CurrencyDeltas: []landpb.CurrencyDelta{
		{ID: "d1", Amount: 500},
		{ID: "d2", Amount: -200},
	}}
	_, err = s.app.LandService.ExtraLandUpdate(s.ctx, s.landRequest(homer, batch.Marshal()), "")
	s.Require().NoError(err)

	balance, err := s.app.Ledger.Balance("homer@springfield.com")
	s.Require().NoError(err)
	s.Equal(int64(1300), balance)

	// Step 4: Reload sees the saved town
	body, err = s.app.LandService.GetLand(s.ctx, s.landRequest(homer, nil))
	s.Require().NoError(err)
	msg, err = landpb.UnmarshalLand(body)
	s.Require().NoError(err)
	s.Equal("Evergreen Terrace", msg.FriendData.Name)

	// Step 5: Logging out frees the connection slot
	logout := landpb.DeleteTokenRequest{Token: homer.AccessToken}
	out, err := s.app.LandService.DeleteToken(s.ctx, s.landRequest(homer, logout.Marshal()))
	s.Require().NoError(err)
	var resp landpb.DeleteTokenResponse
	s.Require().NoError(resp.Unmarshal(out))
	s.Equal(landpb.ResultSuccess, resp.Result)
	s.Equal(0, s.app.Tracker.Active())
}

// Test: A submitted town is approved into another player's slot
func (s *IntegrationSuite) TestSubmitAndApproveFlow() {
	marge := s.createUser("marge@springfield.com", "m-marge")
	path := s.stage("someone-else", "Shelbyville")

	id, err := s.app.PendingRegistry.Submit(s.ctx, pending.SubmitParams{
		Email: "bart@springfield.com", TownName: "Shelbyville", FilePath: path,
	})
	s.Require().NoError(err)

	outcome, err := s.app.PendingRegistry.Approve(s.ctx, id, "marge@springfield.com")
	s.Require().NoError(err)
	s.Equal(pending.OutcomeApproved, outcome)

	// The imported town belongs to marge and carries her id once loaded
	body, err := s.app.LandService.GetLand(s.ctx, s.landRequest(marge, nil))
	s.Require().NoError(err)
	msg, err := landpb.UnmarshalLand(body)
	s.Require().NoError(err)
	s.Equal("Shelbyville", msg.FriendData.Name)
	s.Equal("m-marge", msg.ID)

	balance, err := s.app.Ledger.Balance("marge@springfield.com")
	s.Require().NoError(err)
	s.Equal(int64(1000), balance)

	town, err := s.app.PendingRegistry.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(model.PendingStatusApproved, town.Status)

	s.Equal([]model.PendingEventKind{model.PendingEventSubmitted, model.PendingEventApproved}, s.app.Events.Kinds())
}

// Test: Rejection removes the staged upload and the record
func (s *IntegrationSuite) TestSubmitAndRejectFlow() {
	path := s.stage("x", "Capital City")
	id, err := s.app.PendingRegistry.Submit(s.ctx, pending.SubmitParams{Email: "lisa@springfield.com", FilePath: path})
	s.Require().NoError(err)

	s.Require().NoError(s.app.PendingRegistry.Reject(s.ctx, id, "too many monorails"))

	_, err = s.app.PendingRegistry.Get(s.ctx, id)
	s.ErrorIs(err, model.ErrPendingTownNotFound)
	_, statErr := os.Stat(path)
	s.True(os.IsNotExist(statErr))

	_, err = s.app.PendingRegistry.Approve(s.ctx, id, "")
	s.ErrorIs(err, model.ErrPendingTownNotFound)
}

// Test: Legacy mode puts every anonymous player in the shared town
func (s *IntegrationSuite) TestLegacyModeSharesAnonymousTown() {
	cfg := TestConfig(filepath.Join(s.dir, "legacy"))
	cfg.Towns.LegacyMode = true
	app, err := NewTestAppWithConfig(cfg)
	s.Require().NoError(err)
	defer app.Close()

	anon, err := app.AuthService.CreateAnonymous(s.ctx)
	s.Require().NoError(err)

	req := &land.Request{Signals: identity.Signals{Tokens: []string{anon.AccessToken}}}
	_, err = app.LandService.GetLand(s.ctx, req)
	s.Require().NoError(err)

	_, err = os.Stat(cfg.Towns.LegacyPath)
	s.NoError(err)
}

func TestNewWithMemoryStorage(t *testing.T) {
	cfg := TestConfig(t.TempDir())

	app, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if app.LandService == nil || app.PendingRegistry == nil {
		t.Fatal("services not wired")
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	cfg := TestConfig(t.TempDir())
	cfg.Storage.Type = "postgres"

	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}

func TestNewWithRedisRequiresReachableServer(t *testing.T) {
	cfg := TestConfig(t.TempDir())
	cfg.Storage.Type = config.StorageTypeRedis
	cfg.Storage.RedisURL = "redis://127.0.0.1:1"

	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected connection error")
	}
}
