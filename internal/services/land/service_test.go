package land

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/townserver/internal/dependencies/mocks"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/protocol/landpb"
	"github.com/mcoot/townserver/internal/services/currency"
	"github.com/mcoot/townserver/internal/services/identity"
	"github.com/mcoot/townserver/internal/services/stats"
	"github.com/mcoot/townserver/internal/services/town"
	"github.com/mcoot/townserver/internal/storage/memory"
	"github.com/mcoot/townserver/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	dir        string
	identities *memory.Storage
	tracker    *stats.Tracker
	random     *mocks.MockRandom
	service    *Service
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.dir = filepath.Join(s.T().TempDir(), "towns")
	s.identities = memory.New()
	s.random = mocks.NewMockRandom()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.tracker = stats.NewTracker(clk, 10*time.Minute, logger)

	ledger := currency.NewLedger(currency.Config{Dir: s.dir, Initial: 1000, Max: 999999}, logger)
	towns := town.NewStore(town.Config{Dir: s.dir}, s.identities, ledger, s.random, logger)
	resolver := identity.NewResolver(s.identities, logger)
	s.service = NewService(s.identities, resolver, towns, ledger, s.tracker, s.random, logger)
	s.ctx = context.Background()

	s.Require().NoError(s.identities.SaveUser(s.ctx, &model.User{
		Email: "homer@springfield.com", UserID: "1", MayhemID: "m-homer", AccessToken: "tok-homer",
	}))
	s.Require().NoError(s.identities.SaveUser(s.ctx, &model.User{
		Email: "flanders@springfield.com", UserID: "2", MayhemID: "m-ned", AccessToken: "tok-ned",
	}))
}

func (s *ServiceSuite) homerReq(body []byte) *Request {
	return &Request{
		Signals:  identity.Signals{URLID: "m-homer", Tokens: []string{"tok-homer"}},
		RemoteIP: "10.0.0.1",
		Body:     body,
	}
}

func (s *ServiceSuite) townPath() string {
	return filepath.Join(s.dir, "homer@springfield.com.pb")
}

func (s *ServiceSuite) town(id, name string) *landpb.LandMessage {
	fd := landpb.NewFriendData()
	fd.Name = name
	return &landpb.LandMessage{ID: id, FriendData: fd}
}

func (s *ServiceSuite) readTown() *landpb.LandMessage {
	data, err := os.ReadFile(s.townPath())
	s.Require().NoError(err)
	msg, err := landpb.UnmarshalLand(data)
	s.Require().NoError(err)
	return msg
}

// GetLand tests

func (s *ServiceSuite) TestGetLandCreatesBlankTown() {
	body, err := s.service.GetLand(s.ctx, s.homerReq(nil))
	s.Require().NoError(err)

	msg, err := landpb.UnmarshalLand(body)
	s.Require().NoError(err)
	s.Equal("m-homer", msg.ID)
	s.Empty(msg.FriendData.Name)
	s.Equal(int32(72), msg.FriendData.DataVersion)
	s.Equal(int32(0), msg.FriendData.Level)

	s.Equal("m-homer", s.readTown().ID)
	s.Equal(1, s.tracker.Active())
}

func (s *ServiceSuite) TestGetLandWithoutIdentity() {
	_, err := s.service.GetLand(s.ctx, &Request{})
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *ServiceSuite) TestGetLandOfAnotherPlayerIsConflict() {
	req := &Request{Signals: identity.Signals{URLID: "m-homer", Tokens: []string{"tok-ned"}}}

	_, err := s.service.GetLand(s.ctx, req)
	s.ErrorIs(err, model.ErrIdentityConflict)

	_, statErr := os.Stat(s.townPath())
	s.True(os.IsNotExist(statErr), "no town touched on conflict")
}

// PutLand tests

func (s *ServiceSuite) TestPutLandSavesAndEchoes() {
	in := s.town("m-homer", "Springfield").Marshal()

	out, err := s.service.PutLand(s.ctx, s.homerReq(in))
	s.Require().NoError(err)
	s.Equal(in, out)
	s.Equal("Springfield", s.readTown().FriendData.Name)
}

func (s *ServiceSuite) TestPutLandEmptyIDIsRejected() {
	_, err := s.service.PutLand(s.ctx, s.homerReq(s.town("", "Springfield").Marshal()))
	s.ErrorIs(err, model.ErrInvalidTown)

	_, statErr := os.Stat(s.townPath())
	s.True(os.IsNotExist(statErr))
}

func (s *ServiceSuite) TestPutLandRewritesForeignID() {
	out, err := s.service.PutLand(s.ctx, s.homerReq(s.town("m-ned", "Springfield").Marshal()))
	s.Require().NoError(err)

	echoed, err := landpb.UnmarshalLand(out)
	s.Require().NoError(err)
	s.Equal("m-homer", echoed.ID)
	s.Equal("m-homer", s.readTown().ID)
	s.Equal("Springfield", s.readTown().FriendData.Name)
}

func (s *ServiceSuite) TestPutLandWithForeignTokenIsConflict() {
	req := &Request{
		Signals: identity.Signals{URLID: "m-homer", HeaderID: "m-homer", Tokens: []string{"tok-ned"}},
		Body:    s.town("m-homer", "Hijacked").Marshal(),
	}
	_, err := s.service.PutLand(s.ctx, req)
	s.ErrorIs(err, model.ErrIdentityConflict)

	_, statErr := os.Stat(s.townPath())
	s.True(os.IsNotExist(statErr), "no town written on conflict")

	u, err := s.identities.GetUserByToken(s.ctx, "tok-ned")
	s.Require().NoError(err)
	s.Equal("flanders@springfield.com", u.Email)
	homer, err := s.identities.GetUserByEmail(s.ctx, "homer@springfield.com")
	s.Require().NoError(err)
	s.Equal("tok-homer", homer.AccessToken)
}

func (s *ServiceSuite) TestPutLandDoesNotMoveAnotherPlayersToken() {
	req := &Request{
		Signals: identity.Signals{HeaderID: "m-homer", Tokens: []string{"tok-ned"}},
		Body:    s.town("m-homer", "Springfield").Marshal(),
	}
	_, err := s.service.PutLand(s.ctx, req)
	s.Require().NoError(err)

	u, err := s.identities.GetUserByToken(s.ctx, "tok-ned")
	s.Require().NoError(err)
	s.Equal("flanders@springfield.com", u.Email)
}

func (s *ServiceSuite) TestPutLandEmptyBody() {
	_, err := s.service.PutLand(s.ctx, s.homerReq(nil))
	s.ErrorIs(err, model.ErrEmptyBody)
}

func (s *ServiceSuite) TestPutLandGarbageBody() {
	_, err := s.service.PutLand(s.ctx, s.homerReq(bytes.Repeat([]byte{0xff}, 16)))
	s.ErrorIs(err, model.ErrMalformedBody)
}

func (s *ServiceSuite) TestPutLandRemembersPresentedToken() {
	req := &Request{
		Signals: identity.Signals{HeaderID: "m-homer", Tokens: []string{"tok-fresh"}},
		Body:    s.town("m-homer", "x").Marshal(),
	}
	_, err := s.service.PutLand(s.ctx, req)
	s.Require().NoError(err)

	u, err := s.identities.GetUserByToken(s.ctx, "tok-fresh")
	s.Require().NoError(err)
	s.Equal("homer@springfield.com", u.Email)
}

// PostLand tests

func (s *ServiceSuite) TestPostLandForcesID() {
	err := s.service.PostLand(s.ctx, s.homerReq(s.town("someone-else", "Ogdenville").Marshal()))
	s.Require().NoError(err)

	msg := s.readTown()
	s.Equal("m-homer", msg.ID)
	s.Equal("Ogdenville", msg.FriendData.Name)

	u, _ := s.identities.GetUserByEmail(s.ctx, "homer@springfield.com")
	s.Equal(s.townPath(), u.TownPath, "path cache committed with the save")
}

func (s *ServiceSuite) TestPostLandGzip() {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(s.town("", "Capital City").Marshal())
	s.Require().NoError(zw.Close())

	req := s.homerReq(buf.Bytes())
	req.ContentEncoding = "gzip"
	s.Require().NoError(s.service.PostLand(s.ctx, req))
	s.Equal("Capital City", s.readTown().FriendData.Name)
}

func (s *ServiceSuite) TestPostLandDeflateZlibAndRaw() {
	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	_, _ = zw.Write(s.town("", "Zlib").Marshal())
	s.Require().NoError(zw.Close())

	req := s.homerReq(zbuf.Bytes())
	req.ContentEncoding = "deflate"
	s.Require().NoError(s.service.PostLand(s.ctx, req))
	s.Equal("Zlib", s.readTown().FriendData.Name)

	var fbuf bytes.Buffer
	fw, err := flate.NewWriter(&fbuf, flate.DefaultCompression)
	s.Require().NoError(err)
	_, _ = fw.Write(s.town("", "Raw").Marshal())
	s.Require().NoError(fw.Close())

	req = s.homerReq(fbuf.Bytes())
	req.ContentEncoding = "deflate"
	s.Require().NoError(s.service.PostLand(s.ctx, req))
	s.Equal("Raw", s.readTown().FriendData.Name)
}

func (s *ServiceSuite) TestPostLandBadGzip() {
	req := s.homerReq([]byte("not gzip"))
	req.ContentEncoding = "gzip"
	s.ErrorIs(s.service.PostLand(s.ctx, req), model.ErrMalformedBody)
}

func (s *ServiceSuite) TestPostLandRollsBackOnInvalidTown() {
	req := &Request{
		Signals: identity.Signals{HeaderID: "m-homer", Tokens: []string{"tok-rotated"}},
		Body:    (&landpb.LandMessage{ID: "m-homer"}).Marshal(),
	}
	s.ErrorIs(s.service.PostLand(s.ctx, req), model.ErrInvalidTown)

	u, _ := s.identities.GetUserByEmail(s.ctx, "homer@springfield.com")
	s.Equal("tok-homer", u.AccessToken, "token write rolled back")
	s.Empty(u.TownPath)
}

func (s *ServiceSuite) TestPostLandUnknownIdentity() {
	err := s.service.PostLand(s.ctx, &Request{Signals: identity.Signals{URLID: "m-ghost"}, Body: []byte{1}})
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

// ExtraLandUpdate tests

func (s *ServiceSuite) TestExtraLandUpdateAppliesDeltas() {
	batch := landpb.ExtraLandMessage{CurrencyDeltas: []landpb.CurrencyDelta{
		{ID: "a", Amount: 500},
		{ID: "b", Amount: -200},
	}}
	req := &Request{Signals: identity.Signals{Tokens: []string{"tok-homer"}}, Body: batch.Marshal()}

	out, err := s.service.ExtraLandUpdate(s.ctx, req, "m-homer")
	s.Require().NoError(err)

	var resp landpb.ExtraLandResponse
	s.Require().NoError(resp.Unmarshal(out))
	s.Equal([]string{"a", "b"}, resp.ProcessedIDs)

	balance, err := os.ReadFile(filepath.Join(s.dir, "homer@springfield.com.txt"))
	s.Require().NoError(err)
	s.Equal("1300", string(balance))
}

func (s *ServiceSuite) TestExtraLandUpdateUsesHintAsIdentity() {
	batch := landpb.ExtraLandMessage{CurrencyDeltas: []landpb.CurrencyDelta{{ID: "x", Amount: 1}}}

	_, err := s.service.ExtraLandUpdate(s.ctx, &Request{Body: batch.Marshal()}, "m-ned")
	s.Require().NoError(err)

	_, err = os.Stat(filepath.Join(s.dir, "flanders@springfield.com.txt"))
	s.NoError(err)
}

func (s *ServiceSuite) TestExtraLandUpdateEmptyBody() {
	_, err := s.service.ExtraLandUpdate(s.ctx, s.homerReq(nil), "")
	s.ErrorIs(err, model.ErrEmptyBody)
}

// GetWholeLandToken tests

func (s *ServiceSuite) TestWholeLandTokenWithoutTown() {
	s.random.QueueHex("sess-new")

	out, err := s.service.GetWholeLandToken(s.ctx, s.homerReq(nil))
	s.Require().NoError(err)

	var resp landpb.WholeLandTokenResponse
	s.Require().NoError(resp.Unmarshal(out))
	s.Equal("sess-new", resp.Token)
	s.Equal("0", resp.Conflict)

	u, _ := s.identities.GetUserByEmail(s.ctx, "homer@springfield.com")
	s.Equal("sess-new", u.SessionKey)
}

func (s *ServiceSuite) TestWholeLandTokenKeepsExistingSessionKey() {
	s.Require().NoError(s.identities.SetSessionKey(s.ctx, "homer@springfield.com", "sess-old"))

	out, err := s.service.GetWholeLandToken(s.ctx, s.homerReq(nil))
	s.Require().NoError(err)

	var resp landpb.WholeLandTokenResponse
	s.Require().NoError(resp.Unmarshal(out))
	s.Equal("sess-old", resp.Token)
}

func (s *ServiceSuite) TestWholeLandTokenReturnsTown() {
	_, err := s.service.PutLand(s.ctx, s.homerReq(s.town("m-homer", "Springfield").Marshal()))
	s.Require().NoError(err)

	out, err := s.service.GetWholeLandToken(s.ctx, s.homerReq(nil))
	s.Require().NoError(err)

	msg, err := landpb.UnmarshalLand(out)
	s.Require().NoError(err)
	s.Equal("Springfield", msg.FriendData.Name)
}

// DeleteToken tests

func (s *ServiceSuite) TestDeleteTokenMismatchKeepsToken() {
	body := (&landpb.DeleteTokenRequest{Token: "tok-wrong"}).Marshal()

	out, err := s.service.DeleteToken(s.ctx, s.homerReq(body))
	s.Require().NoError(err)

	var resp landpb.DeleteTokenResponse
	s.Require().NoError(resp.Unmarshal(out))
	s.Equal("0", resp.Result)

	u, _ := s.identities.GetUserByEmail(s.ctx, "homer@springfield.com")
	s.Equal("tok-homer", u.AccessToken)
}

func (s *ServiceSuite) TestDeleteTokenMatchLogsOut() {
	s.tracker.Register("10.0.0.1", "homer@springfield.com")
	body := (&landpb.DeleteTokenRequest{Token: "tok-homer"}).Marshal()

	out, err := s.service.DeleteToken(s.ctx, s.homerReq(body))
	s.Require().NoError(err)

	var resp landpb.DeleteTokenResponse
	s.Require().NoError(resp.Unmarshal(out))
	s.Equal("1", resp.Result)

	u, _ := s.identities.GetUserByEmail(s.ctx, "homer@springfield.com")
	s.Empty(u.AccessToken)
	s.Equal(0, s.tracker.Active())
}
