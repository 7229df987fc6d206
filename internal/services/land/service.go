// Package land implements the game-facing town protocol.
package land

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/townserver/internal/dependencies/random"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/protocol/landpb"
	"github.com/mcoot/townserver/internal/services/currency"
	"github.com/mcoot/townserver/internal/services/identity"
	"github.com/mcoot/townserver/internal/services/stats"
	"github.com/mcoot/townserver/internal/services/town"
	"github.com/mcoot/townserver/internal/storage"
)

// Request is the part of an HTTP request the land protocol cares about
type Request struct {
	Signals         identity.Signals
	RemoteIP        string
	ContentEncoding string
	Body            []byte
}

// Service handles land protocol operations
type Service struct {
	identities storage.TxIdentityStore
	resolver   *identity.Resolver
	towns      *town.Store
	ledger     *currency.Ledger
	tracker    *stats.Tracker
	random     random.Random
	logger     *slog.Logger
}

// NewService creates a new land Service
func NewService(
	identities storage.TxIdentityStore,
	resolver *identity.Resolver,
	towns *town.Store,
	ledger *currency.Ledger,
	tracker *stats.Tracker,
	random random.Random,
	logger *slog.Logger,
) *Service {
	return &Service{
		identities: identities,
		resolver:   resolver,
		towns:      towns,
		ledger:     ledger,
		tracker:    tracker,
		random:     random,
		logger:     logger,
	}
}

func (s *Service) resolve(ctx context.Context, req *Request) (*model.Identity, error) {
	id, err := s.resolver.Resolve(ctx, req.Signals)
	if err != nil {
		return nil, err
	}
	s.tracker.Register(req.RemoteIP, id.Email)
	return id, nil
}

// GetLand returns the caller's town, creating a blank one on first visit
func (s *Service) GetLand(ctx context.Context, req *Request) ([]byte, error) {
	id, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	msg, created, err := s.towns.LoadOrCreate(ctx, id)
	if err != nil {
		s.logger.Error("failed to load town",
			slog.String("email", id.Email),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if created {
		s.logger.Info("served new town", slog.String("email", id.Email))
	}
	return msg.Marshal(), nil
}

// PutLand replaces the caller's town with the request body and echoes it back.
// A non-empty id is rewritten to the caller's mayhem id before saving.
func (s *Service) PutLand(ctx context.Context, req *Request) ([]byte, error) {
	id, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.rememberToken(ctx, s.identities, id, req.Signals); err != nil {
		return nil, err
	}

	msg, err := decodeLand(req.Body)
	if err != nil {
		return nil, err
	}
	if err := s.towns.Validate(msg); err != nil {
		s.logger.Warn("rejected town upload",
			slog.String("email", id.Email),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if id.MayhemID != "" {
		msg.ID = id.MayhemID
	}
	if err := s.towns.Save(ctx, id, msg); err != nil {
		return nil, err
	}
	return msg.Marshal(), nil
}

// PostLand saves a possibly compressed town upload. The id is always
// overwritten with the caller's mayhem id. Identity store writes made while
// handling the request are committed only if the town is saved.
func (s *Service) PostLand(ctx context.Context, req *Request) (err error) {
	tx, err := s.identities.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	id, err := s.resolver.With(tx).Resolve(ctx, req.Signals)
	if err != nil {
		return err
	}
	s.tracker.Register(req.RemoteIP, id.Email)

	if err := s.rememberToken(ctx, tx, id, req.Signals); err != nil {
		return err
	}

	body, err := decompress(req.ContentEncoding, req.Body)
	if err != nil {
		return err
	}
	msg, err := decodeLand(body)
	if err != nil {
		return err
	}
	if id.MayhemID != "" {
		msg.ID = id.MayhemID
	}

	towns := s.towns.With(tx)
	if err := towns.Validate(msg); err != nil {
		return err
	}
	if err := towns.Save(ctx, id, msg); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return nil
}

// ExtraLandUpdate applies a batch of currency deltas. landIDHint is tried
// as the route id when the request carries none.
func (s *Service) ExtraLandUpdate(ctx context.Context, req *Request, landIDHint string) ([]byte, error) {
	sig := req.Signals
	if sig.URLID == "" {
		sig.URLID = landIDHint
	}
	id, err := s.resolve(ctx, &Request{Signals: sig, RemoteIP: req.RemoteIP})
	if err != nil {
		return nil, err
	}

	if len(req.Body) == 0 {
		return nil, model.ErrEmptyBody
	}
	var batch landpb.ExtraLandMessage
	if err := batch.Unmarshal(req.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedBody, err)
	}

	res, err := s.ledger.ApplyDeltas(ctx, s.towns.OwnerKey(id), batch.CurrencyDeltas)
	if err != nil {
		return nil, err
	}
	resp := landpb.ExtraLandResponse{ProcessedIDs: res.Acks}
	return resp.Marshal(), nil
}

// GetWholeLandToken returns the caller's town when one exists, otherwise a
// token response carrying the session key. A session key is issued on
// first use.
func (s *Service) GetWholeLandToken(ctx context.Context, req *Request) ([]byte, error) {
	id, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if id.SessionKey == "" {
		key := s.random.Hex(16)
		if err := s.identities.SetSessionKey(ctx, id.Email, key); err != nil {
			return nil, err
		}
		id.SessionKey = key
	}

	msg, err := s.towns.Load(ctx, id)
	if err == nil {
		return msg.Marshal(), nil
	}
	if !errors.Is(err, model.ErrTownNotFound) {
		return nil, err
	}

	resp := landpb.WholeLandTokenResponse{Token: id.SessionKey, Conflict: "0"}
	return resp.Marshal(), nil
}

// DeleteToken logs the caller out when the presented token matches theirs.
// A mismatch is reported in the response body, not as an error.
func (s *Service) DeleteToken(ctx context.Context, req *Request) ([]byte, error) {
	id, err := s.resolver.Resolve(ctx, req.Signals)
	if err != nil {
		return nil, err
	}

	var dt landpb.DeleteTokenRequest
	if err := dt.Unmarshal(req.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedBody, err)
	}

	resp := landpb.DeleteTokenResponse{Result: landpb.ResultFailure}
	if dt.Token != "" && dt.Token == id.AccessToken {
		if err := s.identities.SetAccessToken(ctx, id.Email, ""); err != nil {
			return nil, err
		}
		s.tracker.Unregister(req.RemoteIP)
		resp.Result = landpb.ResultSuccess
		s.logger.Info("player logged out", slog.String("email", id.Email))
	} else {
		s.logger.Warn("delete token mismatch", slog.String("email", id.Email))
	}
	return resp.Marshal(), nil
}

// rememberToken stores the token the client presented as the current one.
// A token already held by another player is never moved.
func (s *Service) rememberToken(ctx context.Context, store storage.IdentityStore, id *model.Identity, sig identity.Signals) error {
	token := sig.PresentedToken()
	if token == "" || token == id.AccessToken {
		return nil
	}
	holder, err := store.GetUserByToken(ctx, token)
	switch {
	case err == nil && holder.Email != id.Email:
		s.logger.Warn("presented token belongs to another player",
			slog.String("email", id.Email),
			slog.String("holder", holder.Email),
		)
		return nil
	case err != nil && !errors.Is(err, model.ErrUserNotFound):
		return err
	}
	if err := store.SetAccessToken(ctx, id.Email, token); err != nil {
		return err
	}
	id.AccessToken = token
	return nil
}

func decodeLand(body []byte) (*landpb.LandMessage, error) {
	if len(body) == 0 {
		return nil, model.ErrEmptyBody
	}
	msg, err := landpb.UnmarshalLand(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedBody, err)
	}
	return msg, nil
}
