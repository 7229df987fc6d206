// Package identity maps request signals to a player identity.
package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/storage"
)

// Signals are the identity hints carried by one request
type Signals struct {
	// URLID is the mayhem id embedded in the route
	URLID string
	// HeaderID is the mayhem id from the mh_uid header
	HeaderID string
	// Tokens in priority order; empty entries are skipped
	Tokens []string
}

// PresentedToken returns the highest priority non-empty token
func (s Signals) PresentedToken() string {
	for _, t := range s.Tokens {
		if t != "" {
			return t
		}
	}
	return ""
}

type strategy struct {
	name   string
	lookup func(ctx context.Context, store storage.IdentityStore, sig Signals) (*model.User, error)
}

var (
	byURLID = strategy{name: "url_id", lookup: func(ctx context.Context, store storage.IdentityStore, sig Signals) (*model.User, error) {
		return byMayhemID(ctx, store, sig.URLID)
	}}
	byHeaderID = strategy{name: "header_id", lookup: func(ctx context.Context, store storage.IdentityStore, sig Signals) (*model.User, error) {
		return byMayhemID(ctx, store, sig.HeaderID)
	}}
	byToken = strategy{name: "token", lookup: func(ctx context.Context, store storage.IdentityStore, sig Signals) (*model.User, error) {
		for _, t := range sig.Tokens {
			if t == "" {
				continue
			}
			u, err := store.GetUserByToken(ctx, t)
			if err == nil {
				return u, nil
			}
			if !errors.Is(err, model.ErrUserNotFound) {
				return nil, err
			}
		}
		return nil, nil
	}}
)

// resolution order; first hit wins
var strategies = []strategy{byURLID, byHeaderID, byToken}

// every credential that resolves must name the route id's owner
var credentialStrategies = []strategy{byHeaderID, byToken}

func byMayhemID(ctx context.Context, store storage.IdentityStore, id string) (*model.User, error) {
	if id == "" {
		return nil, nil
	}
	u, err := store.GetUserByMayhemID(ctx, id)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

// Resolver resolves identities against an identity store
type Resolver struct {
	store  storage.IdentityStore
	logger *slog.Logger
}

func NewResolver(store storage.IdentityStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// With returns a resolver reading through the given store, typically a transaction
func (r *Resolver) With(store storage.IdentityStore) *Resolver {
	return &Resolver{store: store, logger: r.logger}
}

// Resolve returns the identity named by sig.
// It fails with model.ErrIdentityConflict when the route id belongs to a
// different player than the credential, and model.ErrIdentityNotFound when
// no signal resolves.
func (r *Resolver) Resolve(ctx context.Context, sig Signals) (*model.Identity, error) {
	user, via, err := r.first(ctx, strategies, sig)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.ErrIdentityNotFound
	}

	if err := r.checkConflict(ctx, sig); err != nil {
		return nil, err
	}

	r.logger.Debug("identity resolved", "email", user.Email, "via", via)
	return user.Identity(), nil
}

func (r *Resolver) first(ctx context.Context, list []strategy, sig Signals) (*model.User, string, error) {
	for _, st := range list {
		u, err := st.lookup(ctx, r.store, sig)
		if err != nil {
			return nil, "", err
		}
		if u != nil {
			return u, st.name, nil
		}
	}
	return nil, "", nil
}

func (r *Resolver) checkConflict(ctx context.Context, sig Signals) error {
	if sig.URLID == "" {
		return nil
	}
	owner, err := byMayhemID(ctx, r.store, sig.URLID)
	if err != nil || owner == nil {
		return err
	}
	for _, st := range credentialStrategies {
		cred, err := st.lookup(ctx, r.store, sig)
		if err != nil {
			return err
		}
		if cred == nil || cred.Email == owner.Email {
			continue
		}
		r.logger.Warn("identity conflict",
			"url_id", sig.URLID,
			"url_email", owner.Email,
			"credential_email", cred.Email,
			"credential", st.name,
		)
		return model.ErrIdentityConflict
	}
	return nil
}
