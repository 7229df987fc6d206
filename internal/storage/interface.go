package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mcoot/townserver/internal/model"
)

// ErrBusy is returned when the backing database is locked by another writer.
// It is the only storage error callers are expected to retry.
var ErrBusy = errors.New("storage busy")

// IdentityStore holds player identity records keyed by email
type IdentityStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByMayhemID(ctx context.Context, mayhemID string) (*model.User, error)
	GetUserByToken(ctx context.Context, token string) (*model.User, error)
	SaveUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, email string) error

	SetAccessToken(ctx context.Context, email, token string) error
	SetSessionKey(ctx context.Context, email, key string) error
	SetTownPath(ctx context.Context, email, path string) error
}

// IdentityTx buffers writes until Commit. Reads are served from the
// committed state.
type IdentityTx interface {
	IdentityStore
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxIdentityStore is an IdentityStore that supports transactions
type TxIdentityStore interface {
	IdentityStore
	Begin(ctx context.Context) (IdentityTx, error)
}

// PendingTownStore is the moderation queue
type PendingTownStore interface {
	InsertPendingTown(ctx context.Context, town *model.PendingTown) error
	GetPendingTown(ctx context.Context, id string) (*model.PendingTown, error)
	// List operations return newest submissions first
	ListPendingTowns(ctx context.Context, status model.PendingStatus) ([]*model.PendingTown, error)
	ListPendingTownsByEmail(ctx context.Context, email string, status model.PendingStatus) ([]*model.PendingTown, error)
	ListDecidedBefore(ctx context.Context, cutoff time.Time) ([]*model.PendingTown, error)
	UpdatePendingTownStatus(ctx context.Context, id string, status model.PendingStatus, reason string) error
	DeletePendingTown(ctx context.Context, id string) error
}
