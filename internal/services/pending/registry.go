// Package pending is the moderation queue for player-submitted towns.
package pending

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/townserver/internal/dependencies/clock"
	"github.com/mcoot/townserver/internal/dependencies/random"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/storage"
)

// Outcome describes how far an approval got
type Outcome int

const (
	// OutcomeApproved: town imported and status recorded
	OutcomeApproved Outcome = iota + 1
	// OutcomeApprovedStatusStale: town imported but the status write never
	// succeeded, so the record still reads as pending
	OutcomeApprovedStatusStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeApprovedStatusStale:
		return "approved_status_stale"
	default:
		return "unknown"
	}
}

// Importer copies an approved town into place
type Importer interface {
	Import(ctx context.Context, srcPath, ownerKey string) error
}

// Config holds registry settings
type Config struct {
	// Dir receives staged uploads
	Dir           string
	StatusRetries int
	RetryDelay    time.Duration
}

// SubmitParams describes a staged upload
type SubmitParams struct {
	Email       string
	TownName    string
	Description string
	FilePath    string
	FileSize    int64
}

// Registry manages the pending town lifecycle
type Registry struct {
	cfg      Config
	store    storage.PendingTownStore
	importer Importer
	notifier Notifier
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
}

func NewRegistry(
	cfg Config,
	store storage.PendingTownStore,
	importer Importer,
	notifier Notifier,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Registry {
	if cfg.StatusRetries < 1 {
		cfg.StatusRetries = 1
	}
	return &Registry{
		cfg:      cfg,
		store:    store,
		importer: importer,
		notifier: notifier,
		clock:    clock,
		random:   random,
		logger:   logger,
	}
}

// Stage writes an uploaded town into the staging directory and returns its path
func (r *Registry) Stage(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", model.ErrEmptyBody
	}
	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		r.logger.Error("failed to create staging dir", "path", r.cfg.Dir, "error", err)
		return "", fmt.Errorf("%w: mkdir %s: %v", model.ErrStorage, r.cfg.Dir, err)
	}

	name := fmt.Sprintf("upload_%d_%s.pb", r.clock.Now().Unix(), r.random.Hex(4))
	path := filepath.Join(r.cfg.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Error("failed to stage upload", "path", path, "error", err)
		return "", fmt.Errorf("%w: write %s: %v", model.ErrStorage, path, err)
	}
	return path, nil
}

// Submit records a staged upload as pending and returns its id
func (r *Registry) Submit(ctx context.Context, p SubmitParams) (string, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return "", fmt.Errorf("%w: missing email", model.ErrInvalidOwnerKey)
	}

	town := &model.PendingTown{
		ID:          uuid.NewString(),
		Email:       email,
		TownName:    p.TownName,
		Description: p.Description,
		FilePath:    p.FilePath,
		FileSize:    p.FileSize,
		SubmittedAt: r.clock.Now(),
		Status:      model.PendingStatusPending,
	}
	if err := r.store.InsertPendingTown(ctx, town); err != nil {
		r.logger.Error("failed to insert pending town", "email", email, "path", p.FilePath, "error", err)
		return "", err
	}

	r.logger.Info("pending town submitted", "id", town.ID, "email", email, "size", p.FileSize)
	r.notify(ctx, model.PendingEvent{Kind: model.PendingEventSubmitted, ID: town.ID, Email: email})
	return town.ID, nil
}

// Approve imports the staged town for targetEmail, or for the submitter
// when targetEmail is empty
func (r *Registry) Approve(ctx context.Context, id, targetEmail string) (Outcome, error) {
	town, err := r.pendingTown(ctx, id)
	if err != nil {
		return 0, err
	}

	owner := strings.TrimSpace(targetEmail)
	if owner == "" {
		owner = town.Email
	}
	if err := r.importer.Import(ctx, town.FilePath, owner); err != nil {
		r.logger.Error("approval import failed", "id", id, "owner", owner, "path", town.FilePath, "error", err)
		return 0, err
	}

	outcome := r.markApproved(ctx, id)
	r.logger.Info("pending town approved", "id", id, "owner", owner, "outcome", outcome.String())
	r.notify(ctx, model.PendingEvent{Kind: model.PendingEventApproved, ID: id, Email: town.Email, TargetEmail: owner})
	return outcome, nil
}

// markApproved retries the status write while the store reports busy
func (r *Registry) markApproved(ctx context.Context, id string) Outcome {
	var err error
	for attempt := 1; attempt <= r.cfg.StatusRetries; attempt++ {
		err = r.store.UpdatePendingTownStatus(ctx, id, model.PendingStatusApproved, "")
		if err == nil {
			return OutcomeApproved
		}
		if !errors.Is(err, storage.ErrBusy) {
			break
		}
		r.logger.Warn("pending store busy, retrying status update", "id", id, "attempt", attempt)
		if attempt < r.cfg.StatusRetries {
			r.clock.Sleep(r.cfg.RetryDelay)
		}
	}
	r.logger.Error("town imported but approval status not recorded", "id", id, "error", err)
	return OutcomeApprovedStatusStale
}

// Reject deletes the record and its staged file. File removal is best effort.
func (r *Registry) Reject(ctx context.Context, id, reason string) error {
	town, err := r.pendingTown(ctx, id)
	if err != nil {
		return err
	}

	if err := r.store.UpdatePendingTownStatus(ctx, id, model.PendingStatusRejected, reason); err != nil {
		r.logger.Error("failed to mark pending town rejected", "id", id, "error", err)
		return err
	}
	if err := r.store.DeletePendingTown(ctx, id); err != nil {
		r.logger.Error("failed to delete rejected town", "id", id, "error", err)
		return err
	}
	r.removeFile(town.FilePath)

	r.logger.Info("pending town rejected", "id", id, "reason", reason)
	r.notify(ctx, model.PendingEvent{Kind: model.PendingEventRejected, ID: id, Email: town.Email, Reason: reason})
	return nil
}

// ListPending returns undecided towns, newest first
func (r *Registry) ListPending(ctx context.Context) ([]*model.PendingTown, error) {
	return r.store.ListPendingTowns(ctx, model.PendingStatusPending)
}

// ListPendingByEmail returns undecided towns submitted by email, newest first
func (r *Registry) ListPendingByEmail(ctx context.Context, email string) ([]*model.PendingTown, error) {
	return r.store.ListPendingTownsByEmail(ctx, email, model.PendingStatusPending)
}

func (r *Registry) Get(ctx context.Context, id string) (*model.PendingTown, error) {
	return r.store.GetPendingTown(ctx, id)
}

// CleanupOld removes decided records older than daysToKeep together with
// their staged files. It returns the number of records removed.
func (r *Registry) CleanupOld(ctx context.Context, daysToKeep int) (int, error) {
	if daysToKeep < 0 {
		daysToKeep = 0
	}
	cutoff := r.clock.Now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)

	old, err := r.store.ListDecidedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, town := range old {
		r.removeFile(town.FilePath)
		if err := r.store.DeletePendingTown(ctx, town.ID); err != nil {
			r.logger.Error("cleanup failed to delete record", "id", town.ID, "error", err)
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		r.logger.Info("cleaned up decided towns", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

func (r *Registry) pendingTown(ctx context.Context, id string) (*model.PendingTown, error) {
	town, err := r.store.GetPendingTown(ctx, id)
	if err != nil {
		return nil, err
	}
	if town.Status != model.PendingStatusPending {
		return nil, fmt.Errorf("%w: %s is %s", model.ErrNotPending, id, town.Status)
	}
	return town, nil
}

func (r *Registry) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Warn("failed to remove staged town", "path", path, "error", err)
	}
}

func (r *Registry) notify(ctx context.Context, ev model.PendingEvent) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, ev); err != nil {
		r.logger.Warn("pending town notification failed", "kind", string(ev.Kind), "id", ev.ID, "error", err)
	}
}
