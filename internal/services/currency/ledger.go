// Package currency keeps each player's donut balance in a sidecar text file.
package currency

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/protocol/landpb"
)

// Config holds ledger settings
type Config struct {
	Dir     string
	Initial int64
	Max     int64
}

// Result is the outcome of one batch of deltas
type Result struct {
	Previous int64
	Balance  int64
	Earned   int64
	Spent    int64
	// Acks echoes each delta id in input order
	Acks []string
}

// Ledger applies currency changes to towns/<owner>.txt
type Ledger struct {
	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
}

func NewLedger(cfg Config, logger *slog.Logger) *Ledger {
	return &Ledger{cfg: cfg, logger: logger}
}

// PathFor returns the balance file for an owner key
func (l *Ledger) PathFor(ownerKey string) string {
	return filepath.Join(l.cfg.Dir, ownerKey+".txt")
}

// ApplyDeltas adds every delta to the balance. The result is not clamped and
// delta ids are not de-duplicated. A batch whose totals would overflow is
// rejected whole with model.ErrMalformedBody.
func (l *Ledger) ApplyDeltas(ctx context.Context, ownerKey string, deltas []landpb.CurrencyDelta) (Result, error) {
	if err := model.CheckOwnerKey(ownerKey); err != nil {
		return Result{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev, err := l.read(ownerKey)
	if err != nil {
		return Result{}, err
	}

	res := Result{Previous: prev, Acks: make([]string, 0, len(deltas))}
	for _, d := range deltas {
		switch {
		case d.Amount == math.MinInt64:
			return Result{}, overflow(d.ID)
		case d.Amount >= 0:
			if res.Earned > math.MaxInt64-d.Amount {
				return Result{}, overflow(d.ID)
			}
			res.Earned += d.Amount
		default:
			if res.Spent > math.MaxInt64+d.Amount {
				return Result{}, overflow(d.ID)
			}
			res.Spent -= d.Amount
		}
		res.Acks = append(res.Acks, d.ID)
	}
	net := res.Earned - res.Spent
	if (net > 0 && prev > math.MaxInt64-net) || (net < 0 && prev < math.MinInt64-net) {
		return Result{}, fmt.Errorf("%w: balance of %s would overflow", model.ErrMalformedBody, ownerKey)
	}
	res.Balance = prev + net

	if err := l.write(ownerKey, res.Balance); err != nil {
		return Result{}, err
	}

	l.logger.Info("currency deltas applied",
		"owner", ownerKey,
		"deltas", len(deltas),
		"earned", res.Earned,
		"spent", res.Spent,
		"balance", res.Balance,
	)
	return res, nil
}

func overflow(id string) error {
	return fmt.Errorf("%w: currency delta %s overflows", model.ErrMalformedBody, id)
}

// CreateDefault writes the initial balance if no file exists yet
func (l *Ledger) CreateDefault(ownerKey string) error {
	if err := model.CheckOwnerKey(ownerKey); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.PathFor(ownerKey)); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %v", model.ErrStorage, l.PathFor(ownerKey), err)
	}
	return l.write(ownerKey, l.cfg.Initial)
}

// Balance returns the current balance, or the initial amount when none is stored
func (l *Ledger) Balance(ownerKey string) (int64, error) {
	if err := model.CheckOwnerKey(ownerKey); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ownerKey)
}

// Set overwrites the balance, clamped to [0, Max]
func (l *Ledger) Set(ownerKey string, amount int64) (int64, error) {
	if err := model.CheckOwnerKey(ownerKey); err != nil {
		return 0, err
	}
	amount = max(0, min(amount, l.cfg.Max))

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.write(ownerKey, amount); err != nil {
		return 0, err
	}
	l.logger.Info("currency set", "owner", ownerKey, "balance", amount)
	return amount, nil
}

func (l *Ledger) read(ownerKey string) (int64, error) {
	path := l.PathFor(ownerKey)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l.cfg.Initial, nil
	}
	if err != nil {
		l.logger.Error("failed to read currency file", "path", path, "error", err)
		return 0, fmt.Errorf("%w: read %s: %v", model.ErrStorage, path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return l.cfg.Initial, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		l.logger.Error("corrupt currency file", "path", path, "error", err)
		return 0, fmt.Errorf("%w: parse %s: %v", model.ErrStorage, path, err)
	}
	return v, nil
}

func (l *Ledger) write(ownerKey string, balance int64) error {
	path := l.PathFor(ownerKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.logger.Error("failed to create currency dir", "path", path, "error", err)
		return fmt.Errorf("%w: mkdir %s: %v", model.ErrStorage, path, err)
	}
	if err := os.WriteFile(path, []byte(strconv.FormatInt(balance, 10)), 0o644); err != nil {
		l.logger.Error("failed to write currency file", "path", path, "error", err)
		return fmt.Errorf("%w: write %s: %v", model.ErrStorage, path, err)
	}
	return nil
}
