package factory

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/townserver/internal/config"
	"github.com/mcoot/townserver/internal/dependencies/mocks"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/services/pending"
	"github.com/mcoot/townserver/internal/storage/memory"
	"github.com/mcoot/townserver/internal/storage/sqlite"
)

// Credentials of the moderator account every TestApp carries
const (
	TestModeratorUsername = "skinner"
	TestModeratorPassword = "steamed-hams"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
	Events     *RecordingNotifier
}

// TestConfig returns a configuration rooted at dir
func TestConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.Towns.Dir = filepath.Join(dir, "towns")
	cfg.Towns.LegacyPath = filepath.Join(dir, "towns", "mytown.pb")
	cfg.Towns.InitialDonuts = 1000
	cfg.Pending.Dir = filepath.Join(dir, "pending_towns")
	cfg.Pending.DBPath = filepath.Join(dir, "data", "pending_towns.db")
	cfg.Pending.RetryDelay = 10 * time.Millisecond
	return cfg
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// All files live under dir.
func NewTestApp(dir string) (*TestApp, error) {
	return NewTestAppWithConfig(TestConfig(dir))
}

// NewTestAppWithConfig is NewTestApp with a caller-adjusted configuration
func NewTestAppWithConfig(cfg config.Config) (*TestApp, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestModeratorPassword), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	cfg.Moderators = append(cfg.Moderators, config.Moderator{
		Username:     TestModeratorUsername,
		PasswordHash: string(hash),
	})

	pendingStore, err := sqlite.Open(cfg.Pending.DBPath)
	if err != nil {
		return nil, err
	}

	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	events := &RecordingNotifier{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	app := newWithDependencies(cfg, store, pendingStore, events, mockClock, mockRandom, logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
		Events:     events,
	}, nil
}

var _ pending.Notifier = (*RecordingNotifier)(nil)

// RecordingNotifier keeps every pending-town event it is told about
type RecordingNotifier struct {
	mu     sync.Mutex
	events []model.PendingEvent
}

func (n *RecordingNotifier) Notify(_ context.Context, ev model.PendingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

// Kinds returns the recorded event kinds in order
func (n *RecordingNotifier) Kinds() []model.PendingEventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]model.PendingEventKind, len(n.events))
	for i, ev := range n.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
