package pending

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/townserver/internal/dependencies/mocks"
	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/services/currency"
	"github.com/mcoot/townserver/internal/services/town"
	"github.com/mcoot/townserver/internal/storage"
	"github.com/mcoot/townserver/internal/storage/memory"
	"github.com/mcoot/townserver/internal/storage/sqlite"
	"github.com/mcoot/townserver/internal/testutil"
)

// busyStore fails status updates with storage.ErrBusy a set number of times
type busyStore struct {
	storage.PendingTownStore
	failures int
	calls    int
}

func (b *busyStore) UpdatePendingTownStatus(ctx context.Context, id string, status model.PendingStatus, reason string) error {
	b.calls++
	if b.calls <= b.failures {
		return fmt.Errorf("%w: database is locked", storage.ErrBusy)
	}
	return b.PendingTownStore.UpdatePendingTownStatus(ctx, id, status, reason)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.PendingEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev model.PendingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

type RegistrySuite struct {
	suite.Suite
	root     string
	townsDir string
	db       *sqlite.Storage
	busy     *busyStore
	clock    *mocks.MockClock
	notifier *recordingNotifier
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	logger := testutil.NopLogger()
	s.root = s.T().TempDir()
	s.townsDir = filepath.Join(s.root, "towns")
	s.ctx = context.Background()

	db, err := sqlite.Open(filepath.Join(s.root, "data", "pending_towns.db"))
	s.Require().NoError(err)
	s.db = db
	s.busy = &busyStore{PendingTownStore: db}

	s.clock = mocks.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	rnd := mocks.NewMockRandom()
	ledger := currency.NewLedger(currency.Config{Dir: s.townsDir, Initial: 1000, Max: 999999}, logger)
	towns := town.NewStore(town.Config{Dir: s.townsDir}, memory.New(), ledger, rnd, logger)
	s.notifier = &recordingNotifier{}

	s.registry = NewRegistry(
		Config{Dir: filepath.Join(s.root, "pending_towns"), StatusRetries: 5, RetryDelay: 100 * time.Millisecond},
		s.busy, towns, s.notifier, s.clock, rnd, logger,
	)
}

func (s *RegistrySuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *RegistrySuite) submit(email string, data []byte) (string, string) {
	path, err := s.registry.Stage(s.ctx, data)
	s.Require().NoError(err)
	id, err := s.registry.Submit(s.ctx, SubmitParams{
		Email: email, TownName: "Springfield", FilePath: path, FileSize: int64(len(data)),
	})
	s.Require().NoError(err)
	return id, path
}

func (s *RegistrySuite) exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Stage and Submit tests

func (s *RegistrySuite) TestStageNamesFileByTime() {
	path, err := s.registry.Stage(s.ctx, []byte{1, 2, 3})
	s.Require().NoError(err)

	s.Equal(fmt.Sprintf("upload_%d_00000001.pb", s.clock.Now().Unix()), filepath.Base(path))
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Equal([]byte{1, 2, 3}, data)
}

func (s *RegistrySuite) TestStageEmpty() {
	_, err := s.registry.Stage(s.ctx, nil)
	s.ErrorIs(err, model.ErrEmptyBody)
}

func (s *RegistrySuite) TestSubmitInsertsPending() {
	id, path := s.submit("a@x.com", make([]byte, 1000))

	town, err := s.registry.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(model.PendingStatusPending, town.Status)
	s.Equal(path, town.FilePath)
	s.Equal(int64(1000), town.FileSize)
	s.Equal(model.PendingEventSubmitted, s.notifier.events[0].Kind)
}

func (s *RegistrySuite) TestListsNewestFirst() {
	first, _ := s.submit("a@x.com", []byte{1})
	s.clock.Advance(time.Minute)
	second, _ := s.submit("b@x.com", []byte{2})
	s.clock.Advance(time.Minute)
	third, _ := s.submit("a@x.com", []byte{3})

	all, err := s.registry.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]string{third, second, first}, []string{all[0].ID, all[1].ID, all[2].ID})

	mine, err := s.registry.ListPendingByEmail(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(third, mine[0].ID)
}

// Approve tests

func (s *RegistrySuite) TestApproveImportsForSubmitter() {
	data := []byte("staged town bytes")
	id, _ := s.submit("a@x.com", data)

	outcome, err := s.registry.Approve(s.ctx, id, "")
	s.Require().NoError(err)
	s.Equal(OutcomeApproved, outcome)

	imported, err := os.ReadFile(filepath.Join(s.townsDir, "a@x.com.pb"))
	s.Require().NoError(err)
	s.Equal(data, imported)

	balance, err := os.ReadFile(filepath.Join(s.townsDir, "a@x.com.txt"))
	s.Require().NoError(err)
	s.Equal("1000", string(balance))

	town, _ := s.registry.Get(s.ctx, id)
	s.Equal(model.PendingStatusApproved, town.Status)
}

func (s *RegistrySuite) TestApproveWithTargetOverride() {
	id, _ := s.submit("a@x.com", []byte("bytes"))

	_, err := s.registry.Approve(s.ctx, id, "b@x.com")
	s.Require().NoError(err)

	s.True(s.exists(filepath.Join(s.townsDir, "b@x.com.pb")))
	s.False(s.exists(filepath.Join(s.townsDir, "a@x.com.pb")))

	last := s.notifier.events[len(s.notifier.events)-1]
	s.Equal(model.PendingEventApproved, last.Kind)
	s.Equal("b@x.com", last.TargetEmail)
}

func (s *RegistrySuite) TestApproveRetriesBusyStatusWrite() {
	id, _ := s.submit("a@x.com", []byte("bytes"))
	s.busy.failures = 3

	outcome, err := s.registry.Approve(s.ctx, id, "")
	s.Require().NoError(err)
	s.Equal(OutcomeApproved, outcome)
	s.Equal(4, s.busy.calls)
	s.Equal([]time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond}, s.clock.Sleeps)
}

func (s *RegistrySuite) TestApproveReportsStaleStatusWhenRetriesExhaust() {
	id, _ := s.submit("a@x.com", []byte("bytes"))
	s.busy.failures = 100

	outcome, err := s.registry.Approve(s.ctx, id, "")
	s.Require().NoError(err)
	s.Equal(OutcomeApprovedStatusStale, outcome)
	s.Equal(5, s.busy.calls)
	s.Equal(4, s.clock.SleepCount())

	s.True(s.exists(filepath.Join(s.townsDir, "a@x.com.pb")), "import is kept")
	town, _ := s.registry.Get(s.ctx, id)
	s.Equal(model.PendingStatusPending, town.Status)
}

func (s *RegistrySuite) TestApproveImportFailureLeavesPending() {
	id, path := s.submit("a@x.com", []byte("bytes"))
	s.Require().NoError(os.Remove(path))

	_, err := s.registry.Approve(s.ctx, id, "")
	s.ErrorIs(err, model.ErrStorage)

	town, _ := s.registry.Get(s.ctx, id)
	s.Equal(model.PendingStatusPending, town.Status)
	s.Equal(0, s.busy.calls)
}

func (s *RegistrySuite) TestApproveUnknown() {
	_, err := s.registry.Approve(s.ctx, "nope", "")
	s.ErrorIs(err, model.ErrPendingTownNotFound)
}

// Decided records cannot transition again

func (s *RegistrySuite) TestDecidedTownIsFinal() {
	id, path := s.submit("a@x.com", []byte("bytes"))
	_, err := s.registry.Approve(s.ctx, id, "")
	s.Require().NoError(err)

	dest := filepath.Join(s.townsDir, "c@x.com.pb")
	_, err = s.registry.Approve(s.ctx, id, "c@x.com")
	s.ErrorIs(err, model.ErrNotPending)
	s.False(s.exists(dest))

	err = s.registry.Reject(s.ctx, id, "late")
	s.ErrorIs(err, model.ErrNotPending)
	s.True(s.exists(path), "staged file untouched")

	town, _ := s.registry.Get(s.ctx, id)
	s.Equal(model.PendingStatusApproved, town.Status)
	s.Empty(town.RejectionReason)
}

// Reject tests

func (s *RegistrySuite) TestRejectDeletesRowAndFile() {
	id, path := s.submit("a@x.com", []byte("bytes"))

	s.Require().NoError(s.registry.Reject(s.ctx, id, "corrupt save"))

	_, err := s.registry.Get(s.ctx, id)
	s.ErrorIs(err, model.ErrPendingTownNotFound)
	s.False(s.exists(path))

	last := s.notifier.events[len(s.notifier.events)-1]
	s.Equal(model.PendingEventRejected, last.Kind)
	s.Equal("corrupt save", last.Reason)
}

func (s *RegistrySuite) TestRejectWithMissingFileStillDeletesRow() {
	id, path := s.submit("a@x.com", []byte("bytes"))
	s.Require().NoError(os.Remove(path))

	s.Require().NoError(s.registry.Reject(s.ctx, id, ""))

	_, err := s.registry.Get(s.ctx, id)
	s.ErrorIs(err, model.ErrPendingTownNotFound)
}

// CleanupOld tests

func (s *RegistrySuite) TestCleanupRemovesOnlyOldDecided() {
	oldID, oldPath := s.submit("a@x.com", []byte("old"))
	_, err := s.registry.Approve(s.ctx, oldID, "")
	s.Require().NoError(err)

	waitingID, _ := s.submit("b@x.com", []byte("waiting"))

	s.clock.Advance(40 * 24 * time.Hour)
	freshID, _ := s.submit("c@x.com", []byte("fresh"))
	_, err = s.registry.Approve(s.ctx, freshID, "")
	s.Require().NoError(err)

	removed, err := s.registry.CleanupOld(s.ctx, 30)
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.registry.Get(s.ctx, oldID)
	s.ErrorIs(err, model.ErrPendingTownNotFound)
	s.False(s.exists(oldPath))

	_, err = s.registry.Get(s.ctx, waitingID)
	s.NoError(err)
	_, err = s.registry.Get(s.ctx, freshID)
	s.NoError(err)
}

func TestOutcomeString(t *testing.T) {
	if OutcomeApproved.String() != "approved" || OutcomeApprovedStatusStale.String() != "approved_status_stale" {
		t.Fatalf("unexpected outcome names")
	}
}
