package sweeper_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixcore/internal/lifecycle"
	"pixcore/internal/lifecycle/memstore"
	"pixcore/internal/lifecycle/sweeper"
	dErrors "pixcore/pkg/domain-errors"
)

const (
	statePending lifecycle.State = "PENDING"
	stateWaiting lifecycle.State = "WAITING"
	stateExpired lifecycle.State = "EXPIRED"
)

type ticket struct {
	lifecycle.Meta
}

func (e *ticket) Clone() *ticket {
	clone := *e
	return &clone
}

type recordingExecutor struct {
	mu    sync.Mutex
	fired []string
	errs  map[string]error
}

func (e *recordingExecutor) ExecuteExpire(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fired = append(e.fired, id)
	if err, ok := e.errs[id]; ok {
		return err
	}
	return nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// ticketStore wires the repo clock to a settable instant so seeded entities
// get the UpdatedAt this test needs.
type ticketStore struct {
	*memstore.Store[*ticket]
	at time.Time
}

func newTicketStore() *ticketStore {
	ts := &ticketStore{at: testNow}
	ts.Store = memstore.New("ticket", memstore.WithClock[*ticket](func() time.Time { return ts.at }))
	return ts
}

func (ts *ticketStore) seed(t *testing.T, id string, state lifecycle.State, age time.Duration) {
	t.Helper()
	ts.at = testNow.Add(-age)
	_, err := ts.Create(context.Background(), &ticket{Meta: lifecycle.Meta{ID: id, State: state}})
	require.NoError(t, err)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("expires all and only entities past cutoff", func(t *testing.T) {
		repo := newTicketStore()
		repo.seed(t, "old-1", statePending, 2*time.Hour)
		repo.seed(t, "old-2", statePending, 90*time.Minute)
		repo.seed(t, "fresh", statePending, 10*time.Minute)
		repo.seed(t, "done", stateExpired, 3*time.Hour)

		exec := &recordingExecutor{}
		s := sweeper.New("ticket", exec, sweeper.ListerFor[*ticket](repo),
			[]sweeper.Rule{{States: []lifecycle.State{statePending}, Cutoff: time.Hour}},
			sweeper.WithClock(func() time.Time { return testNow }),
		)

		report := s.Sweep(ctx)
		assert.Equal(t, []string{"old-1", "old-2"}, report.Expired)
		assert.Empty(t, report.Skipped)
		assert.Empty(t, report.Failures)
	})

	t.Run("rules apply their own cutoffs", func(t *testing.T) {
		repo := newTicketStore()
		repo.seed(t, "pending-old", statePending, 2*time.Hour)
		repo.seed(t, "waiting-old", stateWaiting, 2*time.Hour)
		repo.seed(t, "waiting-older", stateWaiting, 26*time.Hour)

		exec := &recordingExecutor{}
		s := sweeper.New("ticket", exec, sweeper.ListerFor[*ticket](repo),
			[]sweeper.Rule{
				{States: []lifecycle.State{statePending}, Cutoff: time.Hour},
				{States: []lifecycle.State{stateWaiting}, Cutoff: 24 * time.Hour},
			},
			sweeper.WithClock(func() time.Time { return testNow }),
		)

		report := s.Sweep(ctx)
		assert.Equal(t, []string{"pending-old", "waiting-older"}, report.Expired)
	})

	t.Run("per-entity failures do not abort the sweep", func(t *testing.T) {
		repo := newTicketStore()
		repo.seed(t, "ok-1", statePending, 2*time.Hour)
		repo.seed(t, "bad", statePending, 2*time.Hour)
		repo.seed(t, "ok-2", statePending, 2*time.Hour)

		exec := &recordingExecutor{errs: map[string]error{
			"bad": dErrors.New(dErrors.CodeGatewayTransient, "registry unreachable"),
		}}
		s := sweeper.New("ticket", exec, sweeper.ListerFor[*ticket](repo),
			[]sweeper.Rule{{States: []lifecycle.State{statePending}, Cutoff: time.Hour}},
			sweeper.WithClock(func() time.Time { return testNow }),
		)

		report := s.Sweep(ctx)
		assert.Equal(t, []string{"ok-1", "ok-2"}, report.Expired)
		require.Contains(t, report.Failures, "bad")
	})

	t.Run("raced entities are skipped, not failed", func(t *testing.T) {
		repo := newTicketStore()
		repo.seed(t, "raced", statePending, 2*time.Hour)

		exec := &recordingExecutor{errs: map[string]error{
			"raced": dErrors.New(dErrors.CodeInvalidState, "already settled"),
		}}
		s := sweeper.New("ticket", exec, sweeper.ListerFor[*ticket](repo),
			[]sweeper.Rule{{States: []lifecycle.State{statePending}, Cutoff: time.Hour}},
			sweeper.WithClock(func() time.Time { return testNow }),
		)

		report := s.Sweep(ctx)
		assert.Equal(t, []string{"raced"}, report.Skipped)
		assert.Empty(t, report.Failures)
	})

	t.Run("overlapping rules fire each entity once", func(t *testing.T) {
		repo := newTicketStore()
		repo.seed(t, "old-1", statePending, 2*time.Hour)

		exec := &recordingExecutor{}
		s := sweeper.New("ticket", exec, sweeper.ListerFor[*ticket](repo),
			[]sweeper.Rule{
				{States: []lifecycle.State{statePending}, Cutoff: time.Hour},
				{States: []lifecycle.State{statePending, stateWaiting}, Cutoff: 30 * time.Minute},
			},
			sweeper.WithClock(func() time.Time { return testNow }),
		)

		report := s.Sweep(ctx)
		assert.Equal(t, []string{"old-1"}, report.Expired)
		assert.Len(t, exec.fired, 1)
	})
}
