package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
	storex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/store"
)

var errDenied = errors.New("payment required")

type denyGate struct{ calls int32 }

func (g *denyGate) CheckActivation(context.Context, string, string) error {
	atomic.AddInt32(&g.calls, 1)
	return errDenied
}

type fixture struct {
	mgr   *Manager
	store *storex.Memory
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	var seq int64
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mem := storex.NewMemory()
	base := []Option{
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&seq, 1)) }),
	}
	mgr, err := NewManager(mem, append(base, opts...)...)
	require.NoError(t, err)
	return fixture{mgr: mgr, store: mem}
}

func (f fixture) campaign(t *testing.T, moves int) (statex.Campaign, []statex.Move) {
	t.Helper()
	plans := make([]statex.MovePlan, 0, moves)
	for i := 0; i < moves; i++ {
		plans = append(plans, statex.MovePlan{
			Name:         fmt.Sprintf("Move %d", i+1),
			Channel:      "linkedin",
			DurationDays: 7,
			Checklist:    []string{"draft post", "publish"},
		})
	}
	c, ms, err := f.mgr.CreateCampaign(context.Background(), NewCampaign{
		OwnerID: "owner-1",
		Plan:    statex.CampaignPlan{Name: "Clinic Launch", Objective: statex.ObjectiveAcquisition, DurationWeeks: 6},
		Moves:   plans,
	})
	require.NoError(t, err)
	return c, ms
}

func (f fixture) activeCampaign(t *testing.T, moves int) (statex.Campaign, []statex.Move) {
	t.Helper()
	ctx := context.Background()
	c, ms := f.campaign(t, moves)
	c, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignActive)
	require.NoError(t, err)
	for _, mv := range ms {
		_, err := f.mgr.QueueMove(ctx, c.ID, mv.ID)
		require.NoError(t, err)
	}
	return c, ms
}

func TestCampaignLegalPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.campaign(t, 1)
	assert.Equal(t, statex.CampaignPlanned, c.Status)

	for _, to := range []statex.CampaignStatus{
		statex.CampaignActive,
		statex.CampaignPaused,
		statex.CampaignActive,
		statex.CampaignWrapup,
		statex.CampaignArchived,
	} {
		got, err := f.mgr.TransitionCampaign(ctx, c.ID, to)
		require.NoError(t, err, "-> %s", to)
		assert.Equal(t, to, got.Status)
	}

	stored, err := f.store.FetchCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, statex.CampaignArchived, stored.Status)
	require.NotNil(t, stored.ActivatedAt)
}

func TestCampaignEarlyTermination(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c, _ := f.activeCampaign(t, 1)

	got, err := f.mgr.TransitionCampaign(context.Background(), c.ID, statex.CampaignArchived)
	require.NoError(t, err)
	assert.Equal(t, statex.CampaignArchived, got.Status)
}

func TestArchivedIsTerminal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.activeCampaign(t, 1)
	_, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignArchived)
	require.NoError(t, err)

	for _, to := range []statex.CampaignStatus{
		statex.CampaignPlanned,
		statex.CampaignActive,
		statex.CampaignPaused,
		statex.CampaignWrapup,
		statex.CampaignArchived,
	} {
		_, err := f.mgr.TransitionCampaign(ctx, c.ID, to)
		require.Error(t, err, "archived -> %s", to)
		assert.ErrorIs(t, err, contractx.ErrInvalidTransition)

		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, string(statex.CampaignArchived), te.From)
	}
}

func TestIllegalCampaignTransitionsAreRejectedNotCoerced(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.campaign(t, 1)

	_, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignWrapup)
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)
	_, err = f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignStatus("done"))
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)

	stored, err := f.store.FetchCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, statex.CampaignPlanned, stored.Status)
}

func TestActivationRequiresMoves(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c, _ := f.campaign(t, 0)

	_, err := f.mgr.TransitionCampaign(context.Background(), c.ID, statex.CampaignActive)
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)
}

func TestBillingGateBlocksActivation(t *testing.T) {
	t.Parallel()
	gate := &denyGate{}
	f := newFixture(t, WithGate(gate))
	ctx := context.Background()
	c, _ := f.campaign(t, 2)

	_, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignActive)
	require.ErrorIs(t, err, errDenied)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gate.calls))

	stored, err := f.store.FetchCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, statex.CampaignPlanned, stored.Status)
	assert.Nil(t, stored.ActivatedAt)
}

func TestStartingSecondMoveWithoutIntentIsRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 2)

	_, err := f.mgr.ActivateMove(ctx, c.ID, ms[0].ID, ActivateOptions{})
	require.NoError(t, err)

	_, err = f.mgr.ActivateMove(ctx, c.ID, ms[1].ID, ActivateOptions{})
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)

	moves, err := f.mgr.Moves(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, statex.MoveActive, moves[0].Status)
	assert.Equal(t, statex.MoveQueued, moves[1].Status, "no silent state change")
}

func TestCompletePreviousHandsOverActiveMove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 2)

	_, err := f.mgr.ActivateMove(ctx, c.ID, ms[0].ID, ActivateOptions{})
	require.NoError(t, err)
	got, err := f.mgr.ActivateMove(ctx, c.ID, ms[1].ID, ActivateOptions{CompletePrevious: true})
	require.NoError(t, err)
	assert.Equal(t, statex.MoveActive, got.Status)
	require.NotNil(t, got.StartedAt)

	moves, err := f.mgr.Moves(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, statex.MoveCompleted, moves[0].Status)
	require.NotNil(t, moves[0].CompletedAt)
	assert.Equal(t, statex.MoveActive, moves[1].Status)
}

func TestActivateMoveRequiresActiveCampaign(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.campaign(t, 1)
	_, err := f.mgr.QueueMove(ctx, c.ID, ms[0].ID)
	require.NoError(t, err)

	_, err = f.mgr.ActivateMove(ctx, c.ID, ms[0].ID, ActivateOptions{})
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)
}

func TestMoveMustBeQueuedBeforeActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.campaign(t, 1)
	_, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignActive)
	require.NoError(t, err)

	_, err = f.mgr.ActivateMove(ctx, c.ID, ms[0].ID, ActivateOptions{})
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)

	_, err = f.mgr.CompleteMove(ctx, c.ID, ms[0].ID)
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)
}

func TestAtMostOneActiveMoveUnderConcurrency(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 6)

	var wg sync.WaitGroup
	for _, mv := range ms {
		mv := mv
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.mgr.ActivateMove(ctx, c.ID, mv.ID, ActivateOptions{CompletePrevious: true})
		}()
	}
	wg.Wait()

	moves, err := f.mgr.Moves(ctx, c.ID)
	require.NoError(t, err)
	active := 0
	for _, mv := range moves {
		if mv.Status == statex.MoveActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestChecklistToggle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 1)

	got, err := f.mgr.ToggleChecklistItem(ctx, c.ID, ms[0].ID, 1)
	require.NoError(t, err)
	assert.True(t, got.Checklist[1].Completed)
	assert.False(t, got.Checklist[0].Completed)

	got, err = f.mgr.ToggleChecklistItem(ctx, c.ID, ms[0].ID, 1)
	require.NoError(t, err)
	assert.False(t, got.Checklist[1].Completed)

	_, err = f.mgr.ToggleChecklistItem(ctx, c.ID, ms[0].ID, 5)
	require.ErrorIs(t, err, contractx.ErrValidation)
}

func TestRemoveMoveRules(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 2)

	_, err := f.mgr.ActivateMove(ctx, c.ID, ms[0].ID, ActivateOptions{})
	require.NoError(t, err)
	require.ErrorIs(t, f.mgr.RemoveMove(ctx, c.ID, ms[0].ID), contractx.ErrInvalidTransition)

	require.NoError(t, f.mgr.RemoveMove(ctx, c.ID, ms[1].ID))

	_, err = f.mgr.CompleteMove(ctx, c.ID, ms[0].ID)
	require.NoError(t, err)
	require.ErrorIs(t, f.mgr.RemoveMove(ctx, c.ID, ms[0].ID), contractx.ErrInvalidTransition, "last move of an active campaign")

	require.ErrorIs(t, f.mgr.RemoveMove(ctx, c.ID, "missing"), contractx.ErrNotFound)
}

func TestDeleteCampaign(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.activeCampaign(t, 2)

	require.NoError(t, f.mgr.DeleteCampaign(ctx, c.ID))
	_, err := f.mgr.Campaign(ctx, c.ID)
	require.ErrorIs(t, err, contractx.ErrNotFound)
	moves, err := f.store.FetchMovesByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestProgressIsDerivedOnRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 4)

	p, err := f.mgr.Progress(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.CompletedMoves)
	assert.Equal(t, 4, p.TotalMoves)
	assert.Equal(t, 1, p.WeekNumber)
	assert.Equal(t, 4, p.TotalWeeks)
	assert.Nil(t, p.CurrentMove)

	_, err = f.mgr.ActivateMove(ctx, c.ID, ms[0].ID, ActivateOptions{})
	require.NoError(t, err)
	_, err = f.mgr.ActivateMove(ctx, c.ID, ms[1].ID, ActivateOptions{CompletePrevious: true})
	require.NoError(t, err)

	p, err = f.mgr.Progress(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CompletedMoves)
	assert.InDelta(t, 0.25, p.Ratio, 1e-9)
	require.NotNil(t, p.CurrentMove)
	assert.Equal(t, ms[1].ID, p.CurrentMove.ID)
}

func TestComputeProgressWeekNumber(t *testing.T) {
	t.Parallel()
	activated := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	c := statex.Campaign{ID: "c1", Status: statex.CampaignActive, ActivatedAt: &activated, DurationWeeks: 6}
	moves := []statex.Move{{DurationDays: 7}, {DurationDays: 10}}

	cases := []struct {
		now  time.Time
		want int
	}{
		{now: activated, want: 1},
		{now: activated.Add(6 * 24 * time.Hour), want: 1},
		{now: activated.Add(8 * 24 * time.Hour), want: 2},
		{now: activated.Add(15 * 24 * time.Hour), want: 3},
		{now: activated.Add(90 * 24 * time.Hour), want: 3},
		{now: activated.Add(-time.Hour), want: 1},
	}
	for _, tc := range cases {
		p := ComputeProgress(c, moves, tc.now)
		assert.Equal(t, tc.want, p.WeekNumber, "now=%s", tc.now)
		assert.Equal(t, 3, p.TotalWeeks)
	}

	planned := statex.Campaign{ID: "c2", Status: statex.CampaignPlanned, DurationWeeks: 6}
	p := ComputeProgress(planned, nil, activated)
	assert.Equal(t, 0, p.WeekNumber)
	assert.Equal(t, 6, p.TotalWeeks)
	assert.Zero(t, p.Ratio)
}

func TestPausedCampaignKeepsItsLastMove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 1)

	_, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignPaused)
	require.NoError(t, err)
	require.ErrorIs(t, f.mgr.RemoveMove(ctx, c.ID, ms[0].ID), contractx.ErrInvalidTransition)

	resumed, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignActive)
	require.NoError(t, err)
	assert.Equal(t, statex.CampaignActive, resumed.Status)
	moves, err := f.mgr.Moves(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, moves, 1)
}

func TestResumeRequiresMoves(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 1)

	_, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignPaused)
	require.NoError(t, err)
	// Moves deleted behind the manager's back.
	require.NoError(t, f.store.DeleteMove(ctx, ms[0].ID))

	_, err = f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignActive)
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)

	stored, err := f.store.FetchCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, statex.CampaignPaused, stored.Status)
}

func TestPlannedCampaignMayDropAllMoves(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.campaign(t, 1)

	require.NoError(t, f.mgr.RemoveMove(ctx, c.ID, ms[0].ID))
	_, err := f.mgr.TransitionCampaign(ctx, c.ID, statex.CampaignActive)
	require.ErrorIs(t, err, contractx.ErrInvalidTransition)
}

// Two managers over one store stand in for two CLI processes.
func TestAtMostOneActiveMoveAcrossManagers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 6)

	other, err := NewManager(f.store)
	require.NoError(t, err)
	managers := []*Manager{f.mgr, other}

	var (
		wg        sync.WaitGroup
		succeeded int32
	)
	for i, mv := range ms {
		mgr := managers[i%len(managers)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.ActivateMove(ctx, c.ID, mv.ID, ActivateOptions{}); err == nil {
				atomic.AddInt32(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&succeeded))
	moves, err := f.mgr.Moves(ctx, c.ID)
	require.NoError(t, err)
	active := 0
	for _, mv := range moves {
		if mv.Status == statex.MoveActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

var errWriteFailed = errors.New("write failed")

// failActivation fails every write that activates a move.
type failActivation struct {
	*storex.Memory
}

func (s failActivation) UpdateMove(ctx context.Context, mv statex.Move) error {
	if mv.Status == statex.MoveActive {
		return errWriteFailed
	}
	return s.Memory.UpdateMove(ctx, mv)
}

func (s failActivation) WithCampaign(ctx context.Context, campaignID string, fn func(ctx context.Context, tx contractx.PersistenceAdapter) error) error {
	return s.Memory.WithCampaign(ctx, campaignID, func(ctx context.Context, _ contractx.PersistenceAdapter) error {
		return fn(ctx, s)
	})
}

func TestCompletePreviousIsUndoneWhenActivationFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory()
	f := newFixture(t)
	c, ms := f.activeCampaign(t, 2)
	_, err := f.mgr.ActivateMove(ctx, c.ID, ms[0].ID, ActivateOptions{})
	require.NoError(t, err)

	// Copy the fixture's campaign into a store whose activation writes fail.
	stored, err := f.store.FetchCampaign(ctx, c.ID)
	require.NoError(t, err)
	moves, err := f.store.FetchMovesByCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, mem.InsertCampaign(ctx, stored))
	require.NoError(t, mem.InsertMoves(ctx, moves))

	mgr, err := NewManager(failActivation{Memory: mem})
	require.NoError(t, err)
	_, err = mgr.ActivateMove(ctx, c.ID, ms[1].ID, ActivateOptions{CompletePrevious: true})
	require.ErrorIs(t, err, errWriteFailed)

	after, err := mem.FetchMovesByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, statex.MoveActive, after[0].Status, "previous move stays active")
	assert.Nil(t, after[0].CompletedAt)
	assert.Equal(t, statex.MoveQueued, after[1].Status)
}

func TestCampaignLocksAreReleased(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c, ms := f.activeCampaign(t, 2)

	_, err := f.mgr.ActivateMove(ctx, c.ID, ms[0].ID, ActivateOptions{})
	require.NoError(t, err)
	require.NoError(t, f.mgr.DeleteCampaign(ctx, c.ID))

	f.mgr.mu.Lock()
	defer f.mgr.mu.Unlock()
	assert.Empty(t, f.mgr.locks)
}
