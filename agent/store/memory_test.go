package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

func sampleCampaign(id string) statex.Campaign {
	at := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	return statex.Campaign{
		ID:            id,
		OwnerID:       "owner-1",
		Name:          "Clinic Clarity Sprint",
		Objective:     statex.ObjectiveAcquisition,
		CohortRef:     "Clinic Owner",
		DurationWeeks: 6,
		Status:        statex.CampaignPlanned,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func sampleMoves(campaignID string) []statex.Move {
	return []statex.Move{
		statex.NewMove("mv-2", campaignID, 2, statex.MovePlan{Name: "Proof posts", Channel: "content", DurationDays: 21, Checklist: []string{"draft"}}),
		statex.NewMove("mv-1", campaignID, 1, statex.MovePlan{Name: "Founder letters", Channel: "outbound", DurationDays: 14, Checklist: []string{"list", "write"}}),
	}
}

func TestMemoryCampaignRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.InsertCampaign(ctx, sampleCampaign("c-1")))
	require.ErrorIs(t, m.InsertCampaign(ctx, sampleCampaign("c-1")), contractx.ErrValidation)
	require.ErrorIs(t, m.InsertCampaign(ctx, sampleCampaign("")), contractx.ErrValidation)

	c, err := m.FetchCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, "Clinic Clarity Sprint", c.Name)

	c.Status = statex.CampaignActive
	require.NoError(t, m.UpdateCampaign(ctx, c))
	got, err := m.FetchCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, statex.CampaignActive, got.Status)

	_, err = m.FetchCampaign(ctx, "missing")
	require.ErrorIs(t, err, contractx.ErrNotFound)
	require.ErrorIs(t, m.UpdateCampaign(ctx, sampleCampaign("missing")), contractx.ErrNotFound)
}

func TestMemoryMovesOrderedAndCopied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertCampaign(ctx, sampleCampaign("c-1")))
	require.NoError(t, m.InsertMoves(ctx, sampleMoves("c-1")))

	moves, err := m.FetchMovesByCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.Equal(t, "mv-1", moves[0].ID)
	require.Equal(t, "mv-2", moves[1].ID)

	moves[0].Checklist[0].Completed = true
	again, err := m.FetchMovesByCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.False(t, again[0].Checklist[0].Completed, "stored move must not alias caller slices")

	again[0].Status = statex.MoveQueued
	require.NoError(t, m.UpdateMove(ctx, again[0]))
	updated, err := m.FetchMovesByCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, statex.MoveQueued, updated[0].Status)

	require.ErrorIs(t, m.InsertMoves(ctx, sampleMoves("c-1")), contractx.ErrValidation)
}

func TestMemoryDeletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertCampaign(ctx, sampleCampaign("c-1")))
	require.NoError(t, m.InsertMoves(ctx, sampleMoves("c-1")))

	require.NoError(t, m.DeleteMove(ctx, "mv-2"))
	require.ErrorIs(t, m.DeleteMove(ctx, "mv-2"), contractx.ErrNotFound)

	require.NoError(t, m.DeleteCampaign(ctx, "c-1"))
	moves, err := m.FetchMovesByCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Empty(t, moves)
	require.ErrorIs(t, m.DeleteCampaign(ctx, "c-1"), contractx.ErrNotFound)
}

func TestMemoryICPsAndInferenceLogs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	icps := []statex.DerivedICP{{Name: "Clinic Owner", Priority: statex.PriorityPrimary}}
	require.NoError(t, m.InsertICPs(ctx, "run-1", icps))
	require.Equal(t, icps, m.ICPs("run-1"))
	require.Empty(t, m.ICPs("run-2"))

	logs := []statex.InferenceLog{{RunID: "run-1", Agent: "icp_builder", Attempt: 1}}
	require.NoError(t, m.InsertInferenceLogs(ctx, logs))
	require.NoError(t, m.InsertInferenceLogs(ctx, logs))
	require.Len(t, m.InferenceLogs(), 2)
}

func TestMemoryWithCampaignRollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertCampaign(ctx, sampleCampaign("c-1")))
	require.NoError(t, m.InsertMoves(ctx, sampleMoves("c-1")))

	errStop := errors.New("stop")
	err := m.WithCampaign(ctx, "c-1", func(ctx context.Context, tx contractx.PersistenceAdapter) error {
		c, err := tx.FetchCampaign(ctx, "c-1")
		require.NoError(t, err)
		c.Status = statex.CampaignActive
		require.NoError(t, tx.UpdateCampaign(ctx, c))
		require.NoError(t, tx.DeleteMove(ctx, "mv-1"))
		return errStop
	})
	require.ErrorIs(t, err, errStop)

	c, err := m.FetchCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, statex.CampaignPlanned, c.Status)
	moves, err := m.FetchMovesByCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, moves, 2)

	err = m.WithCampaign(ctx, "missing", func(context.Context, contractx.PersistenceAdapter) error { return nil })
	require.ErrorIs(t, err, contractx.ErrNotFound)
}
