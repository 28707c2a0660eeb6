package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

// Gate is the payment hook consulted before a campaign leaves planned.
type Gate interface {
	CheckActivation(ctx context.Context, ownerID, campaignID string) error
}

type allowAllGate struct{}

func (allowAllGate) CheckActivation(context.Context, string, string) error { return nil }

type ActivateOptions struct {
	// CompletePrevious completes the currently active move before activating the new one.
	CompletePrevious bool
}

// Manager applies campaign and move transitions. Every mutation of one campaign, including its
// moves, runs under that campaign's lock: read, validate, write. When the store is a
// contract.CampaignLocker the same sequence also runs inside the store's campaign transaction,
// which serializes writers in other processes.
type Manager struct {
	store contractx.PersistenceAdapter
	gate  Gate
	now   func() time.Time
	newID func() string

	mu    sync.Mutex
	locks map[string]*campaignLock
}

type campaignLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Manager)

func WithGate(g Gate) Option {
	return func(m *Manager) {
		if g != nil {
			m.gate = g
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

func NewManager(store contractx.PersistenceAdapter, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: persistence adapter is required", contractx.ErrValidation)
	}
	m := &Manager{
		store: store,
		gate:  allowAllGate{},
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		locks: make(map[string]*campaignLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// lock takes the in-process lock of a campaign. Entries are dropped once nobody holds or
// waits on them.
func (m *Manager) lock(campaignID string) func() {
	m.mu.Lock()
	l, ok := m.locks[campaignID]
	if !ok {
		l = &campaignLock{}
		m.locks[campaignID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, campaignID)
		}
		m.mu.Unlock()
	}
}

// withCampaign runs fn under the campaign's lock, inside the store's campaign transaction when
// the store offers one.
func (m *Manager) withCampaign(ctx context.Context, campaignID string, fn func(ctx context.Context, st contractx.PersistenceAdapter) error) error {
	unlock := m.lock(campaignID)
	defer unlock()

	if locker, ok := m.store.(contractx.CampaignLocker); ok {
		return locker.WithCampaign(ctx, campaignID, fn)
	}
	return fn(ctx, m.store)
}

// NewCampaign is a manually created campaign with its initial moves.
type NewCampaign struct {
	OwnerID string
	Plan    statex.CampaignPlan
	Moves   []statex.MovePlan
}

func (m *Manager) CreateCampaign(ctx context.Context, in NewCampaign) (statex.Campaign, []statex.Move, error) {
	name := strings.TrimSpace(in.Plan.Name)
	if name == "" {
		return statex.Campaign{}, nil, fmt.Errorf("%w: campaign name is required", contractx.ErrValidation)
	}
	if in.Plan.Objective != "" && !in.Plan.Objective.Valid() {
		return statex.Campaign{}, nil, fmt.Errorf("%w: objective %q is invalid", contractx.ErrValidation, in.Plan.Objective)
	}

	now := m.now()
	campaign := statex.Campaign{
		ID:            m.newID(),
		OwnerID:       in.OwnerID,
		Name:          name,
		Objective:     in.Plan.Objective,
		CohortRef:     strings.TrimSpace(in.Plan.CohortICP),
		Summary:       strings.TrimSpace(in.Plan.Summary),
		DurationWeeks: in.Plan.DurationWeeks,
		Status:        statex.CampaignPlanned,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	moves := make([]statex.Move, 0, len(in.Moves))
	for i, plan := range in.Moves {
		moves = append(moves, statex.NewMove(m.newID(), campaign.ID, i+1, plan))
	}

	if err := m.store.InsertCampaign(ctx, campaign); err != nil {
		return statex.Campaign{}, nil, fmt.Errorf("insert campaign: %w", err)
	}
	if len(moves) > 0 {
		if err := m.store.InsertMoves(ctx, moves); err != nil {
			return statex.Campaign{}, nil, fmt.Errorf("insert moves: %w", err)
		}
	}
	log.Info().Str("campaign_id", campaign.ID).Int("moves", len(moves)).Msg("campaign created")
	return campaign, moves, nil
}

// DeleteCampaign removes a campaign and its moves regardless of status.
func (m *Manager) DeleteCampaign(ctx context.Context, campaignID string) error {
	err := m.withCampaign(ctx, campaignID, func(ctx context.Context, st contractx.PersistenceAdapter) error {
		return st.DeleteCampaign(ctx, campaignID)
	})
	if err != nil {
		return err
	}
	log.Info().Str("campaign_id", campaignID).Msg("campaign deleted")
	return nil
}

func (m *Manager) Campaign(ctx context.Context, campaignID string) (statex.Campaign, error) {
	return m.store.FetchCampaign(ctx, campaignID)
}

func (m *Manager) Moves(ctx context.Context, campaignID string) ([]statex.Move, error) {
	if _, err := m.store.FetchCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return m.store.FetchMovesByCampaign(ctx, campaignID)
}

// TransitionCampaign moves a campaign to the target status or returns a *TransitionError.
// Entering active needs at least one move; leaving planned also needs a passing billing gate.
func (m *Manager) TransitionCampaign(ctx context.Context, campaignID string, to statex.CampaignStatus) (statex.Campaign, error) {
	var (
		out  statex.Campaign
		from statex.CampaignStatus
	)
	err := m.withCampaign(ctx, campaignID, func(ctx context.Context, st contractx.PersistenceAdapter) error {
		c, err := st.FetchCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if !to.Valid() {
			return campaignTransitionError(c, to, "unknown status")
		}
		if !CanTransitionCampaign(c.Status, to) {
			return campaignTransitionError(c, to, "")
		}

		if to == statex.CampaignActive {
			moves, err := st.FetchMovesByCampaign(ctx, c.ID)
			if err != nil {
				return err
			}
			if len(moves) == 0 {
				return campaignTransitionError(c, to, "campaign has no moves")
			}
		}
		if c.Status == statex.CampaignPlanned && to == statex.CampaignActive {
			if err := m.gate.CheckActivation(ctx, c.OwnerID, c.ID); err != nil {
				log.Warn().Err(err).Str("campaign_id", c.ID).Msg("activation blocked by billing gate")
				return fmt.Errorf("campaign %s activation blocked: %w", c.ID, err)
			}
		}

		now := m.now()
		from = c.Status
		c.Status = to
		c.UpdatedAt = now
		if to == statex.CampaignActive && c.ActivatedAt == nil {
			activated := now
			c.ActivatedAt = &activated
		}
		if err := st.UpdateCampaign(ctx, c); err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return statex.Campaign{}, err
	}

	log.Info().
		Str("campaign_id", out.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("campaign transitioned")
	return out, nil
}

// QueueMove moves a draft move to queued.
func (m *Manager) QueueMove(ctx context.Context, campaignID, moveID string) (statex.Move, error) {
	var out statex.Move
	err := m.withCampaign(ctx, campaignID, func(ctx context.Context, st contractx.PersistenceAdapter) error {
		c, moves, err := load(ctx, st, campaignID)
		if err != nil {
			return err
		}
		if c.Status == statex.CampaignArchived {
			return moveTransitionError(statex.Move{ID: moveID}, statex.MoveQueued, "campaign is archived")
		}
		mv, err := findMove(moves, moveID)
		if err != nil {
			return err
		}
		out, err = m.applyMove(ctx, st, mv, statex.MoveQueued)
		return err
	})
	if err != nil {
		return statex.Move{}, err
	}
	return out, nil
}

// ActivateMove starts a queued move. The campaign must be active. When another move is already
// active the call fails unless opts.CompletePrevious is set, in which case that move is
// completed in the same store transaction.
func (m *Manager) ActivateMove(ctx context.Context, campaignID, moveID string, opts ActivateOptions) (statex.Move, error) {
	var out statex.Move
	err := m.withCampaign(ctx, campaignID, func(ctx context.Context, st contractx.PersistenceAdapter) error {
		c, moves, err := load(ctx, st, campaignID)
		if err != nil {
			return err
		}
		mv, err := findMove(moves, moveID)
		if err != nil {
			return err
		}
		if c.Status != statex.CampaignActive {
			return moveTransitionError(mv, statex.MoveActive, fmt.Sprintf("campaign is %s", c.Status))
		}
		if !CanTransitionMove(mv.Status, statex.MoveActive) {
			return moveTransitionError(mv, statex.MoveActive, "")
		}

		for _, other := range moves {
			if other.ID == mv.ID || other.Status != statex.MoveActive {
				continue
			}
			if !opts.CompletePrevious {
				return moveTransitionError(mv, statex.MoveActive, fmt.Sprintf("move %s is already active", other.ID))
			}
			if _, err := m.applyMove(ctx, st, other, statex.MoveCompleted); err != nil {
				return fmt.Errorf("complete previous move %s: %w", other.ID, err)
			}
		}
		out, err = m.applyMove(ctx, st, mv, statex.MoveActive)
		return err
	})
	if err != nil {
		return statex.Move{}, err
	}
	return out, nil
}

func (m *Manager) CompleteMove(ctx context.Context, campaignID, moveID string) (statex.Move, error) {
	var out statex.Move
	err := m.withCampaign(ctx, campaignID, func(ctx context.Context, st contractx.PersistenceAdapter) error {
		_, moves, err := load(ctx, st, campaignID)
		if err != nil {
			return err
		}
		mv, err := findMove(moves, moveID)
		if err != nil {
			return err
		}
		out, err = m.applyMove(ctx, st, mv, statex.MoveCompleted)
		return err
	})
	if err != nil {
		return statex.Move{}, err
	}
	return out, nil
}

// ToggleChecklistItem flips one checklist item. Completed moves are frozen.
func (m *Manager) ToggleChecklistItem(ctx context.Context, campaignID, moveID string, index int) (statex.Move, error) {
	var out statex.Move
	err := m.withCampaign(ctx, campaignID, func(ctx context.Context, st contractx.PersistenceAdapter) error {
		_, moves, err := load(ctx, st, campaignID)
		if err != nil {
			return err
		}
		mv, err := findMove(moves, moveID)
		if err != nil {
			return err
		}
		if mv.Status == statex.MoveCompleted {
			return moveTransitionError(mv, mv.Status, "checklist of a completed move is frozen")
		}
		if index < 0 || index >= len(mv.Checklist) {
			return fmt.Errorf("%w: checklist index %d out of range", contractx.ErrValidation, index)
		}
		mv.Checklist[index].Completed = !mv.Checklist[index].Completed
		if err := st.UpdateMove(ctx, mv); err != nil {
			return fmt.Errorf("update move: %w", err)
		}
		out = mv
		return nil
	})
	if err != nil {
		return statex.Move{}, err
	}
	return out, nil
}

// RemoveMove deletes a move that is not active. Once a campaign has left planned it keeps at
// least one move.
func (m *Manager) RemoveMove(ctx context.Context, campaignID, moveID string) error {
	err := m.withCampaign(ctx, campaignID, func(ctx context.Context, st contractx.PersistenceAdapter) error {
		c, moves, err := load(ctx, st, campaignID)
		if err != nil {
			return err
		}
		mv, err := findMove(moves, moveID)
		if err != nil {
			return err
		}
		if mv.Status == statex.MoveActive {
			return &TransitionError{Entity: "move", ID: mv.ID, From: string(mv.Status), To: "removed", Reason: "active move cannot be removed"}
		}
		if c.Status != statex.CampaignPlanned && len(moves) == 1 {
			return &TransitionError{Entity: "move", ID: mv.ID, From: string(mv.Status), To: "removed",
				Reason: fmt.Sprintf("last move of a %s campaign", c.Status)}
		}
		if err := st.DeleteMove(ctx, mv.ID); err != nil {
			return fmt.Errorf("delete move: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Str("campaign_id", campaignID).Str("move_id", moveID).Msg("move removed")
	return nil
}

func load(ctx context.Context, st contractx.PersistenceAdapter, campaignID string) (statex.Campaign, []statex.Move, error) {
	c, err := st.FetchCampaign(ctx, campaignID)
	if err != nil {
		return statex.Campaign{}, nil, err
	}
	moves, err := st.FetchMovesByCampaign(ctx, campaignID)
	if err != nil {
		return statex.Campaign{}, nil, err
	}
	return c, moves, nil
}

func (m *Manager) applyMove(ctx context.Context, st contractx.PersistenceAdapter, mv statex.Move, to statex.MoveStatus) (statex.Move, error) {
	if !CanTransitionMove(mv.Status, to) {
		return statex.Move{}, moveTransitionError(mv, to, "")
	}
	now := m.now()
	from := mv.Status
	mv.Status = to
	switch to {
	case statex.MoveActive:
		mv.StartedAt = &now
	case statex.MoveCompleted:
		mv.CompletedAt = &now
	}
	if err := st.UpdateMove(ctx, mv); err != nil {
		return statex.Move{}, fmt.Errorf("update move: %w", err)
	}
	log.Info().
		Str("campaign_id", mv.CampaignID).
		Str("move_id", mv.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("move transitioned")
	return mv, nil
}

func findMove(moves []statex.Move, moveID string) (statex.Move, error) {
	for _, mv := range moves {
		if mv.ID == moveID {
			return mv, nil
		}
	}
	return statex.Move{}, fmt.Errorf("%w: move %s", contractx.ErrNotFound, moveID)
}

// IsInvalidTransition reports whether err is a rejected lifecycle transition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, contractx.ErrInvalidTransition)
}
