package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

// Memory is an in-process persistence adapter. Values are copied on the way in and out.
type Memory struct {
	// txMu serializes WithCampaign callers.
	txMu sync.Mutex

	mu        sync.RWMutex
	campaigns map[string]statex.Campaign
	moves     map[string]statex.Move
	icps      map[string][]statex.DerivedICP
	logs      []statex.InferenceLog
}

var (
	_ contractx.PersistenceAdapter = (*Memory)(nil)
	_ contractx.CampaignLocker     = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		campaigns: make(map[string]statex.Campaign),
		moves:     make(map[string]statex.Move),
		icps:      make(map[string][]statex.DerivedICP),
	}
}

func (m *Memory) InsertCampaign(ctx context.Context, c statex.Campaign) error {
	if c.ID == "" {
		return fmt.Errorf("%w: campaign id is required", contractx.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.campaigns[c.ID]; exists {
		return fmt.Errorf("%w: campaign %s already exists", contractx.ErrValidation, c.ID)
	}
	m.campaigns[c.ID] = c
	return nil
}

func (m *Memory) UpdateCampaign(ctx context.Context, c statex.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.campaigns[c.ID]; !exists {
		return fmt.Errorf("%w: campaign %s", contractx.ErrNotFound, c.ID)
	}
	m.campaigns[c.ID] = c
	return nil
}

func (m *Memory) FetchCampaign(ctx context.Context, id string) (statex.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return statex.Campaign{}, fmt.Errorf("%w: campaign %s", contractx.ErrNotFound, id)
	}
	return c, nil
}

// DeleteCampaign removes the campaign and all of its moves.
func (m *Memory) DeleteCampaign(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return fmt.Errorf("%w: campaign %s", contractx.ErrNotFound, id)
	}
	delete(m.campaigns, id)
	for moveID, mv := range m.moves {
		if mv.CampaignID == id {
			delete(m.moves, moveID)
		}
	}
	return nil
}

// WithCampaign runs fn with exclusive access to the campaign. If fn fails, the campaign and
// its moves are restored to their state before fn ran.
func (m *Memory) WithCampaign(ctx context.Context, campaignID string, fn func(ctx context.Context, tx contractx.PersistenceAdapter) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	c, ok := m.campaigns[campaignID]
	var moves []statex.Move
	for _, mv := range m.moves {
		if mv.CampaignID == campaignID {
			moves = append(moves, cloneMove(mv))
		}
	}
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: campaign %s", contractx.ErrNotFound, campaignID)
	}

	if err := fn(ctx, m); err != nil {
		m.restore(c, moves)
		return err
	}
	return nil
}

func (m *Memory) restore(c statex.Campaign, moves []statex.Move) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	for id, mv := range m.moves {
		if mv.CampaignID == c.ID {
			delete(m.moves, id)
		}
	}
	for _, mv := range moves {
		m.moves[mv.ID] = mv
	}
}

func (m *Memory) InsertMoves(ctx context.Context, moves []statex.Move) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range moves {
		if mv.ID == "" {
			return fmt.Errorf("%w: move id is required", contractx.ErrValidation)
		}
		if _, exists := m.moves[mv.ID]; exists {
			return fmt.Errorf("%w: move %s already exists", contractx.ErrValidation, mv.ID)
		}
	}
	for _, mv := range moves {
		m.moves[mv.ID] = cloneMove(mv)
	}
	return nil
}

func (m *Memory) UpdateMove(ctx context.Context, mv statex.Move) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.moves[mv.ID]; !exists {
		return fmt.Errorf("%w: move %s", contractx.ErrNotFound, mv.ID)
	}
	m.moves[mv.ID] = cloneMove(mv)
	return nil
}

func (m *Memory) DeleteMove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.moves[id]; !exists {
		return fmt.Errorf("%w: move %s", contractx.ErrNotFound, id)
	}
	delete(m.moves, id)
	return nil
}

// FetchMovesByCampaign returns the campaign's moves ordered by position.
func (m *Memory) FetchMovesByCampaign(ctx context.Context, campaignID string) ([]statex.Move, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]statex.Move, 0)
	for _, mv := range m.moves {
		if mv.CampaignID == campaignID {
			out = append(out, cloneMove(mv))
		}
	}
	sortMoves(out)
	return out, nil
}

func (m *Memory) InsertICPs(ctx context.Context, runID string, icps []statex.DerivedICP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.icps[runID] = append(m.icps[runID], icps...)
	return nil
}

func (m *Memory) ICPs(runID string) []statex.DerivedICP {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]statex.DerivedICP(nil), m.icps[runID]...)
}

func (m *Memory) InsertInferenceLogs(ctx context.Context, logs []statex.InferenceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, logs...)
	return nil
}

func (m *Memory) InferenceLogs() []statex.InferenceLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]statex.InferenceLog(nil), m.logs...)
}

func cloneMove(mv statex.Move) statex.Move {
	mv.Checklist = append([]statex.ChecklistItem(nil), mv.Checklist...)
	return mv
}

func sortMoves(moves []statex.Move) {
	sort.SliceStable(moves, func(i, j int) bool {
		if moves[i].Position != moves[j].Position {
			return moves[i].Position < moves[j].Position
		}
		return moves[i].ID < moves[j].ID
	})
}
