package lifecycle

import (
	"context"
	"time"

	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

const week = 7 * 24 * time.Hour

// Progress is derived from the move list on every read and never stored.
type Progress struct {
	CampaignID     string                `json:"campaign_id"`
	Status         statex.CampaignStatus `json:"status"`
	CompletedMoves int                   `json:"completed_moves"`
	TotalMoves     int                   `json:"total_moves"`
	Ratio          float64               `json:"ratio"`
	WeekNumber     int                   `json:"week_number"`
	TotalWeeks     int                   `json:"total_weeks"`
	CurrentMove    *statex.Move          `json:"current_move,omitempty"`
}

func (m *Manager) Progress(ctx context.Context, campaignID string) (Progress, error) {
	c, moves, err := load(ctx, m.store, campaignID)
	if err != nil {
		return Progress{}, err
	}
	return ComputeProgress(c, moves, m.now()), nil
}

// ComputeProgress is the pure form of Manager.Progress. WeekNumber is 0 until the campaign has
// been activated, then counts from 1 and never exceeds TotalWeeks.
func ComputeProgress(c statex.Campaign, moves []statex.Move, now time.Time) Progress {
	p := Progress{
		CampaignID: c.ID,
		Status:     c.Status,
		TotalMoves: len(moves),
	}

	days := 0
	for i := range moves {
		days += moves[i].DurationDays
		switch moves[i].Status {
		case statex.MoveCompleted:
			p.CompletedMoves++
		case statex.MoveActive:
			current := moves[i]
			p.CurrentMove = &current
		}
	}
	if p.TotalMoves > 0 {
		p.Ratio = float64(p.CompletedMoves) / float64(p.TotalMoves)
	}

	p.TotalWeeks = (days + 6) / 7
	if p.TotalWeeks == 0 {
		p.TotalWeeks = c.DurationWeeks
	}
	if p.TotalWeeks <= 0 {
		p.TotalWeeks = 1
	}

	if c.ActivatedAt != nil {
		elapsed := now.Sub(*c.ActivatedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		p.WeekNumber = int(elapsed/week) + 1
		if p.WeekNumber > p.TotalWeeks {
			p.WeekNumber = p.TotalWeeks
		}
	}
	return p
}
