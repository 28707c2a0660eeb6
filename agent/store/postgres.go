package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

type campaignRow struct {
	bun.BaseModel `bun:"table:campaigns,alias:c"`

	ID            string     `bun:"id,pk"`
	OwnerID       string     `bun:"owner_id"`
	Name          string     `bun:"name,notnull"`
	Objective     string     `bun:"objective,notnull"`
	CohortRef     string     `bun:"cohort_ref"`
	Summary       string     `bun:"summary"`
	DurationWeeks int        `bun:"duration_weeks"`
	Status        string     `bun:"status,notnull"`
	CreatedAt     time.Time  `bun:"created_at,notnull"`
	ActivatedAt   *time.Time `bun:"activated_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull"`
}

type moveRow struct {
	bun.BaseModel `bun:"table:moves,alias:m"`

	ID                 string                 `bun:"id,pk"`
	CampaignID         string                 `bun:"campaign_id,notnull"`
	Position           int                    `bun:"position,notnull"`
	Name               string                 `bun:"name,notnull"`
	Channel            string                 `bun:"channel"`
	DurationDays       int                    `bun:"duration_days"`
	DailyEffortMinutes int                    `bun:"daily_effort_minutes"`
	Checklist          []statex.ChecklistItem `bun:"checklist,type:jsonb"`
	Status             string                 `bun:"status,notnull"`
	StartedAt          *time.Time             `bun:"started_at"`
	CompletedAt        *time.Time             `bun:"completed_at"`
}

type icpRow struct {
	bun.BaseModel `bun:"table:derived_icps,alias:i"`

	ID       int64             `bun:"id,pk,autoincrement"`
	RunID    string            `bun:"run_id,notnull"`
	Position int               `bun:"position"`
	Name     string            `bun:"name,notnull"`
	Priority string            `bun:"priority"`
	Profile  statex.DerivedICP `bun:"profile,type:jsonb"`
}

type inferenceLogRow struct {
	bun.BaseModel `bun:"table:inference_logs,alias:l"`

	ID               int64     `bun:"id,pk,autoincrement"`
	RunID            string    `bun:"run_id"`
	Agent            string    `bun:"agent,notnull"`
	Tier             string    `bun:"tier"`
	Model            string    `bun:"model"`
	Attempt          int       `bun:"attempt"`
	PromptTokens     int       `bun:"prompt_tokens"`
	CompletionTokens int       `bun:"completion_tokens"`
	CostUnits        float64   `bun:"cost_units"`
	LatencyMS        int64     `bun:"latency_ms"`
	Outcome          string    `bun:"outcome"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}

// Postgres is the durable persistence adapter backed by bun. Inside WithCampaign db is the
// running transaction.
type Postgres struct {
	db bun.IDB
}

var (
	_ contractx.PersistenceAdapter = (*Postgres)(nil)
	_ contractx.CampaignLocker     = (*Postgres)(nil)
)

func NewPostgres(db *bun.DB) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &Postgres{db: db}, nil
}

// CreateSchema creates the tables if they do not exist yet.
func (p *Postgres) CreateSchema(ctx context.Context) error {
	models := []any{
		(*campaignRow)(nil),
		(*moveRow)(nil),
		(*icpRow)(nil),
		(*inferenceLogRow)(nil),
	}
	for _, model := range models {
		if _, err := p.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := p.db.NewCreateIndex().
		Model((*moveRow)(nil)).
		Index("moves_campaign_id_idx").
		Column("campaign_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create moves index: %w", err)
	}
	return nil
}

// WithCampaign runs fn in one transaction that holds a row lock on the campaign, so lifecycle
// changes from separate processes apply one after another.
func (p *Postgres) WithCampaign(ctx context.Context, campaignID string, fn func(ctx context.Context, tx contractx.PersistenceAdapter) error) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row campaignRow
		err := tx.NewSelect().
			Model(&row).
			Column("id").
			Where("c.id = ?", campaignID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: campaign %s", contractx.ErrNotFound, campaignID)
		}
		if err != nil {
			return fmt.Errorf("lock campaign %s: %w", campaignID, err)
		}
		return fn(ctx, &Postgres{db: tx})
	})
}

func (p *Postgres) InsertCampaign(ctx context.Context, c statex.Campaign) error {
	if c.ID == "" {
		return fmt.Errorf("%w: campaign id is required", contractx.ErrValidation)
	}
	row := toCampaignRow(c)
	if _, err := p.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert campaign %s: %w", c.ID, err)
	}
	return nil
}

func (p *Postgres) UpdateCampaign(ctx context.Context, c statex.Campaign) error {
	row := toCampaignRow(c)
	res, err := p.db.NewUpdate().Model(&row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update campaign %s: %w", c.ID, err)
	}
	return expectRow(res, "campaign", c.ID)
}

func (p *Postgres) FetchCampaign(ctx context.Context, id string) (statex.Campaign, error) {
	var row campaignRow
	err := p.db.NewSelect().Model(&row).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return statex.Campaign{}, fmt.Errorf("%w: campaign %s", contractx.ErrNotFound, id)
	}
	if err != nil {
		return statex.Campaign{}, fmt.Errorf("fetch campaign %s: %w", id, err)
	}
	return row.toCampaign(), nil
}

// DeleteCampaign removes the campaign and its moves in one transaction.
func (p *Postgres) DeleteCampaign(ctx context.Context, id string) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*moveRow)(nil)).Where("campaign_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete moves of campaign %s: %w", id, err)
		}
		res, err := tx.NewDelete().Model((*campaignRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete campaign %s: %w", id, err)
		}
		return expectRow(res, "campaign", id)
	})
}

func (p *Postgres) InsertMoves(ctx context.Context, moves []statex.Move) error {
	if len(moves) == 0 {
		return nil
	}
	rows := make([]moveRow, 0, len(moves))
	for _, mv := range moves {
		if mv.ID == "" {
			return fmt.Errorf("%w: move id is required", contractx.ErrValidation)
		}
		rows = append(rows, toMoveRow(mv))
	}
	if _, err := p.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert moves: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateMove(ctx context.Context, mv statex.Move) error {
	row := toMoveRow(mv)
	res, err := p.db.NewUpdate().Model(&row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update move %s: %w", mv.ID, err)
	}
	return expectRow(res, "move", mv.ID)
}

func (p *Postgres) DeleteMove(ctx context.Context, id string) error {
	res, err := p.db.NewDelete().Model((*moveRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete move %s: %w", id, err)
	}
	return expectRow(res, "move", id)
}

func (p *Postgres) FetchMovesByCampaign(ctx context.Context, campaignID string) ([]statex.Move, error) {
	var rows []moveRow
	err := p.db.NewSelect().
		Model(&rows).
		Where("m.campaign_id = ?", campaignID).
		OrderExpr("m.position ASC, m.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch moves of campaign %s: %w", campaignID, err)
	}
	out := make([]statex.Move, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toMove())
	}
	return out, nil
}

func (p *Postgres) InsertICPs(ctx context.Context, runID string, icps []statex.DerivedICP) error {
	if len(icps) == 0 {
		return nil
	}
	rows := make([]icpRow, 0, len(icps))
	for i, icp := range icps {
		rows = append(rows, icpRow{
			RunID:    runID,
			Position: i + 1,
			Name:     icp.Name,
			Priority: string(icp.Priority),
			Profile:  icp,
		})
	}
	if _, err := p.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert icps for run %s: %w", runID, err)
	}
	return nil
}

func (p *Postgres) InsertInferenceLogs(ctx context.Context, logs []statex.InferenceLog) error {
	if len(logs) == 0 {
		return nil
	}
	rows := make([]inferenceLogRow, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, inferenceLogRow{
			RunID:            l.RunID,
			Agent:            l.Agent,
			Tier:             l.Tier,
			Model:            l.Model,
			Attempt:          l.Attempt,
			PromptTokens:     l.PromptTokens,
			CompletionTokens: l.CompletionTokens,
			CostUnits:        l.CostUnits,
			LatencyMS:        l.Latency.Milliseconds(),
			Outcome:          l.Outcome,
			CreatedAt:        l.Timestamp,
		})
	}
	if _, err := p.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert inference logs: %w", err)
	}
	return nil
}

func expectRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", contractx.ErrNotFound, entity, id)
	}
	return nil
}

func toCampaignRow(c statex.Campaign) campaignRow {
	return campaignRow{
		ID:            c.ID,
		OwnerID:       c.OwnerID,
		Name:          c.Name,
		Objective:     string(c.Objective),
		CohortRef:     c.CohortRef,
		Summary:       c.Summary,
		DurationWeeks: c.DurationWeeks,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
		ActivatedAt:   c.ActivatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (r campaignRow) toCampaign() statex.Campaign {
	return statex.Campaign{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		Objective:     statex.Objective(r.Objective),
		CohortRef:     r.CohortRef,
		Summary:       r.Summary,
		DurationWeeks: r.DurationWeeks,
		Status:        statex.CampaignStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		ActivatedAt:   r.ActivatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toMoveRow(mv statex.Move) moveRow {
	checklist := mv.Checklist
	if checklist == nil {
		checklist = []statex.ChecklistItem{}
	}
	return moveRow{
		ID:                 mv.ID,
		CampaignID:         mv.CampaignID,
		Position:           mv.Position,
		Name:               mv.Name,
		Channel:            mv.Channel,
		DurationDays:       mv.DurationDays,
		DailyEffortMinutes: mv.DailyEffortMinutes,
		Checklist:          checklist,
		Status:             string(mv.Status),
		StartedAt:          mv.StartedAt,
		CompletedAt:        mv.CompletedAt,
	}
}

func (r moveRow) toMove() statex.Move {
	return statex.Move{
		ID:                 r.ID,
		CampaignID:         r.CampaignID,
		Position:           r.Position,
		Name:               r.Name,
		Channel:            r.Channel,
		DurationDays:       r.DurationDays,
		DailyEffortMinutes: r.DailyEffortMinutes,
		Checklist:          r.Checklist,
		Status:             statex.MoveStatus(r.Status),
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
	}
}
