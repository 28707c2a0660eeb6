package state

import (
	"strings"
	"time"
)

type Objective string

const (
	ObjectiveAwareness   Objective = "awareness"
	ObjectiveAcquisition Objective = "acquisition"
	ObjectiveActivation  Objective = "activation"
	ObjectiveRetention   Objective = "retention"
	ObjectiveLaunch      Objective = "launch"
)

func (o Objective) Valid() bool {
	switch o {
	case ObjectiveAwareness, ObjectiveAcquisition, ObjectiveActivation, ObjectiveRetention, ObjectiveLaunch:
		return true
	}
	return false
}

type ICPPriority string

const (
	PriorityPrimary     ICPPriority = "primary"
	PrioritySecondary   ICPPriority = "secondary"
	PriorityExploratory ICPPriority = "exploratory"
)

func (p ICPPriority) Valid() bool {
	return p == PriorityPrimary || p == PrioritySecondary || p == PriorityExploratory
}

// DerivedICP is an Ideal Customer Profile produced by the ICP builder. Read-only downstream.
type DerivedICP struct {
	Name            string          `json:"name"`
	Priority        ICPPriority     `json:"priority"`
	Confidence      float64         `json:"confidence"`
	Firmographics   Firmographics   `json:"firmographics"`
	PainMap         PainMap         `json:"pain_map"`
	SocialPresence  []string        `json:"social_presence,omitempty"`
	BuyingCommittee []CommitteeRole `json:"buying_committee,omitempty"`
	Biases          []string        `json:"biases,omitempty"`
	DeRisking       []string        `json:"de_risking,omitempty"`
}

type Firmographics struct {
	Industries   []string `json:"industries,omitempty"`
	Geographies  []string `json:"geographies,omitempty"`
	CompanySizes []string `json:"company_sizes,omitempty"`
}

type PainMap struct {
	PrimaryPain    string   `json:"primary_pain"`
	SecondaryPains []string `json:"secondary_pains,omitempty"`
	Urgency        string   `json:"urgency"`
}

type CommitteeRole struct {
	Role      string `json:"role"`
	Influence string `json:"influence,omitempty"`
	Concern   string `json:"concern,omitempty"`
}

type Barrier string

const (
	BarrierAwareness     Barrier = "awareness"
	BarrierTrust         Barrier = "trust"
	BarrierPrice         Barrier = "price"
	BarrierSwitchingCost Barrier = "switching_cost"
	BarrierUrgency       Barrier = "urgency"
)

type Engine string

const (
	EngineOutbound     Engine = "outbound"
	EngineContent      Engine = "content"
	EngineCommunity    Engine = "community"
	EnginePaid         Engine = "paid"
	EnginePartnerships Engine = "partnerships"
	EngineProductLed   Engine = "product_led"
)

func (b Barrier) Valid() bool {
	switch b {
	case BarrierAwareness, BarrierTrust, BarrierPrice, BarrierSwitchingCost, BarrierUrgency:
		return true
	}
	return false
}

func (e Engine) Valid() bool {
	switch e {
	case EngineOutbound, EngineContent, EngineCommunity, EnginePaid, EnginePartnerships, EngineProductLed:
		return true
	}
	return false
}

type BarrierProfile struct {
	ICPName   string  `json:"icp_name"`
	Barrier   Barrier `json:"barrier"`
	Engine    Engine  `json:"engine"`
	Rationale string  `json:"rationale,omitempty"`
}

type StrategyProfile struct {
	Archetype     string   `json:"archetype"`
	Pillars       []string `json:"pillars"`
	PrimaryEngine Engine   `json:"primary_engine"`
	Risks         []string `json:"risks,omitempty"`
}

type Positioning struct {
	Statement       string   `json:"statement"`
	Category        string   `json:"category"`
	Differentiators []string `json:"differentiators"`
	ProofPoints     []string `json:"proof_points,omitempty"`
	Tagline         string   `json:"tagline,omitempty"`
}

type ConfidenceLabel string

const (
	ConfidenceLow    ConfidenceLabel = "low"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceHigh   ConfidenceLabel = "high"
)

type MarketFigure struct {
	Value      float64         `json:"value"`
	Confidence ConfidenceLabel `json:"confidence"`
}

type ChannelShare struct {
	Channel       string  `json:"channel"`
	Share         float64 `json:"share"`
	LeadsPerMonth float64 `json:"leads_per_month"`
}

type PathToSOM struct {
	CustomersNeeded float64        `json:"customers_needed"`
	LeadsPerMonth   float64        `json:"leads_per_month"`
	WinRate         float64        `json:"win_rate"`
	ChannelMix      []ChannelShare `json:"channel_mix"`
}

type MarketSize struct {
	TAM       MarketFigure `json:"tam"`
	SAM       MarketFigure `json:"sam"`
	SOM       MarketFigure `json:"som"`
	PathToSOM PathToSOM    `json:"path_to_som"`
	Clamped   bool         `json:"clamped,omitempty"`
	Notes     []string     `json:"notes,omitempty"`
}

type CampaignStatus string

const (
	CampaignPlanned  CampaignStatus = "planned"
	CampaignActive   CampaignStatus = "active"
	CampaignPaused   CampaignStatus = "paused"
	CampaignWrapup   CampaignStatus = "wrapup"
	CampaignArchived CampaignStatus = "archived"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignPlanned, CampaignActive, CampaignPaused, CampaignWrapup, CampaignArchived:
		return true
	}
	return false
}

// CampaignPlan is what the campaign planner proposes; the orchestrator turns it into a Campaign.
type CampaignPlan struct {
	Name          string    `json:"name"`
	Objective     Objective `json:"objective"`
	CohortICP     string    `json:"cohort_icp"`
	Summary       string    `json:"summary,omitempty"`
	DurationWeeks int       `json:"duration_weeks"`
}

type Campaign struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id,omitempty"`
	Name          string         `json:"name"`
	Objective     Objective      `json:"objective"`
	CohortRef     string         `json:"cohort_ref"`
	Summary       string         `json:"summary,omitempty"`
	DurationWeeks int            `json:"duration_weeks"`
	Status        CampaignStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ActivatedAt   *time.Time     `json:"activated_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type MoveStatus string

const (
	MoveDraft     MoveStatus = "draft"
	MoveQueued    MoveStatus = "queued"
	MoveActive    MoveStatus = "active"
	MoveCompleted MoveStatus = "completed"
)

type ChecklistItem struct {
	Item      string `json:"item"`
	Completed bool   `json:"completed"`
}

type MovePlan struct {
	Name               string   `json:"name"`
	Channel            string   `json:"channel"`
	DurationDays       int      `json:"duration_days"`
	DailyEffortMinutes int      `json:"daily_effort_minutes"`
	Checklist          []string `json:"checklist"`
}

type Move struct {
	ID                 string          `json:"id"`
	CampaignID         string          `json:"campaign_id"`
	Position           int             `json:"position"`
	Name               string          `json:"name"`
	Channel            string          `json:"channel"`
	DurationDays       int             `json:"duration_days"`
	DailyEffortMinutes int             `json:"daily_effort_minutes"`
	Checklist          []ChecklistItem `json:"checklist"`
	Status             MoveStatus      `json:"status"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

type Asset struct {
	MoveName string `json:"move_name"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// NewMove materialises a drafted move for the given campaign.
func NewMove(id, campaignID string, position int, d MovePlan) Move {
	checklist := make([]ChecklistItem, 0, len(d.Checklist))
	for _, item := range d.Checklist {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		checklist = append(checklist, ChecklistItem{Item: item})
	}
	return Move{
		ID:                 id,
		CampaignID:         campaignID,
		Position:           position,
		Name:               strings.TrimSpace(d.Name),
		Channel:            strings.TrimSpace(d.Channel),
		DurationDays:       d.DurationDays,
		DailyEffortMinutes: d.DailyEffortMinutes,
		Checklist:          checklist,
		Status:             MoveDraft,
	}
}
