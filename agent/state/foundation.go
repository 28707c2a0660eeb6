package state

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidFoundation = errors.New("invalid foundation data")

// FoundationData is the founder's intake. It is passed by value and never mutated during a run.
type FoundationData struct {
	Business    BusinessIdentity   `json:"business" yaml:"business"`
	Outcomes    TargetOutcomes     `json:"outcomes" yaml:"outcomes"`
	Offer       Offer              `json:"offer" yaml:"offer"`
	Proof       []Claim            `json:"proof,omitempty" yaml:"proof"`
	Competition CompetitiveContext `json:"competition" yaml:"competition"`
	Market      MarketInputs       `json:"market" yaml:"market"`
}

type BusinessIdentity struct {
	OwnerID     string `json:"owner_id,omitempty" yaml:"owner_id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Stage       string `json:"stage,omitempty" yaml:"stage"`
	Website     string `json:"website,omitempty" yaml:"website"`
}

type TargetOutcomes struct {
	Objective      Objective `json:"objective" yaml:"objective"`
	NorthStar      string    `json:"north_star,omitempty" yaml:"north_star"`
	WeeklyHours    int       `json:"weekly_hours,omitempty" yaml:"weekly_hours"`
	PreferredTones []string  `json:"preferred_tones,omitempty" yaml:"preferred_tones"`
}

type Offer struct {
	Name             string  `json:"name" yaml:"name"`
	Description      string  `json:"description" yaml:"description"`
	PricingModel     string  `json:"pricing_model,omitempty" yaml:"pricing_model"`
	AverageDealValue float64 `json:"average_deal_value" yaml:"average_deal_value"`
}

type Claim struct {
	Claim    string `json:"claim" yaml:"claim"`
	Evidence string `json:"evidence,omitempty" yaml:"evidence"`
	Strength string `json:"strength,omitempty" yaml:"strength"`
}

type CompetitiveContext struct {
	Competitors     []string `json:"competitors,omitempty" yaml:"competitors"`
	Alternatives    []string `json:"alternatives,omitempty" yaml:"alternatives"`
	Differentiators []string `json:"differentiators,omitempty" yaml:"differentiators"`
}

// MarketInputs carries the firmographic and behavioral assumptions used for market sizing.
// Zero values for the optional rates mean "not declared" and fall back to defaults.
type MarketInputs struct {
	Industries      []string `json:"industries,omitempty" yaml:"industries"`
	Geographies     []string `json:"geographies,omitempty" yaml:"geographies"`
	CompanySizes    []string `json:"company_sizes,omitempty" yaml:"company_sizes"`
	TotalPopulation int64    `json:"total_population" yaml:"total_population"`
	CaptureRate     float64  `json:"capture_rate,omitempty" yaml:"capture_rate"`
	TimelineMonths  int      `json:"timeline_months,omitempty" yaml:"timeline_months"`
	WinRate         float64  `json:"win_rate,omitempty" yaml:"win_rate"`
	ChannelCapacity int      `json:"channel_capacity,omitempty" yaml:"channel_capacity"` // leads per month
	Channels        []string `json:"channels,omitempty" yaml:"channels"`
}

func (f FoundationData) Validate() error {
	var problems []string
	if strings.TrimSpace(f.Business.Name) == "" {
		problems = append(problems, "business.name is required")
	}
	if strings.TrimSpace(f.Offer.Name) == "" && strings.TrimSpace(f.Offer.Description) == "" {
		problems = append(problems, "offer.name or offer.description is required")
	}
	if !finite(f.Offer.AverageDealValue) || f.Offer.AverageDealValue <= 0 {
		problems = append(problems, "offer.average_deal_value must be a finite number > 0")
	}
	if f.Outcomes.Objective != "" && !f.Outcomes.Objective.Valid() {
		problems = append(problems, fmt.Sprintf("outcomes.objective %q is not supported", f.Outcomes.Objective))
	}
	if f.Market.TotalPopulation <= 0 {
		problems = append(problems, "market.total_population must be > 0")
	}
	if !finite(f.Market.CaptureRate) || f.Market.CaptureRate < 0 {
		problems = append(problems, "market.capture_rate must be a finite number >= 0")
	}
	if !finite(f.Market.WinRate) || f.Market.WinRate < 0 || f.Market.WinRate > 1 {
		problems = append(problems, "market.win_rate must be within [0,1]")
	}
	if f.Market.TimelineMonths < 0 {
		problems = append(problems, "market.timeline_months must be >= 0")
	}
	if f.Market.ChannelCapacity < 0 {
		problems = append(problems, "market.channel_capacity must be >= 0")
	}
	for _, band := range f.Market.CompanySizes {
		if !IsCompanySizeBand(band) {
			problems = append(problems, fmt.Sprintf("market.company_sizes: unknown band %q", band))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFoundation, strings.Join(problems, "; "))
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CompanySizeBands lists the supported firmographic size bands, smallest first.
var CompanySizeBands = []string{"1-10", "11-50", "51-200", "201-500", "501-1000", "1001-5000", "5000+"}

func IsCompanySizeBand(band string) bool {
	band = strings.TrimSpace(band)
	for _, b := range CompanySizeBands {
		if b == band {
			return true
		}
	}
	return false
}
