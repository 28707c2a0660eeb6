// Package market computes TAM/SAM/SOM and the path to SOM from foundation inputs.
// Everything here is pure and deterministic: no inference, no clock, no randomness.
package market

import (
	"fmt"
	"math"
	"strings"

	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

const (
	DefaultCaptureRate    = 0.01
	DefaultTimelineMonths = 12
	DefaultWinRate        = 0.2

	// Each defaulted or missing input costs this much of the confidence score.
	confidencePenalty = 0.25
	highThreshold     = 0.75
	mediumThreshold   = 0.5
)

// Share of all companies in each size band. Sums to 1.
var sizeBandShare = map[string]float64{
	"1-10":      0.40,
	"11-50":     0.25,
	"51-200":    0.15,
	"201-500":   0.08,
	"501-1000":  0.05,
	"1001-5000": 0.04,
	"5000+":     0.03,
}

// Relative lead yield per channel; unlisted channels weigh 1.
var channelWeight = map[string]float64{
	"outbound":  3,
	"linkedin":  3,
	"content":   2,
	"seo":       2,
	"referrals": 2,
	"community": 2,
	"paid":      1,
	"events":    1,
}

var defaultChannels = []string{"outbound", "content", "referrals"}

// ComputeMarketSize derives the market size for the foundation, narrowed by the union of the
// ICP firmographic filters. When no ICP carries a filter for a dimension the foundation's own
// filters are used. The result always satisfies som <= sam <= tam.
func ComputeMarketSize(foundation statex.FoundationData, icps []statex.DerivedICP) statex.MarketSize {
	var (
		out     statex.MarketSize
		notes   []string
		samMiss int
		somMiss int
	)
	m := foundation.Market
	deal := foundation.Offer.AverageDealValue

	tam := float64(m.TotalPopulation) * deal
	if tam < 0 || math.IsNaN(tam) || math.IsInf(tam, 0) {
		tam = 0
	}
	tamScore := 1.0

	// SAM
	if len(icps) == 0 {
		samMiss++
		notes = append(notes, "no icps; foundation filters used")
	}

	bands := unionFilter(icps, func(f statex.Firmographics) []string { return f.CompanySizes })
	if len(bands) == 0 {
		bands = normalizeList(m.CompanySizes)
	}
	sizeShare := 1.0
	if len(bands) == 0 {
		samMiss++
		notes = append(notes, "no company size filter")
	} else {
		sizeShare = 0
		for _, b := range bands {
			sizeShare += sizeBandShare[b]
		}
	}

	industryShare, ok := filterShare(normalizeList(m.Industries), unionFilter(icps, func(f statex.Firmographics) []string { return f.Industries }))
	if !ok {
		samMiss++
		notes = append(notes, "industry filter not applied")
	}
	geoShare, ok := filterShare(normalizeList(m.Geographies), unionFilter(icps, func(f statex.Firmographics) []string { return f.Geographies }))
	if !ok {
		samMiss++
		notes = append(notes, "geography filter not applied")
	}

	sam := tam * clampUnit(sizeShare) * clampUnit(industryShare) * clampUnit(geoShare)
	samClamped := false
	if !(sam <= tam) {
		sam = tam
		samClamped = true
	}
	samScore := math.Min(tamScore, 1-confidencePenalty*float64(samMiss))

	// SOM
	capture := m.CaptureRate
	if !usableRate(capture) {
		capture = DefaultCaptureRate
		somMiss++
		notes = append(notes, fmt.Sprintf("capture rate defaulted to %.2f", DefaultCaptureRate))
	}
	months := m.TimelineMonths
	if months <= 0 {
		months = DefaultTimelineMonths
		somMiss++
		notes = append(notes, fmt.Sprintf("timeline defaulted to %d months", DefaultTimelineMonths))
	}
	winRate := m.WinRate
	if !usableRate(winRate) {
		winRate = DefaultWinRate
		somMiss++
		notes = append(notes, fmt.Sprintf("win rate defaulted to %.2f", DefaultWinRate))
	}

	som := sam * capture * float64(months) / 12
	if m.ChannelCapacity > 0 {
		capacityBound := float64(m.ChannelCapacity) * float64(months) * winRate * deal
		if capacityBound < som {
			som = capacityBound
			notes = append(notes, "som bounded by channel capacity")
		}
	} else {
		somMiss++
		notes = append(notes, "no channel capacity declared")
	}
	// Negated so a NaN som is clamped too.
	somClamped := false
	if !(som <= sam) {
		som = sam
		somClamped = true
		notes = append(notes, "som capped at sam")
	}
	somScore := samScore - confidencePenalty*float64(somMiss)

	out.TAM = statex.MarketFigure{Value: tam, Confidence: label(tamScore)}
	out.SAM = statex.MarketFigure{Value: sam, Confidence: label(samScore)}
	out.SOM = statex.MarketFigure{Value: som, Confidence: label(somScore)}
	if samClamped {
		out.SAM.Confidence = statex.ConfidenceLow
		notes = append(notes, "sam capped at tam")
	}
	if samClamped || somClamped {
		out.Clamped = true
		out.SOM.Confidence = statex.ConfidenceLow
	}

	out.PathToSOM = pathToSOM(som, deal, winRate, months, m.Channels)
	out.Notes = notes
	return out
}

func pathToSOM(som, deal, winRate float64, months int, channels []string) statex.PathToSOM {
	path := statex.PathToSOM{WinRate: winRate}
	if deal > 0 {
		path.CustomersNeeded = som / deal
	}
	if winRate > 0 && months > 0 {
		path.LeadsPerMonth = path.CustomersNeeded / (winRate * float64(months))
	}

	mix := normalizeList(channels)
	if len(mix) == 0 {
		mix = defaultChannels
	}
	total := 0.0
	for _, c := range mix {
		total += weightOf(c)
	}
	path.ChannelMix = make([]statex.ChannelShare, 0, len(mix))
	for _, c := range mix {
		share := weightOf(c) / total
		path.ChannelMix = append(path.ChannelMix, statex.ChannelShare{
			Channel:       c,
			Share:         share,
			LeadsPerMonth: share * path.LeadsPerMonth,
		})
	}
	return path
}

// filterShare returns the fraction of the declared values the ICPs target. ok is false when
// the dimension could not narrow the market.
func filterShare(declared, targeted []string) (float64, bool) {
	if len(declared) == 0 {
		return 1, false
	}
	if len(targeted) == 0 {
		return 1, true
	}
	set := make(map[string]struct{}, len(declared))
	for _, d := range declared {
		set[d] = struct{}{}
	}
	matched := 0
	for _, t := range targeted {
		if _, ok := set[t]; ok {
			matched++
		}
	}
	if matched == 0 {
		// ICPs target outside the declared market; keep the declared market.
		return 1, false
	}
	return float64(matched) / float64(len(declared)), true
}

func unionFilter(icps []statex.DerivedICP, pick func(statex.Firmographics) []string) []string {
	var all []string
	for _, icp := range icps {
		all = append(all, pick(icp.Firmographics)...)
	}
	return normalizeList(all)
}

// normalizeList lowercases, trims and de-duplicates while keeping first-seen order.
func normalizeList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func weightOf(channel string) float64 {
	if w, ok := channelWeight[channel]; ok {
		return w
	}
	return 1
}

// usableRate is false for zero, negative and non-finite rates.
func usableRate(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func clampUnit(v float64) float64 {
	if !(v >= 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func label(score float64) statex.ConfidenceLabel {
	switch {
	case score >= highThreshold:
		return statex.ConfidenceHigh
	case score >= mediumThreshold:
		return statex.ConfidenceMedium
	default:
		return statex.ConfidenceLow
	}
}
