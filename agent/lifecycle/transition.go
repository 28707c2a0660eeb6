package lifecycle

import (
	"fmt"

	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
)

// TransitionError reports a rejected lifecycle change. It matches contract.ErrInvalidTransition.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid %s transition %s -> %s (id=%s)", e.Entity, e.From, e.To, e.ID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return contractx.ErrInvalidTransition
}

var campaignTransitions = map[statex.CampaignStatus][]statex.CampaignStatus{
	statex.CampaignPlanned:  {statex.CampaignActive},
	statex.CampaignActive:   {statex.CampaignPaused, statex.CampaignWrapup, statex.CampaignArchived},
	statex.CampaignPaused:   {statex.CampaignActive},
	statex.CampaignWrapup:   {statex.CampaignArchived},
	statex.CampaignArchived: nil,
}

var moveTransitions = map[statex.MoveStatus][]statex.MoveStatus{
	statex.MoveDraft:     {statex.MoveQueued},
	statex.MoveQueued:    {statex.MoveActive},
	statex.MoveActive:    {statex.MoveCompleted},
	statex.MoveCompleted: nil,
}

// CanTransitionCampaign reports whether from -> to is a legal campaign transition.
func CanTransitionCampaign(from, to statex.CampaignStatus) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionMove(from, to statex.MoveStatus) bool {
	for _, next := range moveTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func campaignTransitionError(c statex.Campaign, to statex.CampaignStatus, reason string) *TransitionError {
	return &TransitionError{Entity: "campaign", ID: c.ID, From: string(c.Status), To: string(to), Reason: reason}
}

func moveTransitionError(m statex.Move, to statex.MoveStatus, reason string) *TransitionError {
	return &TransitionError{Entity: "move", ID: m.ID, From: string(m.Status), To: string(to), Reason: reason}
}
