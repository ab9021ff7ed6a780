package domain

import (
	"strings"
	"time"
)

type ExperimentStatus string

const (
	ExperimentStatusDraft     ExperimentStatus = "DRAFT"
	ExperimentStatusActive    ExperimentStatus = "ACTIVE"
	ExperimentStatusPaused    ExperimentStatus = "PAUSED"
	ExperimentStatusCompleted ExperimentStatus = "COMPLETED"
	ExperimentStatusCancelled ExperimentStatus = "CANCELLED"
)

var experimentTransitions = map[ExperimentStatus][]ExperimentStatus{
	ExperimentStatusDraft:  {ExperimentStatusActive, ExperimentStatusCancelled},
	ExperimentStatusActive: {ExperimentStatusPaused, ExperimentStatusCompleted, ExperimentStatusCancelled},
	ExperimentStatusPaused: {ExperimentStatusActive, ExperimentStatusCompleted, ExperimentStatusCancelled},
}

func ParseExperimentStatus(raw string) (ExperimentStatus, error) {
	status := ExperimentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case ExperimentStatusDraft, ExperimentStatusActive, ExperimentStatusPaused,
		ExperimentStatusCompleted, ExperimentStatusCancelled:
		return status, nil
	default:
		return "", NewValidationError(ReasonInvalidRequest, "unknown experiment status", map[string]any{"status": raw})
	}
}

func (s ExperimentStatus) IsTerminal() bool {
	return s == ExperimentStatusCompleted || s == ExperimentStatusCancelled
}

// AcceptsCounters reports whether delivery may still add to variant counters.
func (s ExperimentStatus) AcceptsCounters() bool {
	return s == ExperimentStatusActive || s == ExperimentStatusPaused
}

func CanTransitionExperiment(from, to ExperimentStatus) bool {
	for _, allowed := range experimentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Variant struct {
	VariantID         string    `json:"id"`
	ExperimentID      string    `json:"experimentId"`
	CreativeID        string    `json:"adCreativeId"`
	Name              string    `json:"name"`
	TrafficAllocation float64   `json:"trafficAllocation"`
	Impressions       int64     `json:"impressions"`
	Engagements       int64     `json:"engagements"`
	Conversions       int64     `json:"conversions"`
	Position          int       `json:"position"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type Experiment struct {
	ExperimentID     string           `json:"id"`
	CampaignID       string           `json:"campaignId"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	Status           ExperimentStatus `json:"status"`
	StartDate        time.Time        `json:"startDate"`
	EndDate          *time.Time       `json:"endDate,omitempty"`
	WinningVariantID *string          `json:"winningVariantId"`
	Variants         []Variant        `json:"variants"`
	Version          int64            `json:"version"`
	CreatedBy        string           `json:"createdBy,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (e Experiment) HasVariant(variantID string) bool {
	for _, v := range e.Variants {
		if v.VariantID == variantID {
			return true
		}
	}
	return false
}

// TransitionExperiment moves exp to target and returns the next state without
// touching the input. Completion stamps the end date when unset and computes
// the winner from the variant counters held in exp.
func TransitionExperiment(exp Experiment, target ExperimentStatus, now time.Time) (Experiment, error) {
	if !CanTransitionExperiment(exp.Status, target) {
		return Experiment{}, &InvalidTransitionError{
			Entity: "experiment",
			From:   string(exp.Status),
			To:     string(target),
		}
	}
	next := exp
	next.Variants = append([]Variant(nil), exp.Variants...)
	next.Status = target
	next.UpdatedAt = now

	if target == ExperimentStatusCompleted {
		if next.EndDate == nil {
			end := now
			next.EndDate = &end
		}
		next.WinningVariantID = SelectWinner(next.Variants)
	}
	return next, nil
}

func ValidateExperimentSchedule(name string, startDate time.Time, endDate *time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return NewValidationError(ReasonInvalidRequest, "name is required and must be at most 200 characters", map[string]any{"field": "name"})
	}
	if startDate.IsZero() {
		return NewValidationError(ReasonInvalidRequest, "startDate is required", map[string]any{"field": "startDate"})
	}
	if endDate != nil && !endDate.After(startDate) {
		return NewValidationError(ReasonInvalidRequest, "endDate must be after startDate", map[string]any{"field": "endDate"})
	}
	return nil
}

// NewVariantsLockedError reports an attempt to edit variants after the
// experiment left DRAFT.
func NewVariantsLockedError(status ExperimentStatus) error {
	return &InvalidTransitionError{Entity: "experiment variants", From: string(status), To: "EDITED"}
}
