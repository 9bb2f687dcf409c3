package domain

import (
	"fmt"
	"time"
)

// FlagStatus represents the review state of a flagged interaction
type FlagStatus string

const (
	FlagStatusPending   FlagStatus = "pending"
	FlagStatusVerified  FlagStatus = "verified"
	FlagStatusCorrected FlagStatus = "corrected"
)

// FlaggedInteraction records that a generated answer fell below its agent's
// acceptable confidence. Created in state pending; only a human reviewer
// transitions it; never auto-deleted.
type FlaggedInteraction struct {
	ID              string
	OrgID           string
	AgentID         string
	MessageID       string
	ReviewerID      string
	ConfidenceScore float64
	Status          FlagStatus
	HumanResponse   string
	CreatedAt       time.Time
	ReviewedAt      *time.Time
}

// NewFlaggedInteraction creates a pending flag for a low-confidence answer
func NewFlaggedInteraction(id string, actor Actor, messageID, reviewerID string, score float64, now time.Time) *FlaggedInteraction {
	return &FlaggedInteraction{
		ID:              id,
		OrgID:           actor.OrgID,
		AgentID:         actor.AgentID,
		MessageID:       messageID,
		ReviewerID:      reviewerID,
		ConfidenceScore: score,
		Status:          FlagStatusPending,
		CreatedAt:       now,
	}
}

// Review transitions a pending flag to a reviewed state. Already-reviewed
// flags cannot be reviewed again.
func (f *FlaggedInteraction) Review(status FlagStatus, humanResponse string, now time.Time) error {
	if f.Status != FlagStatusPending {
		return ErrFlagAlreadyReviewed
	}
	if status != FlagStatusVerified && status != FlagStatusCorrected {
		return ErrInvalidFlagStatus
	}
	f.Status = status
	f.HumanResponse = humanResponse
	f.ReviewedAt = &now
	return nil
}

// ValidateFlaggedInteraction validates a FlaggedInteraction instance
func ValidateFlaggedInteraction(f *FlaggedInteraction) error {
	if f == nil {
		return fmt.Errorf("flagged interaction cannot be nil")
	}
	if f.ID == "" {
		return fmt.Errorf("flagged interaction ID is required")
	}
	if f.AgentID == "" {
		return fmt.Errorf("flagged interaction AgentID is required")
	}
	if f.MessageID == "" {
		return fmt.Errorf("flagged interaction MessageID is required")
	}
	if f.ConfidenceScore < 0 || f.ConfidenceScore > 1 {
		return fmt.Errorf("flagged interaction ConfidenceScore must be in [0,1]")
	}
	if !isValidFlagStatus(f.Status) {
		return fmt.Errorf("flagged interaction Status is invalid: %s", f.Status)
	}
	return nil
}

func isValidFlagStatus(s FlagStatus) bool {
	switch s {
	case FlagStatusPending, FlagStatusVerified, FlagStatusCorrected:
		return true
	}
	return false
}
