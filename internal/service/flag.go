package service

import (
	"context"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/pagination"
)

// FlagPageResult is one page of flagged interactions with cursor pagination
type FlagPageResult struct {
	Items      []*domain.FlaggedInteraction
	NextCursor string
	HasMore    bool
}

// FlagRepository defines the repository interface for flagged interactions
type FlagRepository interface {
	Create(ctx context.Context, f *domain.FlaggedInteraction) error
	GetByID(ctx context.Context, id string) (*domain.FlaggedInteraction, error)
	ListPendingByReviewer(ctx context.Context, reviewerID string, cursor *pagination.Cursor, limit int) (*FlagPageResult, error)
	Update(ctx context.Context, f *domain.FlaggedInteraction) error
}

// FlagService manages the human review queue for low-confidence answers.
// Flags are created by the advisor; reviewers work them off here. Reviewed
// flags are kept forever as an audit trail.
type FlagService struct {
	repo FlagRepository
}

// NewFlagService creates a new FlagService instance
func NewFlagService(repo FlagRepository) *FlagService {
	return &FlagService{repo: repo}
}

// GetByID fetches a single flagged interaction
func (s *FlagService) GetByID(ctx context.Context, id string) (*domain.FlaggedInteraction, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPending returns a reviewer's open queue, oldest first
func (s *FlagService) ListPending(ctx context.Context, reviewerID, cursorStr string, limit int) (*FlagPageResult, error) {
	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.repo.ListPendingByReviewer(ctx, reviewerID, cursor, limit)
}

// Review resolves a pending flag as verified or corrected. A flag can only
// be reviewed once; repeat reviews fail.
func (s *FlagService) Review(ctx context.Context, id string, status domain.FlagStatus, humanResponse string) (*domain.FlaggedInteraction, error) {
	flag, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := flag.Review(status, humanResponse, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, flag); err != nil {
		return nil, err
	}

	return flag, nil
}
