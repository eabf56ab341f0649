package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
	"culturehub-api/pkg/uid"
)

const maxCommentLength = 1000

// ReviewInput carries a rating and comment.
type ReviewInput struct {
	Rating  int
	Comment string
}

func (in *ReviewInput) validate() error {
	if in.Rating < 1 || in.Rating > 5 {
		return validationError("rating must be between 1 and 5")
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if in.Comment == "" {
		return validationError("comment is required")
	}
	if utf8.RuneCountInString(in.Comment) > maxCommentLength {
		return validationError("comment must be at most %d characters", maxCommentLength)
	}
	return nil
}

// ReviewService manages site reviews. Only sites in the author's visited
// set can be reviewed, once per author.
type ReviewService struct {
	tx       repository.Transactor
	reviews  repository.ReviewRepository
	accounts repository.AccountRepository
	catalog  *CatalogService
	now      Clock
	logger   *zap.Logger
}

// NewReviewService creates a review service.
func NewReviewService(tx repository.Transactor, reviews repository.ReviewRepository, accounts repository.AccountRepository, catalog *CatalogService, now Clock, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		tx:       tx,
		reviews:  reviews,
		accounts: accounts,
		catalog:  catalog,
		now:      now,
		logger:   logger.Named("reviews"),
	}
}

// Create adds a review by accountID for siteID.
func (s *ReviewService) Create(ctx context.Context, accountID, siteID string, in ReviewInput) (*model.Review, error) {
	if siteID == "" {
		return nil, validationError("siteId is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.catalog.Get(ctx, siteID); err != nil {
		return nil, err
	}

	var review *model.Review
	err := retryOnConflict(ctx, func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			account, err := s.accounts.Get(ctx, accountID)
			if err != nil {
				return err
			}
			if !account.HasVisited(siteID) {
				return fmt.Errorf("only visited sites can be reviewed: %w", model.ErrForbidden)
			}
			// Rewriting the account claims its version, so a relocation
			// that cleared the visit in the meantime fails this attempt.
			if err := s.accounts.Save(ctx, account); err != nil {
				return err
			}

			now := s.now()
			review = &model.Review{
				ID:        uid.New(),
				AccountID: accountID,
				SiteID:    siteID,
				Rating:    in.Rating,
				Comment:   in.Comment,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return s.reviews.Create(ctx, review)
		})
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ListBySite returns a site's reviews, newest first.
func (s *ReviewService) ListBySite(ctx context.Context, siteID string) ([]model.Review, error) {
	if _, err := s.catalog.Get(ctx, siteID); err != nil {
		return nil, err
	}
	return s.reviews.ListBySite(ctx, siteID)
}

// Update changes a review owned by accountID.
func (s *ReviewService) Update(ctx context.Context, accountID, reviewID string, in ReviewInput) (*model.Review, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	review, err := s.owned(ctx, accountID, reviewID)
	if err != nil {
		return nil, err
	}

	review.Rating = in.Rating
	review.Comment = in.Comment
	review.UpdatedAt = s.now()
	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// Delete removes a review owned by accountID.
func (s *ReviewService) Delete(ctx context.Context, accountID, reviewID string) error {
	if _, err := s.owned(ctx, accountID, reviewID); err != nil {
		return err
	}
	return s.reviews.Delete(ctx, reviewID)
}

func (s *ReviewService) owned(ctx context.Context, accountID, reviewID string) (*model.Review, error) {
	review, err := s.reviews.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.AccountID != accountID {
		return nil, fmt.Errorf("review belongs to another account: %w", model.ErrUnauthorized)
	}
	return review, nil
}
