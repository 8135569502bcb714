package service

import (
	"context"
	"errors"
	"strings"

	"storefront-service/internal/entity"
)

var ErrInvalidResponse = errors.New("total price must be positive")

// AdminBackend is the staff-only part of the backend.
type AdminBackend interface {
	RespondQuote(ctx context.Context, id string, resp entity.AdminResponse) (*entity.Quote, error)
	UpdateTracking(ctx context.Context, id, link, trackingID string) (*entity.Order, error)
}

// AttemptReader reads the checkout ledger.
type AttemptReader interface {
	ListAttempts(ctx context.Context, quoteID string) ([]entity.CheckoutEvent, error)
}

// AdminService handles staff actions on quotes and orders.
type AdminService struct {
	backend   AdminBackend
	refresher Refresher
	attempts  AttemptReader
}

func NewAdminService(backend AdminBackend, refresher Refresher, attempts AttemptReader) *AdminService {
	return &AdminService{backend: backend, refresher: refresher, attempts: attempts}
}

// RespondQuote prices a pending quote, moving it to responded.
func (s *AdminService) RespondQuote(ctx context.Context, actor Actor, id string, resp entity.AdminResponse) (*entity.Quote, error) {
	if resp.TotalPrice <= 0 {
		return nil, ErrInvalidResponse
	}
	if resp.DiscountPercentage != nil && (*resp.DiscountPercentage < 0 || *resp.DiscountPercentage > 100) {
		return nil, errors.New("discount percentage must be between 0 and 100")
	}
	q, err := s.backend.RespondQuote(ctx, id, resp)
	if err != nil {
		logger.Error().Err(err).Msgf("Error responding to quote %s", id)
		return nil, backendError(err, "Failed to respond to quote")
	}
	s.refresh(ctx, actor)
	return q, nil
}

// UpdateTracking sets the tracking link shown to the customer (and the
// dropship end customer) for an order.
func (s *AdminService) UpdateTracking(ctx context.Context, actor Actor, id, link, trackingID string) (*entity.Order, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, errors.New("tracking link is required")
	}
	o, err := s.backend.UpdateTracking(ctx, id, link, strings.TrimSpace(trackingID))
	if err != nil {
		logger.Error().Err(err).Msgf("Error updating tracking for order %s", id)
		return nil, backendError(err, "Failed to update tracking")
	}
	s.refresh(ctx, actor)
	return o, nil
}

func (s *AdminService) Attempts(ctx context.Context, quoteID string) ([]entity.CheckoutEvent, error) {
	if s.attempts == nil {
		return nil, nil
	}
	return s.attempts.ListAttempts(ctx, quoteID)
}

func (s *AdminService) refresh(ctx context.Context, actor Actor) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.RefreshAll(ctx, actor); err != nil {
		logger.Warn().Err(err).Msgf("Error refreshing dashboard for user %s", actor.UserID)
	}
}
