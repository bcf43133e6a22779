package app

import (
	"context"
	"time"

	"github.com/chefkeenan/Lume/internal/clock"
	"github.com/chefkeenan/Lume/internal/domain"
)

type HistoryRepository interface {
	// ListOrders returns the owner's orders newest first, items included.
	ListOrders(ctx context.Context, ownerID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, ownerID, id string) (domain.Order, error)
	ListBookings(ctx context.Context, ownerID string) ([]domain.BookingEntry, error)
}

// HistoryService is the read-only order ledger.
type HistoryService struct {
	repo  HistoryRepository
	clock clock.Clock
	loc   *time.Location
}

func NewHistoryService(repo HistoryRepository, clk clock.Clock, loc *time.Location) *HistoryService {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryService{repo: repo, clock: clk, loc: loc}
}

func (s *HistoryService) ListOrders(ctx context.Context, ownerID string) ([]domain.Order, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.repo.ListOrders(ctx, ownerID)
}

func (s *HistoryService) GetOrder(ctx context.Context, ownerID, id string) (domain.Order, error) {
	if ownerID == "" {
		return domain.Order{}, domain.ErrOwnerRequired
	}
	return s.repo.GetOrder(ctx, ownerID, id)
}

// ListBookings returns booked sessions with their derived status.
func (s *HistoryService) ListBookings(ctx context.Context, ownerID string) ([]domain.BookingEntry, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	entries, err := s.repo.ListBookings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	today := s.today()
	for i := range entries {
		entries[i].Status = BookingStatusAt(entries[i], today)
	}
	return entries, nil
}

func (s *HistoryService) today() time.Time {
	return clock.StartOfDay(s.clock.Now(), s.loc)
}

// BookingStatusAt derives a booking's status. A session is completed once
// its scheduled day is before today; unscheduled sessions stay upcoming.
func BookingStatusAt(e domain.BookingEntry, today time.Time) domain.BookingStatus {
	switch {
	case e.Cancelled:
		return domain.BookingCancelled
	case e.ScheduledAt == nil:
		return domain.BookingUpcoming
	case e.ScheduledAt.Before(today):
		return domain.BookingCompleted
	default:
		return domain.BookingUpcoming
	}
}
