package app

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chefkeenan/Lume/internal/clock"
	"github.com/chefkeenan/Lume/internal/domain"
	"github.com/chefkeenan/Lume/internal/labels"
)

type CatalogRepository interface {
	CreateProduct(ctx context.Context, p domain.Product) error
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateSession(ctx context.Context, s domain.Session) error
	ListSessions(ctx context.Context) ([]domain.Session, error)
}

// CatalogService seeds and lists resources. It never makes capacity
// decisions; those go through the ledger.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateProductInput struct {
	Name       string
	Stock      int
	Price      decimal.Decimal
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Product{}, domain.NewValidationError("name", "required")
	}
	if in.Stock < 0 {
		return domain.Product{}, domain.NewValidationError("stock", "must not be negative")
	}
	if in.Price.IsNegative() {
		return domain.Product{}, domain.NewValidationError("price", "must not be negative")
	}
	if err := checkWindow(in.ValidFrom, in.ValidUntil); err != nil {
		return domain.Product{}, err
	}

	p := domain.Product{
		ID:        newUUID(),
		Name:      name,
		Stock:     in.Stock,
		Price:     in.Price,
		InStock:   in.Stock > 0,
		Validity:  domain.Window{From: in.ValidFrom, Until: in.ValidUntil},
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

type CreateSessionInput struct {
	Title       string
	Category    domain.SessionCategory
	Instructor  string
	Room        string
	Days        []int
	TimeSlot    string
	CapacityMax int
	Price       decimal.Decimal
	StartsAt    *time.Time
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

func (s *CatalogService) CreateSession(ctx context.Context, in CreateSessionInput) (domain.Session, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Session{}, domain.NewValidationError("title", "required")
	}
	if in.CapacityMax <= 0 {
		return domain.Session{}, domain.NewValidationError("capacity_max", "must be greater than zero")
	}
	if in.Price.IsNegative() {
		return domain.Session{}, domain.NewValidationError("price", "must not be negative")
	}
	category := in.Category
	if category == "" {
		category = domain.CategoryDaily
	}
	if category != domain.CategoryDaily && category != domain.CategoryWeekly {
		return domain.Session{}, domain.NewValidationError("category", "must be daily or weekly")
	}
	for _, d := range in.Days {
		if !labels.ValidWeekday(d) {
			return domain.Session{}, domain.NewValidationError("days", "weekday out of range: "+labels.WeekdayName(d))
		}
	}
	if err := checkWindow(in.ValidFrom, in.ValidUntil); err != nil {
		return domain.Session{}, err
	}

	sess := domain.Session{
		ID:          newUUID(),
		Title:       title,
		Category:    category,
		Instructor:  strings.TrimSpace(in.Instructor),
		Room:        strings.TrimSpace(in.Room),
		Days:        in.Days,
		TimeSlot:    in.TimeSlot,
		CapacityMax: in.CapacityMax,
		Price:       in.Price,
		Available:   true,
		StartsAt:    in.StartsAt,
		Validity:    domain.Window{From: in.ValidFrom, Until: in.ValidUntil},
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *CatalogService) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.repo.ListSessions(ctx)
}

func checkWindow(from, until *time.Time) error {
	if from != nil && until != nil && !until.After(*from) {
		return domain.NewValidationError("valid_until", "must be after valid_from")
	}
	return nil
}
