package services

import (
	"context"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/repository"
)

// ProfileService stores the current user's profile and serves the
// category catalog.
type ProfileService struct {
	repo       *repository.Repository[core.Profile]
	categories core.Categories
	logger     *log.Logger
}

func NewProfileService(repo *repository.Repository[core.Profile], categories core.Categories, logger *log.Logger) *ProfileService {
	if categories == nil {
		categories = core.DefaultCategories()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ProfileService{repo: repo, categories: categories, logger: logger.WithComponent(log.ComponentApp)}
}

func (s *ProfileService) Get(ctx context.Context) (core.Profile, error) {
	p, err := s.repo.Get(ctx)
	if err != nil {
		return core.Profile{}, core.NewPersistenceError("load profile", err)
	}
	return p, nil
}

func (s *ProfileService) Update(ctx context.Context, p core.Profile) (core.Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	if err := s.repo.Set(ctx, p); err != nil {
		return core.Profile{}, core.NewPersistenceError("save profile", err)
	}
	s.logger.InfoContext(ctx, "Profile updated", "currency", p.Currency, "theme", p.Theme)
	return p, nil
}

// Categories returns the configured catalog for each entry type.
func (s *ProfileService) Categories() core.Categories {
	return core.Categories{
		core.Income:  s.categories.For(core.Income),
		core.Expense: s.categories.For(core.Expense),
	}
}
