package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

const categoryCachePrefix = "discipline:category:"

type categoryStore interface {
	GetByID(ctx context.Context, id string) (*models.DisciplinaryCategory, error)
	List(ctx context.Context, activeOnly bool) ([]models.DisciplinaryCategory, error)
}

// CategoryService is the read-only category lookup used by the workflow.
type CategoryService struct {
	repo   categoryStore
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCategoryService constructs the service. cache may be nil.
func NewCategoryService(repo categoryStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Get returns a category by id, consulting the cache first.
func (s *CategoryService) Get(ctx context.Context, id string) (*models.DisciplinaryCategory, error) {
	return loadThrough(ctx, s.cache, categoryCachePrefix+id, s.ttl, func(ctx context.Context) (*models.DisciplinaryCategory, error) {
		category, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, storeError(err, "category", "load category")
		}
		return category, nil
	})
}

// List returns categories, optionally only active ones.
func (s *CategoryService) List(ctx context.Context, activeOnly bool) ([]models.DisciplinaryCategory, error) {
	key := fmt.Sprintf("%slist:%t", categoryCachePrefix, activeOnly)
	return loadThrough(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]models.DisciplinaryCategory, error) {
		categories, err := s.repo.List(ctx, activeOnly)
		if err != nil {
			return nil, storeError(err, "category", "list categories")
		}
		if categories == nil {
			categories = []models.DisciplinaryCategory{}
		}
		return categories, nil
	})
}

// Invalidate drops every cached category, for use when master data changes.
func (s *CategoryService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, categoryCachePrefix+"*")
}
