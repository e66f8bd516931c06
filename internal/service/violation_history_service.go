package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
)

const defaultPriorViolationLimit = 5

type priorViolationStore interface {
	ListPriorViolations(ctx context.Context, filter models.PriorViolationFilter) ([]models.PriorViolation, int, error)
}

// ViolationHistoryService computes the repeat-violation signal of a case. It is
// always read from the store: dismissing an earlier report must clear the flag
// on the next read.
type ViolationHistoryService struct {
	repo       priorViolationStore
	categories categoryLookup
	limit      int
	logger     *zap.Logger
}

// NewViolationHistoryService constructs the service. limit caps the returned items.
func NewViolationHistoryService(repo priorViolationStore, categories categoryLookup, limit int, logger *zap.Logger) *ViolationHistoryService {
	if limit <= 0 {
		limit = defaultPriorViolationLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViolationHistoryService{repo: repo, categories: categories, limit: limit, logger: logger}
}

// PriorViolations returns non-dismissed reports for the same employee and
// category, excluding excludingReportID, most recent first.
func (s *ViolationHistoryService) PriorViolations(ctx context.Context, employeeID, categoryID, excludingReportID string) (*dto.ViolationHistory, error) {
	if strings.TrimSpace(employeeID) == "" || strings.TrimSpace(categoryID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee_id and category_id are required")
	}
	items, total, err := s.repo.ListPriorViolations(ctx, models.PriorViolationFilter{
		EmployeeID:      employeeID,
		CategoryID:      categoryID,
		ExcludeReportID: excludingReportID,
		Limit:           s.limit,
	})
	if err != nil {
		return nil, storeError(err, "report", "load violation history")
	}
	if items == nil {
		items = []models.PriorViolation{}
	}
	history := &dto.ViolationHistory{
		IsRepeatViolation:  total > 0,
		PreviousViolations: items,
		TotalCount:         total,
	}
	if history.IsRepeatViolation {
		history.Warning = RepeatViolationWarning(s.categoryName(ctx, categoryID), items, total)
	}
	return history, nil
}

func (s *ViolationHistoryService) categoryName(ctx context.Context, categoryID string) string {
	if s.categories == nil {
		return categoryID
	}
	category, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		s.logger.Debug("category lookup for warning failed", zap.String("category_id", categoryID), zap.Error(err))
		return categoryID
	}
	return category.Name
}

// RepeatViolationWarning renders the human readable repeat-violation notice.
func RepeatViolationWarning(categoryName string, items []models.PriorViolation, total int) string {
	refs := make([]string, 0, len(items))
	for _, item := range items {
		refs = append(refs, fmt.Sprintf("%s (%s)", item.ReportNumber, item.IncidentDate.Format("2006-01-02")))
	}
	warning := fmt.Sprintf("Repeat violation: employee has %d prior report(s) in %q", total, categoryName)
	if len(refs) > 0 {
		warning += ": " + strings.Join(refs, ", ")
	}
	if more := total - len(items); more > 0 {
		warning += fmt.Sprintf(" and %d more", more)
	}
	return warning
}
