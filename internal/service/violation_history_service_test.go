package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-discipline-api/internal/models"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
)

func prior(number string, day string) models.PriorViolation {
	at, _ := time.Parse("2006-01-02", day)
	return models.PriorViolation{ReportNumber: number, IncidentDate: at, Status: models.ReportStatusReported}
}

func TestViolationHistoryRepeat(t *testing.T) {
	repo := &priorViolationStub{
		items: []models.PriorViolation{prior("DR-000003", "2026-01-04"), prior("DR-000001", "2025-11-20")},
		total: 2,
	}
	svc := NewViolationHistoryService(repo, defaultCategories(), 0, nil)

	history, err := svc.PriorViolations(context.Background(), "emp-1", "cat-late", "rep-9")
	require.NoError(t, err)
	assert.True(t, history.IsRepeatViolation)
	assert.Equal(t, 2, history.TotalCount)
	assert.Equal(t, `Repeat violation: employee has 2 prior report(s) in "Tardiness": DR-000003 (2026-01-04), DR-000001 (2025-11-20)`, history.Warning)
	assert.Equal(t, models.PriorViolationFilter{EmployeeID: "emp-1", CategoryID: "cat-late", ExcludeReportID: "rep-9", Limit: 5}, repo.filter)
}

func TestViolationHistoryFirstOffence(t *testing.T) {
	svc := NewViolationHistoryService(&priorViolationStub{}, nil, 3, nil)

	history, err := svc.PriorViolations(context.Background(), "emp-1", "cat-late", "")
	require.NoError(t, err)
	assert.False(t, history.IsRepeatViolation)
	assert.NotNil(t, history.PreviousViolations)
	assert.Empty(t, history.Warning)
}

func TestViolationHistoryErrors(t *testing.T) {
	svc := NewViolationHistoryService(&priorViolationStub{err: errors.New("db down")}, nil, 3, nil)
	_, err := svc.PriorViolations(context.Background(), "emp-1", "cat-late", "")
	requireCode(t, err, appErrors.ErrInternal)

	_, err = svc.PriorViolations(context.Background(), "", "cat-late", "")
	requireCode(t, err, appErrors.ErrValidation)
}

func TestRepeatViolationWarningTruncates(t *testing.T) {
	warning := RepeatViolationWarning("cat-x", []models.PriorViolation{prior("DR-000010", "2026-02-01")}, 4)
	assert.Equal(t, `Repeat violation: employee has 4 prior report(s) in "cat-x": DR-000010 (2026-02-01) and 3 more`, warning)
}

func TestViolationHistoryFallsBackToCategoryID(t *testing.T) {
	repo := &priorViolationStub{items: []models.PriorViolation{prior("DR-000002", "2026-02-01")}, total: 1}
	svc := NewViolationHistoryService(repo, defaultCategories(), 5, nil)

	history, err := svc.PriorViolations(context.Background(), "emp-1", "cat-gone", "")
	require.NoError(t, err)
	assert.Contains(t, history.Warning, `in "cat-gone"`)
}
