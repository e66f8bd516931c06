package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/internal/repository"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
	"github.com/noah-isme/hris-discipline-api/pkg/middleware/requestid"
)

// RoleLookup resolves the role of an actor. Actor ids share the employee id space.
type RoleLookup interface {
	RoleOf(ctx context.Context, actorID string) (models.UserRole, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EventNotifier receives workflow events after their transition committed.
// Implementations must not block the caller.
type EventNotifier interface {
	Notify(ctx context.Context, events ...models.NotificationEvent)
}

type categoryLookup interface {
	Get(ctx context.Context, id string) (*models.DisciplinaryCategory, error)
}

// RoleSet is an allow-list of roles.
type RoleSet map[models.UserRole]struct{}

// NewRoleSet builds a set from roles.
func NewRoleSet(roles ...models.UserRole) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(role models.UserRole) bool {
	_, ok := s[role]
	return ok
}

func (s RoleSet) String() string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

var (
	// ReportingRoles may file reports.
	ReportingRoles = NewRoleSet(models.RoleManager, models.RoleHR, models.RoleHRManager, models.RoleSuperAdmin)
	// HRRoles may review reports, issue actions and assign investigators.
	HRRoles = NewRoleSet(models.RoleHR, models.RoleHRManager, models.RoleSuperAdmin)
	// InvestigatorRoles may be assigned to investigate an action.
	InvestigatorRoles = NewRoleSet(models.RoleManager, models.RoleHR, models.RoleHRManager)
	// DefaultVerdictRoles may close an action with a verdict.
	DefaultVerdictRoles = []models.UserRole{models.RoleHRManager, models.RoleSuperAdmin}
)

// WorkflowPolicy carries the tunable rules of the case workflow.
type WorkflowPolicy struct {
	RequireExplanationBeforeVerdict bool
	VerdictRoles                    RoleSet
}

// DefaultWorkflowPolicy requires an explanation and restricts verdicts to HR managers.
func DefaultWorkflowPolicy() WorkflowPolicy {
	return WorkflowPolicy{
		RequireExplanationBeforeVerdict: true,
		VerdictRoles:                    NewRoleSet(DefaultVerdictRoles...),
	}
}

// authorize checks that actorID resolves to a role in allowed.
func authorize(ctx context.Context, roles RoleLookup, actorID string, allowed RoleSet, what string) (models.UserRole, error) {
	if strings.TrimSpace(actorID) == "" {
		return "", appErrors.ErrUnauthorized
	}
	if roles == nil {
		return "", appErrors.Clone(appErrors.ErrServiceNotConfigured, "identity provider not configured")
	}
	role, err := roles.RoleOf(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrForbidden, "actor is not an active user")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve actor role")
	}
	if !allowed.Has(role) {
		return role, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not %s", role, what))
	}
	return role, nil
}

// storeError translates repository failures into typed errors.
func storeError(err error, entity, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Clone(appErrors.ErrConcurrentModification, entity+" was modified concurrently, refetch and retry")
	case errors.Is(err, repository.ErrForeignKey):
		return appErrors.Wrap(err, appErrors.ErrReferentialIntegrity.Code, appErrors.ErrReferentialIntegrity.Status, entity+" references a missing record")
	default:
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+op)
	}
}

func validationError(err error, what string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+what+" payload")
		appErr.Details = fields
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+what+" payload")
}

// registerDisciplineValidations adds the enum tags used by discipline payloads.
func registerDisciplineValidations(v *validator.Validate) {
	_ = v.RegisterValidation("action_type", func(fl validator.FieldLevel) bool {
		return models.ActionType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.Priority(strings.ToLower(fl.Field().String())).Valid()
	})
	_ = v.RegisterValidation("verdict", func(fl validator.FieldLevel) bool {
		return models.Verdict(strings.ToLower(fl.Field().String())).Valid()
	})
}

func newDisciplineValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		v = validator.New()
	}
	registerDisciplineValidations(v)
	return v
}

func emitAudit(ctx context.Context, audit auditWriter, logger *zap.Logger, entry *models.AuditLog) {
	if audit == nil || entry == nil {
		return
	}
	if entry.IPAddress == "" {
		entry.IPAddress = "system"
	}
	if entry.UserAgent == "" {
		entry.UserAgent = "discipline-service"
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to persist audit log",
			zap.String("action", entry.Action),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err))
	}
}

func logTransition(ctx context.Context, logger *zap.Logger, entity models.HistoryEntity, id, from, to, actor string) {
	fields := []zap.Field{
		zap.String("entity", string(entity)),
		zap.String("id", id),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("actor", actor),
	}
	if rid := requestid.FromContext(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	logger.Info("discipline transition", fields...)
}

func historyStep(entity models.HistoryEntity, id, from, to, actor string, note *string, at time.Time) models.StatusHistory {
	var fromPtr *string
	if from != "" {
		f := from
		fromPtr = &f
	}
	return models.StatusHistory{
		EntityType: entity,
		EntityID:   id,
		FromStatus: fromPtr,
		ToStatus:   to,
		ActorID:    actor,
		Note:       note,
		CreatedAt:  at,
	}
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

