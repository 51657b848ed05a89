package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/dept-service/internal/domain"
	"github.com/spec-kit/dept-service/internal/events"
	"github.com/spec-kit/dept-service/internal/repository"
)

var auditActions = map[events.EventType]domain.OperationAction{
	events.EventDepartmentCreated: domain.ActionDepartmentCreate,
	events.EventDepartmentUpdated: domain.ActionDepartmentUpdate,
	events.EventDepartmentDeleted: domain.ActionDepartmentDelete,
}

// AuditService turns department events into operation log entries.
type AuditService struct {
	dispatcher events.Dispatcher
	logs       repository.OperationLogRepository
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logs repository.OperationLogRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logs:       logs,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventDepartmentCreated, a.record)
	a.dispatcher.Subscribe(events.EventDepartmentUpdated, a.record)
	a.dispatcher.Subscribe(events.EventDepartmentDeleted, a.record)
}

func (a *AuditService) record(ctx context.Context, event events.Event) error {
	action, ok := auditActions[event.Type]
	if !ok {
		return nil
	}

	a.logger.Info("department operation",
		zap.String("action", string(action)),
		zap.String("event_id", event.ID),
		zap.Int64s("department_ids", event.DepartmentIDs),
		zap.String("username", event.Actor.Username),
		zap.Any("payload", event.Payload),
	)
	if a.logs == nil {
		return nil
	}

	entry := &domain.OperationLog{
		Action:        action,
		OperatorID:    event.Actor.OperatorID,
		Username:      event.Actor.Username,
		DepartmentIDs: event.DepartmentIDs,
		Detail: map[string]any{
			"event_id": event.ID,
			"payload":  event.Payload,
		},
	}
	return a.logs.Create(ctx, entry)
}
