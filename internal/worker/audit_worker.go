package worker

import (
	"github.com/spec-kit/dept-service/internal/service"
)

// StartAuditWorker registers the operation log handlers.
func StartAuditWorker(auditService *service.AuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
}
