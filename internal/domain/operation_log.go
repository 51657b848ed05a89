package domain

import "time"

// OperationAction names an audited department operation.
type OperationAction string

const (
	ActionDepartmentCreate OperationAction = "DEPARTMENT_CREATE"
	ActionDepartmentUpdate OperationAction = "DEPARTMENT_UPDATE"
	ActionDepartmentDelete OperationAction = "DEPARTMENT_DELETE"
)

// OperationLog is an immutable audit entry for a write performed by an operator.
type OperationLog struct {
	ID            int64
	Action        OperationAction
	OperatorID    *int64
	Username      string
	DepartmentIDs []int64
	Detail        map[string]any
	CreatedAt     time.Time
}
