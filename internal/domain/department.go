package domain

import "time"

// RootDepartmentID is the parent identifier of top-level departments.
const RootDepartmentID int64 = 0

// DepartmentStatus toggles whether a department is offered for selection.
type DepartmentStatus int16

const (
	DepartmentDisabled DepartmentStatus = 0
	DepartmentEnabled  DepartmentStatus = 1
)

// Valid reports whether s is a known status.
func (s DepartmentStatus) Valid() bool {
	return s == DepartmentDisabled || s == DepartmentEnabled
}

// Department represents one organizational unit in the hierarchy.
type Department struct {
	ID        int64
	ParentID  int64
	Name      string
	Sort      int
	Status    DepartmentStatus
	Leader    string
	Phone     string
	Email     string
	Remark    string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enabled reports whether the department is active.
func (d Department) Enabled() bool {
	return d.Status == DepartmentEnabled
}

// IsTopLevel reports whether the department hangs directly under the root sentinel.
func (d Department) IsTopLevel() bool {
	return d.ParentID == RootDepartmentID
}
