package domain

import "time"

// Operator is a back-office account allowed to manage departments.
type Operator struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	DepartmentID *int64
	Authorities  []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
