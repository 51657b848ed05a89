package dto

import "time"

// DeptRequest is the body of POST /dept and PUT /dept.
type DeptRequest struct {
	ID       int64  `json:"id" validate:"gte=0"`
	ParentID int64  `json:"parent_id" validate:"gte=0"`
	Name     string `json:"name" validate:"required,max=64"`
	Sort     int    `json:"sort" validate:"gte=0"`
	Status   *int16 `json:"status" validate:"omitempty,oneof=0 1"`
	Leader   string `json:"leader" validate:"max=64"`
	Phone    string `json:"phone" validate:"max=32"`
	Email    string `json:"email" validate:"omitempty,email,max=128"`
	Remark   string `json:"remark" validate:"max=255"`
}

// DeptResponse is a single department.
type DeptResponse struct {
	ID        int64     `json:"id"`
	ParentID  int64     `json:"parent_id"`
	Name      string    `json:"name"`
	Sort      int       `json:"sort"`
	Status    int16     `json:"status"`
	Leader    string    `json:"leader,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeptNodeResponse is a department tree node.
type DeptNodeResponse struct {
	DeptResponse
	Children []DeptNodeResponse `json:"children"`
}

// SelectNodeResponse is a picker entry.
type SelectNodeResponse struct {
	ID       int64                `json:"id"`
	Label    string               `json:"label"`
	Children []SelectNodeResponse `json:"children"`
}

// WarningResponse reports a recovered hierarchy anomaly.
type WarningResponse struct {
	Kind         string `json:"kind"`
	DepartmentID int64  `json:"department_id"`
	ParentID     int64  `json:"parent_id"`
	Message      string `json:"message"`
}

// DeleteResponse lists the removed department IDs.
type DeleteResponse struct {
	Deleted []int64 `json:"deleted"`
}
