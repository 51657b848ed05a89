package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/copier"

	"github.com/spec-kit/dept-service/internal/api/dto"
	"github.com/spec-kit/dept-service/internal/auth"
	"github.com/spec-kit/dept-service/internal/domain"
	"github.com/spec-kit/dept-service/internal/events"
	"github.com/spec-kit/dept-service/internal/service"
	"github.com/spec-kit/dept-service/internal/tree"
	apperrors "github.com/spec-kit/dept-service/pkg/util"
)

// DepartmentHandler exposes the department endpoints.
type DepartmentHandler struct {
	departments *service.DepartmentService
}

// NewDepartmentHandler constructs handler.
func NewDepartmentHandler(departments *service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{departments: departments}
}

// Tree handles GET /dept.
func (h *DepartmentHandler) Tree(c *fiber.Ctx) error {
	query := service.DeptTreeQuery{Name: strings.TrimSpace(c.Query("name"))}

	if raw := c.Query("status"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 16)
		status := domain.DepartmentStatus(parsed)
		if err != nil || !status.Valid() {
			return apperrors.NewValidationError("invalid status", map[string]any{"status": raw})
		}
		query.Status = &status
	}
	if raw := c.Query("rootId"); raw != "" {
		rootID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || rootID < 0 {
			return apperrors.NewValidationError("invalid rootId", map[string]any{"rootId": raw})
		}
		query.RootID = rootID
	}

	result, err := h.departments.GetDeptTree(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(envelope(treeResponse(result.Nodes), result.Warnings))
}

// SelectTree handles GET /dept/deptSelectTree.
func (h *DepartmentHandler) SelectTree(c *fiber.Ctx) error {
	nodes, warnings, err := h.departments.GetDeptSelectTree(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(envelope(selectResponse(nodes), warnings))
}

// Get handles GET /dept/:id.
func (h *DepartmentHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("invalid department id", map[string]any{"id": c.Params("id")})
	}
	dept, err := h.departments.GetDepartment(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": deptResponse(*dept)})
}

// Create handles POST /dept.
func (h *DepartmentHandler) Create(c *fiber.Ctx) error {
	var req dto.DeptRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ID != 0 {
		return apperrors.NewValidationError("id must be omitted on create", map[string]any{"id": req.ID})
	}
	return h.save(c, req, http.StatusCreated)
}

// Update handles PUT /dept.
func (h *DepartmentHandler) Update(c *fiber.Ctx) error {
	var req dto.DeptRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ID == 0 {
		return apperrors.NewValidationError("id is required on update", map[string]any{"id": "required"})
	}
	return h.save(c, req, http.StatusOK)
}

// Delete handles DELETE /dept/:ids.
func (h *DepartmentHandler) Delete(c *fiber.Ctx) error {
	deleted, err := h.departments.DeleteDepts(c.UserContext(), actorFrom(c), c.Params("ids"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DeleteResponse{Deleted: deleted}})
}

func (h *DepartmentHandler) save(c *fiber.Ctx, req dto.DeptRequest, status int) error {
	var input service.DeptInput
	if err := copier.Copy(&input, &req); err != nil {
		return apperrors.NewInternalError(err)
	}
	if req.Status != nil {
		s := domain.DepartmentStatus(*req.Status)
		input.Status = &s
	}

	dept, err := h.departments.SaveOrUpdate(c.UserContext(), actorFrom(c), input)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": deptResponse(*dept)})
}

func actorFrom(c *fiber.Ctx) events.Actor {
	principal, _ := auth.PrincipalFromContext(c)
	return principal.Actor()
}

func envelope(data any, warnings []tree.Warning) fiber.Map {
	body := fiber.Map{"data": data}
	if len(warnings) > 0 {
		out := make([]dto.WarningResponse, 0, len(warnings))
		for _, w := range warnings {
			out = append(out, dto.WarningResponse{
				Kind:         string(w.Kind),
				DepartmentID: w.DepartmentID,
				ParentID:     w.ParentID,
				Message:      w.Message,
			})
		}
		body["warnings"] = out
	}
	return body
}

func deptResponse(d domain.Department) dto.DeptResponse {
	return dto.DeptResponse{
		ID:        d.ID,
		ParentID:  d.ParentID,
		Name:      d.Name,
		Sort:      d.Sort,
		Status:    int16(d.Status),
		Leader:    d.Leader,
		Phone:     d.Phone,
		Email:     d.Email,
		Remark:    d.Remark,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func treeResponse(nodes []tree.Node) []dto.DeptNodeResponse {
	out := make([]dto.DeptNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, dto.DeptNodeResponse{
			DeptResponse: deptResponse(n.Department),
			Children:     treeResponse(n.Children),
		})
	}
	return out
}

func selectResponse(nodes []tree.SelectNode) []dto.SelectNodeResponse {
	out := make([]dto.SelectNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, dto.SelectNodeResponse{
			ID:       n.ID,
			Label:    n.Label,
			Children: selectResponse(n.Children),
		})
	}
	return out
}
