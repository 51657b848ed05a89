package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dept-service/internal/api/dto"
	"github.com/spec-kit/dept-service/internal/auth"
	"github.com/spec-kit/dept-service/internal/domain"
	"github.com/spec-kit/dept-service/internal/service"
	apperrors "github.com/spec-kit/dept-service/pkg/util"
)

// AuthHandler exposes operator login and identity endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	operator, token, exp, err := h.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"operator": operatorResponse(operator),
			"auth":     dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": operatorResponse(principal.Operator)})
}

func operatorResponse(op *domain.Operator) dto.OperatorResponse {
	authorities := op.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	return dto.OperatorResponse{
		ID:           op.ID,
		Username:     op.Username,
		DisplayName:  op.DisplayName,
		DepartmentID: op.DepartmentID,
		Authorities:  authorities,
	}
}
