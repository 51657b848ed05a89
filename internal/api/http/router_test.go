package http

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dept-service/internal/api/http/handlers"
	"github.com/spec-kit/dept-service/internal/auth"
	"github.com/spec-kit/dept-service/internal/config"
	"github.com/spec-kit/dept-service/internal/domain"
	"github.com/spec-kit/dept-service/internal/events"
	"github.com/spec-kit/dept-service/internal/observability"
	"github.com/spec-kit/dept-service/internal/persistence"
	"github.com/spec-kit/dept-service/internal/repository/memrepo"
	"github.com/spec-kit/dept-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	ops     *memrepo.Operators
	logs    *memrepo.OperationLogs
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, seed ...domain.Department) *testServer {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.Config{
		App:  config.AppConfig{Name: "dept-service", Version: "test"},
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
	}

	ts := &testServer{
		ops:     memrepo.NewOperators(),
		logs:    memrepo.NewOperationLogs(),
		metrics: observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewAuditService(dispatcher, ts.logs, logger).RegisterHandlers()

	authService := service.NewAuthService(cfg, service.AuthDependencies{OperatorRepo: ts.ops, Logger: logger})
	deptService := service.NewDepartmentService(service.DepartmentDependencies{
		DepartmentRepo: memrepo.NewDepartments(seed...),
		OperatorRepo:   ts.ops,
		Cache:          &memrepo.SnapshotCache{},
		Dispatcher:     dispatcher,
		Metrics:        ts.metrics,
		Logger:         logger,
	})
	ts.tokens = authService.TokenManager()

	ts.app = fiber.New(fiber.Config{JSONEncoder: sonic.Marshal, JSONDecoder: sonic.Unmarshal})
	RegisterMiddlewares(ts.app, logger, ts.metrics, 0)
	RegisterRoutes(ts.app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, &persistence.Postgres{}, nil),
		Metrics:        handlers.NewMetricsHandler(ts.metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Departments:    handlers.NewDepartmentHandler(deptService),
		AuthMiddleware: auth.NewAuthMiddleware(ts.tokens, ts.ops),
	})
	return ts
}

func (ts *testServer) operator(t *testing.T, name string, authorities ...string) string {
	t.Helper()
	hash, err := auth.HashPassword("pw-"+name, 4)
	require.NoError(t, err)
	op := &domain.Operator{Username: name, PasswordHash: hash, Active: true, Authorities: authorities}
	require.NoError(t, ts.ops.Create(context.Background(), op))
	token, _, err := ts.tokens.GenerateToken(op.ID, op.Username, op.Authorities)
	require.NoError(t, err)
	return token
}

type apiResponse struct {
	Data     any `json:"data"`
	Warnings []struct {
		Kind         string `json:"kind"`
		DepartmentID int64  `json:"department_id"`
	} `json:"warnings"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (ts *testServer) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, sonic.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

func seedOrg() []domain.Department {
	return []domain.Department{
		{ID: 1, ParentID: 0, Name: "Head Office", Sort: 1, Status: domain.DepartmentEnabled},
		{ID: 2, ParentID: 1, Name: "Engineering", Sort: 2, Status: domain.DepartmentEnabled},
		{ID: 3, ParentID: 1, Name: "Sales", Sort: 1, Status: domain.DepartmentEnabled},
		{ID: 4, ParentID: 2, Name: "Legacy", Sort: 1, Status: domain.DepartmentDisabled},
	}
}

type treeNode struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Status   int16      `json:"status"`
	Children []treeNode `json:"children"`
}

type selectNode struct {
	ID       int64        `json:"id"`
	Label    string       `json:"label"`
	Children []selectNode `json:"children"`
}

func TestDeptTree_AuthorityGating(t *testing.T) {
	ts := newTestServer(t, seedOrg()...)
	viewer := ts.operator(t, "viewer", domain.AuthorityDeptQuery)
	nobody := ts.operator(t, "nobody")

	var resp apiResponse
	require.Equal(t, fiber.StatusUnauthorized, ts.call(t, fiber.MethodGet, "/dept", "", nil, &resp))
	require.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	resp = apiResponse{}
	require.Equal(t, fiber.StatusForbidden, ts.call(t, fiber.MethodGet, "/dept", nobody, nil, &resp))
	require.Equal(t, "FORBIDDEN", resp.Error.Code)

	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/dept", viewer, nil, nil))
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/dept/deptSelectTree", nobody, nil, nil))
	require.Equal(t, fiber.StatusForbidden, ts.call(t, fiber.MethodPost, "/dept", viewer, map[string]any{"name": "X"}, nil))
	require.Equal(t, fiber.StatusForbidden, ts.call(t, fiber.MethodDelete, "/dept/3", viewer, nil, nil))
}

func TestDeptTree_Shape(t *testing.T) {
	ts := newTestServer(t, seedOrg()...)
	token := ts.operator(t, "viewer", "sys_dept_*")

	var resp struct {
		Data     []treeNode `json:"data"`
		Warnings []any      `json:"warnings"`
	}
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/dept", token, nil, &resp))
	require.Nil(t, resp.Warnings)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Head Office", resp.Data[0].Name)
	require.Equal(t, []int64{3, 2}, []int64{resp.Data[0].Children[0].ID, resp.Data[0].Children[1].ID})
	require.Equal(t, int64(4), resp.Data[0].Children[1].Children[0].ID)
	require.NotNil(t, resp.Data[0].Children[0].Children)

	resp.Data = nil
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/dept?status=1", token, nil, &resp))
	require.Empty(t, resp.Data[0].Children[1].Children)

	resp.Data = nil
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/dept?rootId=2", token, nil, &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, int64(4), resp.Data[0].ID)
}

func TestDeptTree_QueryErrors(t *testing.T) {
	ts := newTestServer(t, seedOrg()...)
	token := ts.operator(t, "viewer", domain.AuthorityDeptQuery)

	var resp apiResponse
	require.Equal(t, fiber.StatusBadRequest, ts.call(t, fiber.MethodGet, "/dept?status=9", token, nil, &resp))
	require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)

	resp = apiResponse{}
	require.Equal(t, fiber.StatusUnprocessableEntity, ts.call(t, fiber.MethodGet, "/dept?rootId=404", token, nil, &resp))
	require.Equal(t, "DATA_INTEGRITY", resp.Error.Code)
}

func TestDeptTree_WarningsInEnvelope(t *testing.T) {
	ts := newTestServer(t, domain.Department{ID: 5, ParentID: 999, Name: "Stray", Status: domain.DepartmentEnabled})
	token := ts.operator(t, "viewer", domain.AuthorityDeptQuery)

	var resp apiResponse
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/dept", token, nil, &resp))
	require.Len(t, resp.Warnings, 1)
	require.Equal(t, "orphan", resp.Warnings[0].Kind)
	require.Equal(t, int64(5), resp.Warnings[0].DepartmentID)
}

func TestDeptSelectTree(t *testing.T) {
	ts := newTestServer(t, seedOrg()...)
	token := ts.operator(t, "anyone")

	var resp struct {
		Data []selectNode `json:"data"`
	}
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/dept/deptSelectTree", token, nil, &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Head Office", resp.Data[0].Label)
	require.Len(t, resp.Data[0].Children, 2)
	require.Empty(t, resp.Data[0].Children[1].Children)
}

func TestDeptCRUD(t *testing.T) {
	ts := newTestServer(t, seedOrg()...)
	admin := ts.operator(t, "admin", domain.AuthorityAll)

	var created struct {
		Data struct {
			ID       int64  `json:"id"`
			ParentID int64  `json:"parent_id"`
			Name     string `json:"name"`
			Status   int16  `json:"status"`
		} `json:"data"`
	}
	status := ts.call(t, fiber.MethodPost, "/dept", admin, map[string]any{
		"parent_id": 3,
		"name":      "Inside Sales",
		"sort":      1,
		"email":     "inside@example.com",
	}, &created)
	require.Equal(t, fiber.StatusCreated, status)
	require.NotZero(t, created.Data.ID)
	require.Equal(t, int16(1), created.Data.Status)

	var got apiResponse
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/dept/3", admin, nil, &got))

	status = ts.call(t, fiber.MethodPut, "/dept", admin, map[string]any{
		"id":        created.Data.ID,
		"parent_id": 1,
		"name":      "Field Sales",
		"status":    0,
	}, &created)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Field Sales", created.Data.Name)
	require.Equal(t, int16(0), created.Data.Status)

	var deleted struct {
		Data struct {
			Deleted []int64 `json:"deleted"`
		} `json:"data"`
	}
	path := "/dept/" + itoa(created.Data.ID)
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodDelete, path, admin, nil, &deleted))
	require.Equal(t, []int64{created.Data.ID}, deleted.Data.Deleted)

	got = apiResponse{}
	require.Equal(t, fiber.StatusNotFound, ts.call(t, fiber.MethodGet, path, admin, nil, &got))
	require.Equal(t, "NOT_FOUND", got.Error.Code)

	entries := ts.logs.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, domain.ActionDepartmentCreate, entries[0].Action)
	require.Equal(t, domain.ActionDepartmentUpdate, entries[1].Action)
	require.Equal(t, domain.ActionDepartmentDelete, entries[2].Action)
	require.Equal(t, "admin", entries[2].Username)
}

func TestDeptWrite_ValidationAndConflicts(t *testing.T) {
	ts := newTestServer(t, seedOrg()...)
	admin := ts.operator(t, "admin", domain.AuthorityAll)

	var resp apiResponse
	require.Equal(t, fiber.StatusBadRequest, ts.call(t, fiber.MethodPost, "/dept", admin, map[string]any{
		"parent_id": 1,
		"email":     "not-an-email",
	}, &resp))
	require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	require.Equal(t, "required", resp.Error.Details["name"])
	require.Equal(t, "email", resp.Error.Details["email"])

	resp = apiResponse{}
	require.Equal(t, fiber.StatusBadRequest, ts.call(t, fiber.MethodPut, "/dept", admin, map[string]any{"name": "No Id"}, &resp))

	resp = apiResponse{}
	require.Equal(t, fiber.StatusConflict, ts.call(t, fiber.MethodPut, "/dept", admin, map[string]any{
		"id": 1, "parent_id": 2, "name": "Head Office",
	}, &resp))
	require.Equal(t, "CONFLICT", resp.Error.Code)

	resp = apiResponse{}
	require.Equal(t, fiber.StatusConflict, ts.call(t, fiber.MethodDelete, "/dept/2", admin, nil, &resp))

	resp = apiResponse{}
	require.Equal(t, fiber.StatusBadRequest, ts.call(t, fiber.MethodDelete, "/dept/2,x", admin, nil, &resp))
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	ts.operator(t, "alice", domain.AuthorityDeptQuery)

	var login struct {
		Data struct {
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
		} `json:"data"`
	}
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodPost, "/auth/login", "", map[string]any{
		"username": "alice", "password": "pw-alice",
	}, &login))
	require.NotEmpty(t, login.Data.Auth.Token)

	var me struct {
		Data struct {
			Username    string   `json:"username"`
			Authorities []string `json:"authorities"`
		} `json:"data"`
	}
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/auth/me", login.Data.Auth.Token, nil, &me))
	require.Equal(t, "alice", me.Data.Username)
	require.Equal(t, []string{domain.AuthorityDeptQuery}, me.Data.Authorities)

	var resp apiResponse
	require.Equal(t, fiber.StatusUnauthorized, ts.call(t, fiber.MethodPost, "/auth/login", "", map[string]any{
		"username": "alice", "password": "wrong",
	}, &resp))
	require.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

func TestHealthMetricsAndNotFound(t *testing.T) {
	ts := newTestServer(t, seedOrg()...)

	var ready struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/health/ready", "", nil, &ready))
	require.Equal(t, "in-memory", ready.Dependencies["postgres"])

	var resp apiResponse
	require.Equal(t, fiber.StatusNotFound, ts.call(t, fiber.MethodGet, "/nowhere", "", nil, &resp))
	require.Equal(t, "NOT_FOUND", resp.Error.Code)

	var metrics struct {
		Data observability.MetricsSnapshot `json:"data"`
	}
	require.Equal(t, fiber.StatusOK, ts.call(t, fiber.MethodGet, "/metrics", "", nil, &metrics))
	require.NotEmpty(t, metrics.Data.Requests)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(fiber.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	resp, err = ts.app.Test(httptest.NewRequest(fiber.MethodGet, "/health/live", nil), -1)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
