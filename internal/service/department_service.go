package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"github.com/spec-kit/dept-service/internal/domain"
	"github.com/spec-kit/dept-service/internal/events"
	"github.com/spec-kit/dept-service/internal/observability"
	"github.com/spec-kit/dept-service/internal/repository"
	"github.com/spec-kit/dept-service/internal/tree"
	apperrors "github.com/spec-kit/dept-service/pkg/util"
)

// DepartmentService coordinates department reads, tree views and writes.
type DepartmentService struct {
	departments repository.DepartmentRepository
	operators   repository.OperatorRepository
	cache       repository.SnapshotCache
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// DepartmentDependencies bundles collaborators for the department service.
type DepartmentDependencies struct {
	DepartmentRepo repository.DepartmentRepository
	OperatorRepo   repository.OperatorRepository
	Cache          repository.SnapshotCache
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// DeptTreeQuery filters the department tree. A zero RootID means the whole forest.
type DeptTreeQuery struct {
	Name   string
	Status *domain.DepartmentStatus
	RootID int64
}

func (q DeptTreeQuery) filter() repository.DepartmentFilter {
	return repository.DepartmentFilter{Name: strings.TrimSpace(q.Name), Status: q.Status}
}

// DeptInput carries a create (ID == 0) or update request.
type DeptInput struct {
	ID       int64
	ParentID int64
	Name     string
	Sort     int
	Status   *domain.DepartmentStatus `copier:"-"`
	Leader   string
	Phone    string
	Email    string
	Remark   string
}

// NewDepartmentService constructs the service.
func NewDepartmentService(deps DepartmentDependencies) *DepartmentService {
	cache := deps.Cache
	if cache == nil {
		cache = repository.NoopSnapshotCache{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{
		departments: deps.DepartmentRepo,
		operators:   deps.OperatorRepo,
		cache:       cache,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// GetDeptTree returns the department forest below query.RootID.
//
// Name and status filters keep the matching departments together with their ancestors so
// every match stays reachable from the root. Asking for enabled departments only prunes
// disabled subtrees.
func (s *DepartmentService) GetDeptTree(ctx context.Context, query DeptTreeQuery) (tree.Result, error) {
	filter := query.filter()

	var records []domain.Department
	var err error
	if filter.Empty() {
		records, err = s.snapshot(ctx)
		if err != nil {
			return tree.Result{}, err
		}
	} else {
		// Both lists come from the store so matches and their ancestors agree.
		records, err = s.departments.List(ctx, repository.DepartmentFilter{})
		if err != nil {
			return tree.Result{}, err
		}
		matched, err := s.departments.List(ctx, filter)
		if err != nil {
			return tree.Result{}, err
		}
		records = withAncestors(records, matched, query.RootID)
	}

	opts := tree.Options{IncludeDisabled: true}
	if query.Status != nil && *query.Status == domain.DepartmentEnabled {
		opts.IncludeDisabled = false
	}
	return s.build(records, query.RootID, opts)
}

// GetDeptSelectTree returns the enabled departments shaped for picker widgets.
func (s *DepartmentService) GetDeptSelectTree(ctx context.Context) ([]tree.SelectNode, []tree.Warning, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.build(records, domain.RootDepartmentID, tree.Options{IncludeDisabled: false})
	if err != nil {
		return nil, nil, err
	}
	return tree.ToSelectTree(result.Nodes), result.Warnings, nil
}

// GetDepartment loads one live department.
func (s *DepartmentService) GetDepartment(ctx context.Context, id int64) (*domain.Department, error) {
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("department", map[string]any{"id": id})
		}
		return nil, err
	}
	return dept, nil
}

// SaveOrUpdate creates the department when input.ID is zero and updates it otherwise.
func (s *DepartmentService) SaveOrUpdate(ctx context.Context, actor events.Actor, input DeptInput) (*domain.Department, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, apperrors.NewValidationError("department name is required", map[string]any{"name": "required"})
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown department status", map[string]any{"status": *input.Status})
	}

	var existing *domain.Department
	if input.ID != 0 {
		current, err := s.GetDepartment(ctx, input.ID)
		if err != nil {
			return nil, err
		}
		existing = current
	}

	if err := s.validateParent(ctx, input); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueSiblingName(ctx, input); err != nil {
		return nil, err
	}

	var dept domain.Department
	if existing != nil {
		dept = *existing
	}
	status := dept.Status
	if err := copier.Copy(&dept, &input); err != nil {
		return nil, fmt.Errorf("map department input: %w", err)
	}
	switch {
	case input.Status != nil:
		dept.Status = *input.Status
	case existing == nil:
		dept.Status = domain.DepartmentEnabled
	default:
		dept.Status = status
	}

	payload := events.DepartmentChangedPayload{Name: dept.Name, ParentID: dept.ParentID, Status: int16(dept.Status)}
	eventType := events.EventDepartmentCreated
	if existing == nil {
		if err := s.departments.Create(ctx, &dept); err != nil {
			return nil, err
		}
	} else {
		if err := s.departments.Update(ctx, &dept); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("department", map[string]any{"id": dept.ID})
			}
			return nil, err
		}
		eventType = events.EventDepartmentUpdated
		if existing.ParentID != dept.ParentID {
			oldParent := existing.ParentID
			payload.OldParentID = &oldParent
		}
	}

	s.afterWrite(ctx, events.NewEvent(eventType, actor, []int64{dept.ID}, payload))
	return &dept, nil
}

// DeleteDepts soft-deletes the comma-separated department IDs in rawIDs.
// It refuses when a department keeps children outside the request or still has operators.
func (s *DepartmentService) DeleteDepts(ctx context.Context, actor events.Actor, rawIDs string) ([]int64, error) {
	ids, err := ParseDepartmentIDs(rawIDs)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		dept, err := s.GetDepartment(ctx, id)
		if err != nil {
			return nil, err
		}
		names = append(names, dept.Name)
	}

	all, err := s.departments.List(ctx, repository.DepartmentFilter{})
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		if slice.Contain(ids, rec.ParentID) && !slice.Contain(ids, rec.ID) {
			return nil, apperrors.NewConflict("department has child departments", map[string]any{
				"id":       rec.ParentID,
				"child_id": rec.ID,
			})
		}
	}

	if s.operators != nil {
		assigned, err := s.operators.CountByDepartments(ctx, ids)
		if err != nil {
			return nil, err
		}
		if assigned > 0 {
			return nil, apperrors.NewConflict("department has assigned operators", map[string]any{
				"ids":       ids,
				"operators": assigned,
			})
		}
	}

	if _, err := s.departments.SoftDelete(ctx, ids); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, events.NewEvent(events.EventDepartmentDeleted, actor, ids, events.DepartmentDeletedPayload{Names: names}))
	return ids, nil
}

// ParseDepartmentIDs parses a comma-separated list of positive IDs, dropping repeats.
func ParseDepartmentIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= domain.RootDepartmentID {
			return nil, apperrors.NewValidationError("invalid department id", map[string]any{"ids": part})
		}
		ids = append(ids, id)
	}
	return slice.Unique(ids), nil
}

func (s *DepartmentService) validateParent(ctx context.Context, input DeptInput) error {
	if input.ParentID == domain.RootDepartmentID {
		return nil
	}
	if input.ParentID < 0 {
		return apperrors.NewValidationError("invalid parent department", map[string]any{"parent_id": input.ParentID})
	}
	if input.ID != 0 && input.ParentID == input.ID {
		return apperrors.NewConflict("department cannot be its own parent", map[string]any{"id": input.ID})
	}
	if _, err := s.departments.GetByID(ctx, input.ParentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError("parent department does not exist", map[string]any{"parent_id": input.ParentID})
		}
		return err
	}
	if input.ID == 0 {
		return nil
	}

	all, err := s.departments.List(ctx, repository.DepartmentFilter{})
	if err != nil {
		return err
	}
	subtree, err := tree.Build(all, input.ID, tree.Options{IncludeDisabled: true})
	if err != nil {
		return err
	}
	if tree.Contains(subtree.Nodes, input.ParentID) {
		return apperrors.NewConflict("department cannot move below its own descendant", map[string]any{
			"id":        input.ID,
			"parent_id": input.ParentID,
		})
	}
	return nil
}

func (s *DepartmentService) ensureUniqueSiblingName(ctx context.Context, input DeptInput) error {
	parentID := input.ParentID
	siblings, err := s.departments.List(ctx, repository.DepartmentFilter{ParentID: &parentID})
	if err != nil {
		return err
	}
	for _, sibling := range siblings {
		if sibling.ID != input.ID && strings.EqualFold(sibling.Name, input.Name) {
			return apperrors.NewConflict("department name already used under this parent", map[string]any{
				"name":      input.Name,
				"parent_id": parentID,
			})
		}
	}
	return nil
}

// snapshot returns every live department, reading through the cache. The generation is read
// before List so a write landing in between leaves the stored list unreachable.
func (s *DepartmentService) snapshot(ctx context.Context) ([]domain.Department, error) {
	cached, gen, hit, cacheErr := s.cache.Get(ctx)
	if cacheErr != nil {
		s.logger.Warn("department snapshot cache read failed", zap.Error(cacheErr))
	} else if hit {
		return cached, nil
	}

	records, err := s.departments.List(ctx, repository.DepartmentFilter{})
	if err != nil {
		return nil, err
	}
	if cacheErr != nil {
		return records, nil
	}
	if err := s.cache.Set(ctx, gen, records); err != nil {
		s.logger.Warn("department snapshot cache write failed", zap.Error(err))
	}
	return records, nil
}

func (s *DepartmentService) build(records []domain.Department, rootID int64, opts tree.Options) (tree.Result, error) {
	result, err := tree.Build(records, rootID, opts)
	if err != nil {
		var integrity *tree.DataIntegrityError
		if errors.As(err, &integrity) {
			return tree.Result{}, apperrors.NewDataIntegrity("department tree root does not exist", err,
				map[string]any{"root_id": integrity.RootID})
		}
		return tree.Result{}, err
	}

	for _, w := range result.Warnings {
		s.logger.Warn("department tree anomaly",
			zap.String("kind", string(w.Kind)),
			zap.Int64("department_id", w.DepartmentID),
			zap.Int64("parent_id", w.ParentID),
			zap.String("detail", w.Message),
		)
		s.metrics.RecordTreeWarning(string(w.Kind))
	}
	return result, nil
}

func (s *DepartmentService) afterWrite(ctx context.Context, event events.Event) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("department snapshot cache invalidation failed", zap.Error(err))
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, event)
	}
}

// withAncestors narrows records to matched plus the ancestors of each match, and keeps
// rootID so the requested subtree can still be anchored.
func withAncestors(records, matched []domain.Department, rootID int64) []domain.Department {
	byID := make(map[int64]domain.Department, len(records))
	for _, rec := range records {
		if _, dup := byID[rec.ID]; !dup {
			byID[rec.ID] = rec
		}
	}

	keep := make(map[int64]struct{}, len(matched))
	if _, ok := byID[rootID]; ok {
		keep[rootID] = struct{}{}
	}
	for _, m := range matched {
		id := m.ID
		for {
			if _, seen := keep[id]; seen {
				break
			}
			rec, ok := byID[id]
			if !ok {
				break
			}
			keep[id] = struct{}{}
			if rec.IsTopLevel() {
				break
			}
			id = rec.ParentID
		}
	}

	out := make([]domain.Department, 0, len(keep))
	for _, rec := range records {
		if _, ok := keep[rec.ID]; ok {
			out = append(out, rec)
		}
	}
	return out
}
