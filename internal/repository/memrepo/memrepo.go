// Package memrepo holds in-memory repositories used when no database is configured and
// as fakes in tests.
package memrepo

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/dept-service/internal/domain"
	"github.com/spec-kit/dept-service/internal/repository"
)

// Departments is a concurrency-safe DepartmentRepository.
type Departments struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]domain.Department
}

// NewDepartments returns a store seeded with records. Seeded IDs are kept as given.
func NewDepartments(seed ...domain.Department) *Departments {
	d := &Departments{rows: make(map[int64]domain.Department, len(seed))}
	for _, rec := range seed {
		d.rows[rec.ID] = rec
		if rec.ID > d.nextID {
			d.nextID = rec.ID
		}
	}
	return d
}

func (d *Departments) Create(_ context.Context, dept *domain.Department) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	now := time.Now().UTC()
	dept.ID = d.nextID
	dept.CreatedAt = now
	dept.UpdatedAt = now
	d.rows[dept.ID] = *dept
	return nil
}

func (d *Departments) Update(_ context.Context, dept *domain.Department) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.rows[dept.ID]
	if !ok || current.Deleted {
		return repository.ErrNotFound
	}
	dept.CreatedAt = current.CreatedAt
	dept.UpdatedAt = time.Now().UTC()
	dept.Deleted = false
	d.rows[dept.ID] = *dept
	return nil
}

func (d *Departments) GetByID(_ context.Context, id int64) (*domain.Department, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.rows[id]
	if !ok || rec.Deleted {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (d *Departments) List(_ context.Context, filter repository.DepartmentFilter) ([]domain.Department, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name := strings.ToLower(filter.Name)
	var result []domain.Department
	for _, rec := range d.rows {
		if rec.Deleted {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(rec.Name), name) {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.ParentID != nil && rec.ParentID != *filter.ParentID {
			continue
		}
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.Sort != b.Sort {
			return a.Sort < b.Sort
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (d *Departments) SoftDelete(_ context.Context, ids []int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var affected int64
	for _, id := range ids {
		rec, ok := d.rows[id]
		if !ok || rec.Deleted {
			continue
		}
		rec.Deleted = true
		rec.UpdatedAt = time.Now().UTC()
		d.rows[id] = rec
		affected++
	}
	return affected, nil
}

// Operators is a concurrency-safe OperatorRepository.
type Operators struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]domain.Operator
}

// NewOperators returns an empty operator store.
func NewOperators() *Operators {
	return &Operators{rows: make(map[int64]domain.Operator)}
}

func (o *Operators) Create(_ context.Context, op *domain.Operator) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, existing := range o.rows {
		if existing.Username == op.Username {
			return repository.ErrDuplicate
		}
	}
	o.nextID++
	now := time.Now().UTC()
	op.ID = o.nextID
	op.CreatedAt = now
	op.UpdatedAt = now
	stored := *op
	stored.Authorities = slices.Clone(op.Authorities)
	o.rows[op.ID] = stored
	return nil
}

func (o *Operators) GetByID(_ context.Context, id int64) (*domain.Operator, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	op, ok := o.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	op.Authorities = slices.Clone(op.Authorities)
	return &op, nil
}

func (o *Operators) GetByUsername(_ context.Context, username string) (*domain.Operator, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, op := range o.rows {
		if op.Username == username {
			op.Authorities = slices.Clone(op.Authorities)
			return &op, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (o *Operators) Count(context.Context) (int64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return int64(len(o.rows)), nil
}

func (o *Operators) CountByDepartments(_ context.Context, departmentIDs []int64) (int64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var total int64
	for _, op := range o.rows {
		if op.DepartmentID != nil && slices.Contains(departmentIDs, *op.DepartmentID) {
			total++
		}
	}
	return total, nil
}

// OperationLogs records audit entries in memory.
type OperationLogs struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.OperationLog
}

// NewOperationLogs returns an empty log store.
func NewOperationLogs() *OperationLogs {
	return &OperationLogs{}
}

func (l *OperationLogs) Create(_ context.Context, entry *domain.OperationLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	entry.ID = l.nextID
	entry.CreatedAt = time.Now().UTC()
	l.entries = append(l.entries, *entry)
	return nil
}

// Entries returns a copy of every stored entry in insertion order.
func (l *OperationLogs) Entries() []domain.OperationLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// SnapshotCache is an in-memory SnapshotCache that counts hits and invalidations.
// Like the redis cache it ignores Set calls for a generation that has been invalidated.
type SnapshotCache struct {
	mu            sync.Mutex
	gen           int64
	records       []domain.Department
	cachedGen     int64
	cached        bool
	Hits          int
	Invalidations int
}

func (c *SnapshotCache) Get(context.Context) ([]domain.Department, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cached || c.cachedGen != c.gen {
		return nil, c.gen, false, nil
	}
	c.Hits++
	return slices.Clone(c.records), c.gen, true, nil
}

func (c *SnapshotCache) Set(_ context.Context, gen int64, records []domain.Department) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.records = slices.Clone(records)
	c.cachedGen = gen
	c.cached = true
	return nil
}

func (c *SnapshotCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.records = nil
	c.cached = false
	c.Invalidations++
	return nil
}

var (
	_ repository.DepartmentRepository   = (*Departments)(nil)
	_ repository.OperatorRepository     = (*Operators)(nil)
	_ repository.OperationLogRepository = (*OperationLogs)(nil)
	_ repository.SnapshotCache          = (*SnapshotCache)(nil)
)
