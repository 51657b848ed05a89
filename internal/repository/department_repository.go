package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dept-service/internal/domain"
)

// DepartmentRepository manages department persistence. Soft-deleted rows are never returned.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	Update(ctx context.Context, dept *domain.Department) error
	GetByID(ctx context.Context, id int64) (*domain.Department, error)
	List(ctx context.Context, filter DepartmentFilter) ([]domain.Department, error)
	SoftDelete(ctx context.Context, ids []int64) (int64, error)
}

// DepartmentFilter narrows List. The zero value selects every live department.
type DepartmentFilter struct {
	Name     string
	Status   *domain.DepartmentStatus
	ParentID *int64
}

// Empty reports whether the filter selects the full snapshot.
func (f DepartmentFilter) Empty() bool {
	return f.Name == "" && f.Status == nil && f.ParentID == nil
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var departmentColumns = []string{
	"id", "parent_id", "name", "sort", "status", "leader", "phone", "email", "remark",
	"deleted", "created_at", "updated_at",
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	query, args, err := psql.Insert("departments").
		Columns("parent_id", "name", "sort", "status", "leader", "phone", "email", "remark").
		Values(dept.ParentID, dept.Name, dept.Sort, dept.Status, dept.Leader, dept.Phone, dept.Email, dept.Remark).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return mapWriteError(r.pool.QueryRow(ctx, query, args...).Scan(&dept.ID, &dept.CreatedAt, &dept.UpdatedAt))
}

func (r *departmentRepository) Update(ctx context.Context, dept *domain.Department) error {
	query, args, err := psql.Update("departments").
		Set("parent_id", dept.ParentID).
		Set("name", dept.Name).
		Set("sort", dept.Sort).
		Set("status", dept.Status).
		Set("leader", dept.Leader).
		Set("phone", dept.Phone).
		Set("email", dept.Email).
		Set("remark", dept.Remark).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": dept.ID, "deleted": false}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&dept.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return mapWriteError(err)
	}
	return nil
}

func (r *departmentRepository) GetByID(ctx context.Context, id int64) (*domain.Department, error) {
	query, args, err := psql.Select(departmentColumns...).
		From("departments").
		Where(sq.Eq{"id": id, "deleted": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	dept, err := scanDepartment(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return dept, nil
}

func (r *departmentRepository) List(ctx context.Context, filter DepartmentFilter) ([]domain.Department, error) {
	query, args, err := departmentListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *dept)
	}
	return result, rows.Err()
}

func (r *departmentRepository) SoftDelete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := psql.Update("departments").
		Set("deleted", true).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ids, "deleted": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanDepartment(row pgx.Row) (*domain.Department, error) {
	var dept domain.Department
	if err := row.Scan(
		&dept.ID,
		&dept.ParentID,
		&dept.Name,
		&dept.Sort,
		&dept.Status,
		&dept.Leader,
		&dept.Phone,
		&dept.Email,
		&dept.Remark,
		&dept.Deleted,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}

func departmentListQuery(filter DepartmentFilter) (string, []any, error) {
	builder := psql.Select(departmentColumns...).
		From("departments").
		Where(sq.Eq{"deleted": false}).
		OrderBy("parent_id", "sort", "id")

	if filter.Name != "" {
		builder = builder.Where(sq.ILike{"name": containsPattern(filter.Name)})
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.ParentID != nil {
		builder = builder.Where(sq.Eq{"parent_id": *filter.ParentID})
	}
	return builder.ToSql()
}
