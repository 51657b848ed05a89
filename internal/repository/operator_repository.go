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

// OperatorRepository handles persistence for back-office operators.
type OperatorRepository interface {
	Create(ctx context.Context, op *domain.Operator) error
	GetByID(ctx context.Context, id int64) (*domain.Operator, error)
	GetByUsername(ctx context.Context, username string) (*domain.Operator, error)
	Count(ctx context.Context) (int64, error)
	CountByDepartments(ctx context.Context, departmentIDs []int64) (int64, error)
}

var operatorColumns = []string{
	"id", "username", "display_name", "password_hash", "department_id", "authorities",
	"active", "created_at", "updated_at",
}

type operatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository instantiates the repository.
func NewOperatorRepository(pool *pgxpool.Pool) OperatorRepository {
	return &operatorRepository{pool: pool}
}

func (r *operatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	authorities := op.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	query, args, err := psql.Insert("operators").
		Columns("username", "display_name", "password_hash", "department_id", "authorities", "active").
		Values(op.Username, op.DisplayName, op.PasswordHash, op.DepartmentID, authorities, op.Active).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return mapWriteError(r.pool.QueryRow(ctx, query, args...).Scan(&op.ID, &op.CreatedAt, &op.UpdatedAt))
}

func (r *operatorRepository) GetByID(ctx context.Context, id int64) (*domain.Operator, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *operatorRepository) GetByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	return r.getOne(ctx, sq.Eq{"username": username})
}

func (r *operatorRepository) getOne(ctx context.Context, where sq.Eq) (*domain.Operator, error) {
	query, args, err := psql.Select(operatorColumns...).From("operators").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var op domain.Operator
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&op.ID,
		&op.Username,
		&op.DisplayName,
		&op.PasswordHash,
		&op.DepartmentID,
		&op.Authorities,
		&op.Active,
		&op.CreatedAt,
		&op.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

func (r *operatorRepository) Count(ctx context.Context) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From("operators").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	err = r.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func (r *operatorRepository) CountByDepartments(ctx context.Context, departmentIDs []int64) (int64, error) {
	if len(departmentIDs) == 0 {
		return 0, nil
	}
	query, args, err := psql.Select("COUNT(*)").
		From("operators").
		Where(sq.Eq{"department_id": departmentIDs}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	err = r.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}
