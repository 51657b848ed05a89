package repository

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dept-service/internal/domain"
)

// OperationLogRepository stores audit entries.
type OperationLogRepository interface {
	Create(ctx context.Context, entry *domain.OperationLog) error
}

type operationLogRepository struct {
	pool *pgxpool.Pool
}

// NewOperationLogRepository builds the repository.
func NewOperationLogRepository(pool *pgxpool.Pool) OperationLogRepository {
	return &operationLogRepository{pool: pool}
}

func (r *operationLogRepository) Create(ctx context.Context, entry *domain.OperationLog) error {
	detail := []byte("{}")
	if len(entry.Detail) > 0 {
		encoded, err := sonic.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("encode operation detail: %w", err)
		}
		detail = encoded
	}
	ids := entry.DepartmentIDs
	if ids == nil {
		ids = []int64{}
	}

	query, args, err := psql.Insert("operation_logs").
		Columns("action", "operator_id", "username", "department_ids", "detail").
		Values(entry.Action, entry.OperatorID, entry.Username, ids, string(detail)).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt)
}
