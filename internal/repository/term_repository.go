package repository

import (
	"context"
	"fmt"

	"github.com/dunskii/lessondesk/internal/model"
	"github.com/dunskii/lessondesk/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TermRepository struct {
	pool *pgxpool.Pool
}

func NewTermRepository(pool *pgxpool.Pool) *TermRepository {
	return &TermRepository{pool: pool}
}

// GetByID получает учебный период по ID в рамках арендатора.
// Чужой или отсутствующий период неразличимы: возвращается nil.
func (r *TermRepository) GetByID(ctx context.Context, tenantID, id int64) (*model.Term, error) {
	query := `
		SELECT id, tenant_id, name, start_date, end_date, created_at, updated_at
		FROM terms
		WHERE tenant_id = $1 AND id = $2
	`

	var term model.Term
	err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&term.ID,
		&term.TenantID,
		&term.Name,
		&term.StartDate,
		&term.EndDate,
		&term.CreatedAt,
		&term.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get term by id: %w", err)
	}

	return &term, nil
}

// List получает все учебные периоды арендатора
func (r *TermRepository) List(ctx context.Context, tenantID int64) ([]*model.Term, error) {
	query := `
		SELECT id, tenant_id, name, start_date, end_date, created_at, updated_at
		FROM terms
		WHERE tenant_id = $1
		ORDER BY start_date
	`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	var terms []*model.Term
	for rows.Next() {
		var term model.Term
		err := rows.Scan(
			&term.ID,
			&term.TenantID,
			&term.Name,
			&term.StartDate,
			&term.EndDate,
			&term.CreatedAt,
			&term.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, &term)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}

	return terms, nil
}
