package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository читающая поверхность ростера: зачисления и
// семейные связи родитель-ученик. Записи ведёт внешний сервис.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// IsEnrolled проверяет активное зачисление ученика на урок
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, tenantID, lessonID, studentID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE tenant_id = $1 AND lesson_id = $2 AND student_id = $3 AND is_active
		)
	`

	var enrolled bool
	err := r.pool.QueryRow(ctx, query, tenantID, lessonID, studentID).Scan(&enrolled)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}

	return enrolled, nil
}

// FamilyOf возвращает учеников, за которых отвечает родитель
func (r *EnrollmentRepository) FamilyOf(ctx context.Context, tenantID, parentID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT student_id
		FROM enrollments
		WHERE tenant_id = $1 AND parent_id = $2
	`

	rows, err := r.pool.Query(ctx, query, tenantID, parentID)
	if err != nil {
		return nil, fmt.Errorf("get family of parent: %w", err)
	}
	defer rows.Close()

	var studentIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		studentIDs = append(studentIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student ids: %w", err)
	}

	return studentIDs, nil
}

// CountActiveByLesson возвращает количество активных зачислений по урокам
func (r *EnrollmentRepository) CountActiveByLesson(ctx context.Context, tenantID int64, lessonIDs []int64) (map[int64]int, error) {
	if len(lessonIDs) == 0 {
		return map[int64]int{}, nil
	}

	query := `
		SELECT lesson_id, COUNT(*)
		FROM enrollments
		WHERE tenant_id = $1 AND lesson_id = ANY($2) AND is_active
		GROUP BY lesson_id
	`

	rows, err := r.pool.Query(ctx, query, tenantID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int, len(lessonIDs))
	for rows.Next() {
		var lessonID int64
		var count int
		if err := rows.Scan(&lessonID, &count); err != nil {
			return nil, fmt.Errorf("scan enrollment count: %w", err)
		}
		counts[lessonID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment counts: %w", err)
	}

	return counts, nil
}
