package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/timeslice/internal/model"
)

const taskColumns = `id, provider_id, title, description, skills_required, credits, status,
	selected_helper_id, max_applications, accepts_applications, application_count,
	scheduled_at, duration_minutes, created_at, updated_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var status string
	err := row.Scan(&t.ID, &t.ProviderID, &t.Title, &t.Description, &t.SkillsRequired,
		&t.Credits, &status, &t.SelectedHelperID, &t.MaxApplications, &t.AcceptsApplications,
		&t.ApplicationCount, &t.ScheduledAt, &t.DurationMinutes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Status = model.TaskStatus(status)
	return &t, nil
}

// CreateTask сохраняет новую задачу и увеличивает счётчик созданных задач заказчика
// в той же транзакции.
func (r *Repository) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO tasks (provider_id, title, description, skills_required, credits,
			                    max_applications, scheduled_at, duration_minutes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			t.ProviderID, t.Title, t.Description, t.SkillsRequired, t.Credits,
			t.MaxApplications, t.ScheduledAt, t.DurationMinutes,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET tasks_created = tasks_created + 1 WHERE id = $1`,
			t.ProviderID,
		); err != nil {
			return fmt.Errorf("bump tasks_created: %w", err)
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetTask возвращает задачу по идентификатору.
func (r *Repository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// TaskFilter задаёт условия выборки задач.
type TaskFilter struct {
	Status     model.TaskStatus
	Skill      string
	ProviderID int64
}

// ListTasks возвращает задачи по фильтру, новые первыми.
func (r *Repository) ListTasks(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}

	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Skill != "" {
		args = append(args, f.Skill)
		query += fmt.Sprintf(" AND $%d = ANY(skills_required)", len(args))
	}
	if f.ProviderID != 0 {
		args = append(args, f.ProviderID)
		query += fmt.Sprintf(" AND provider_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var res []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DeleteTask удаляет задачу вместе с откликами. Разрешено только владельцу
// и только пока задача в статусе open.
func (r *Repository) DeleteTask(ctx context.Context, taskID, providerID int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		t, err := lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.ProviderID != providerID {
			return ErrForbidden
		}
		if t.Status != model.TaskStatusOpen {
			return fmt.Errorf("%w: task is %s, delete is allowed only while open", ErrInvalidState, t.Status)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM applications WHERE task_id = $1`, taskID); err != nil {
			return fmt.Errorf("delete applications: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// CancelTask переводит задачу в cancelled и отклоняет необработанные отклики.
func (r *Repository) CancelTask(ctx context.Context, taskID, providerID int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		t, err := lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.ProviderID != providerID {
			return ErrForbidden
		}
		if !model.ValidTaskTransition(t.Status, model.TaskStatusCancelled) {
			return fmt.Errorf("%w: task is already %s", ErrInvalidState, t.Status)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE tasks SET status = $2, accepts_applications = FALSE, updated_at = now() WHERE id = $1`,
			taskID, string(model.TaskStatusCancelled),
		); err != nil {
			return fmt.Errorf("cancel task: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE applications
			 SET status = $2, response_message = $3, responded_at = now()
			 WHERE task_id = $1 AND status IN ($4, $5)`,
			taskID, string(model.ApplicationStatusRejected),
			"Task was cancelled by the provider.",
			string(model.ApplicationStatusPending), string(model.ApplicationStatusInterviewed),
		); err != nil {
			return fmt.Errorf("reject pending applications: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// lockTask читает задачу под блокировкой FOR UPDATE внутри транзакции.
func lockTask(ctx context.Context, tx pgx.Tx, taskID int64) (*model.Task, error) {
	row := tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, taskID)
	return scanTask(row)
}
