package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/timeslice/internal/model"
)

const applicationColumns = `id, task_id, applicant_id, provider_id, proposal, proposed_credits,
	status, match_score, response_message, responded_at, created_at`

func scanApplication(row pgx.Row) (*model.Application, error) {
	var a model.Application
	var status string
	err := row.Scan(&a.ID, &a.TaskID, &a.ApplicantID, &a.ProviderID, &a.Proposal,
		&a.ProposedCredits, &status, &a.MatchScore, &a.ResponseMessage, &a.RespondedAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	a.Status = model.ApplicationStatus(status)
	return &a, nil
}

// CreateApplication создаёт отклик на задачу. Задача блокируется FOR UPDATE,
// чтобы проверка вместимости и инкремент счётчика были сериализованы
// относительно конкурирующих откликов и принятия.
func (r *Repository) CreateApplication(ctx context.Context, a *model.Application) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		t, err := lockTask(ctx, tx, a.TaskID)
		if err != nil {
			return err
		}
		if t.Status != model.TaskStatusOpen {
			return fmt.Errorf("%w: task is %s", ErrTaskNotOpen, t.Status)
		}
		if t.ProviderID == a.ApplicantID {
			return ErrSelfApplication
		}
		if !t.AcceptsApplications || t.ApplicationCount >= t.MaxApplications {
			return ErrNotAccepting
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO applications (task_id, applicant_id, provider_id, proposal, proposed_credits, match_score)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			a.TaskID, a.ApplicantID, t.ProviderID, a.Proposal, a.ProposedCredits, a.MatchScore,
		).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return ErrDuplicateApplication
			}
			return fmt.Errorf("insert application: %w", err)
		}

		// исчерпание лимита откликов закрывает приём
		if _, err := tx.Exec(ctx,
			`UPDATE tasks
			 SET application_count = application_count + 1,
			     accepts_applications = (application_count + 1 < max_applications),
			     updated_at = now()
			 WHERE id = $1`,
			a.TaskID,
		); err != nil {
			return fmt.Errorf("bump application count: %w", err)
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetApplication возвращает отклик по идентификатору.
func (r *Repository) GetApplication(ctx context.Context, id int64) (*model.Application, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	return scanApplication(row)
}

// ListApplicationsByApplicant возвращает отклики пользователя, новые первыми.
func (r *Repository) ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]model.Application, error) {
	return r.listApplications(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE applicant_id = $1 ORDER BY created_at DESC`,
		applicantID)
}

// ListApplicationsByTask возвращает отклики на задачу в порядке подачи.
func (r *Repository) ListApplicationsByTask(ctx context.Context, taskID int64) ([]model.Application, error) {
	return r.listApplications(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE task_id = $1 ORDER BY created_at`,
		taskID)
}

func (r *Repository) listApplications(ctx context.Context, query string, arg int64) ([]model.Application, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("select applications: %w", err)
	}
	defer rows.Close()

	var res []model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const systemRejectMessage = "Another applicant was selected for this task."

// RespondApplication обрабатывает ответ заказчика на отклик: accepted, rejected
// или interviewed. Принятие выполняет каскад в одной транзакции: отклик становится
// accepted, задача — assigned, создаётся бронирование, остальные необработанные
// отклики отклоняются. Конкурирующее принятие блокируется на строке задачи и
// после перечитывания завершается ErrAlreadyResponded.
func (r *Repository) RespondApplication(ctx context.Context, appID, providerID int64, status model.ApplicationStatus, message string, agreedCredits *int64) (*model.Booking, error) {
	if status != model.ApplicationStatusAccepted &&
		status != model.ApplicationStatusRejected &&
		status != model.ApplicationStatusInterviewed {
		return nil, fmt.Errorf("%w: response status must be accepted, rejected or interviewed", ErrInvalidState)
	}

	var booking *model.Booking
	err := r.withRetry(ctx, func(ctx context.Context) error {
		booking = nil

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		a, err := scanApplication(tx.QueryRow(ctx,
			`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, appID))
		if err != nil {
			return err
		}
		if a.ProviderID != providerID {
			return ErrForbidden
		}

		// Блокировка задачи сериализует конкурирующие ответы по всем откликам
		// этой задачи; после её захвата отклик перечитывается.
		t, err := lockTask(ctx, tx, a.TaskID)
		if err != nil {
			return err
		}
		a, err = scanApplication(tx.QueryRow(ctx,
			`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, appID))
		if err != nil {
			return err
		}

		if !model.ValidApplicationTransition(a.Status, status) {
			if model.ApplicationStatusTerminal(a.Status) {
				return fmt.Errorf("%w: application is %s", ErrAlreadyResponded, a.Status)
			}
			return fmt.Errorf("%w: application is %s", ErrInvalidState, a.Status)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE applications SET status = $2, response_message = $3, responded_at = now() WHERE id = $1`,
			appID, string(status), message,
		); err != nil {
			return fmt.Errorf("update application: %w", err)
		}

		if status != model.ApplicationStatusAccepted {
			return tx.Commit(ctx)
		}

		if t.Status != model.TaskStatusOpen && t.Status != model.TaskStatusInReview {
			return fmt.Errorf("%w: task is %s", ErrInvalidState, t.Status)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE tasks
			 SET status = $2, selected_helper_id = $3, accepts_applications = FALSE, updated_at = now()
			 WHERE id = $1`,
			t.ID, string(model.TaskStatusAssigned), a.ApplicantID,
		); err != nil {
			return fmt.Errorf("assign task: %w", err)
		}

		credits := a.ProposedCredits
		if agreedCredits != nil {
			credits = *agreedCredits
		}

		b := &model.Booking{
			TaskID:        t.ID,
			ApplicationID: a.ID,
			HelperID:      a.ApplicantID,
			ProviderID:    t.ProviderID,
			AgreedCredits: credits,
			Status:        model.BookingStatusConfirmed,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO bookings (task_id, application_id, helper_id, provider_id, agreed_credits)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			b.TaskID, b.ApplicationID, b.HelperID, b.ProviderID, b.AgreedCredits,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE applications
			 SET status = $2, response_message = $3, responded_at = now()
			 WHERE task_id = $1 AND id <> $4 AND status IN ($5, $6)`,
			t.ID, string(model.ApplicationStatusRejected), systemRejectMessage,
			appID, string(model.ApplicationStatusPending), string(model.ApplicationStatusInterviewed),
		); err != nil {
			return fmt.Errorf("reject sibling applications: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// WithdrawApplication отзывает необработанный отклик. Счётчик откликов задачи
// уменьшается, и приём откликов открывается снова, если лимит не исчерпан.
func (r *Repository) WithdrawApplication(ctx context.Context, appID, applicantID int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		a, err := scanApplication(tx.QueryRow(ctx,
			`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, appID))
		if err != nil {
			return err
		}
		if a.ApplicantID != applicantID {
			return ErrForbidden
		}

		if _, err := lockTask(ctx, tx, a.TaskID); err != nil {
			return err
		}
		a, err = scanApplication(tx.QueryRow(ctx,
			`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, appID))
		if err != nil {
			return err
		}

		if !model.ValidApplicationTransition(a.Status, model.ApplicationStatusWithdrawn) {
			if model.ApplicationStatusTerminal(a.Status) {
				return fmt.Errorf("%w: application is %s", ErrAlreadyResponded, a.Status)
			}
			return fmt.Errorf("%w: application is %s", ErrInvalidState, a.Status)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE applications SET status = $2, responded_at = now() WHERE id = $1`,
			appID, string(model.ApplicationStatusWithdrawn),
		); err != nil {
			return fmt.Errorf("withdraw application: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE tasks
			 SET application_count = application_count - 1,
			     accepts_applications = (status = $2 AND application_count - 1 < max_applications),
			     updated_at = now()
			 WHERE id = $1`,
			a.TaskID, string(model.TaskStatusOpen),
		); err != nil {
			return fmt.Errorf("decrement application count: %w", err)
		}

		return tx.Commit(ctx)
	})
}
