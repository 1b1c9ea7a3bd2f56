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

const bookingColumns = `id, task_id, application_id, helper_id, provider_id, agreed_credits,
	status, disputed_from, work_note, deliverables, started_at, completed_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	var status string
	var disputedFrom *string
	err := row.Scan(&b.ID, &b.TaskID, &b.ApplicationID, &b.HelperID, &b.ProviderID,
		&b.AgreedCredits, &status, &disputedFrom, &b.WorkNote, &b.Deliverables,
		&b.StartedAt, &b.CompletedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.Status = model.BookingStatus(status)
	if disputedFrom != nil {
		s := model.BookingStatus(*disputedFrom)
		b.DisputedFrom = &s
	}
	return &b, nil
}

func lockBooking(ctx context.Context, tx pgx.Tx, id int64) (*model.Booking, error) {
	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	return scanBooking(row)
}

// GetBooking возвращает бронирование по идентификатору.
func (r *Repository) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

// ListBookingsByUser возвращает бронирования, где пользователь выступает
// исполнителем или заказчиком.
func (r *Repository) ListBookingsByUser(ctx context.Context, userID int64) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE helper_id = $1 OR provider_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var res []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func bookingRole(b *model.Booking, actorID int64) (model.ReviewerRole, error) {
	switch actorID {
	case b.HelperID:
		return model.RoleHelper, nil
	case b.ProviderID:
		return model.RoleProvider, nil
	}
	return "", ErrForbidden
}

// UpdateBookingStatus выполняет переход статуса бронирования от имени участника.
// Переход в completed выполняет перевод кредитов; отмена из confirmed заново
// открывает задачу для подбора исполнителя.
func (r *Repository) UpdateBookingStatus(ctx context.Context, bookingID, actorID int64, to model.BookingStatus) (*model.Booking, error) {
	var result *model.Booking
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		role, err := bookingRole(b, actorID)
		if err != nil {
			return err
		}

		if !model.BookingTransitionAllowed(b.Status, to, role) {
			if !model.ValidBookingTransition(b.Status, to) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidState, b.Status, to)
			}
			return fmt.Errorf("%w: %s -> %s by %s", ErrForbiddenTransition, b.Status, to, role)
		}

		switch to {
		case model.BookingStatusInProgress:
			if err := applyBookingTransition(ctx, tx, b, to); err != nil {
				return err
			}
			// startedAt ставится только при первом запуске, не при возврате на доработку
			if b.Status == model.BookingStatusConfirmed {
				if _, err := tx.Exec(ctx,
					`UPDATE bookings SET started_at = now() WHERE id = $1 AND started_at IS NULL`,
					b.ID,
				); err != nil {
					return fmt.Errorf("set started_at: %w", err)
				}
				if err := setTaskStatus(ctx, tx, b.TaskID, model.TaskStatusInProgress); err != nil {
					return err
				}
			}

		case model.BookingStatusCompleted:
			if err := r.completeBooking(ctx, tx, b); err != nil {
				return err
			}

		case model.BookingStatusCancelled:
			if err := applyBookingTransition(ctx, tx, b, to); err != nil {
				return err
			}
			if b.Status == model.BookingStatusConfirmed {
				if err := reopenTask(ctx, tx, b.TaskID); err != nil {
					return err
				}
			} else if err := setTaskStatus(ctx, tx, b.TaskID, model.TaskStatusCancelled); err != nil {
				return err
			}

		default:
			if err := applyBookingTransition(ctx, tx, b, to); err != nil {
				return err
			}
		}

		updated, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID))
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyBookingTransition(ctx context.Context, tx pgx.Tx, b *model.Booking, to model.BookingStatus) error {
	if _, err := tx.Exec(ctx,
		`UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`,
		b.ID, string(to),
	); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

func setTaskStatus(ctx context.Context, tx pgx.Tx, taskID int64, to model.TaskStatus) error {
	if _, err := tx.Exec(ctx,
		`UPDATE tasks SET status = $2, updated_at = now() WHERE id = $1`,
		taskID, string(to),
	); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

func reopenTask(ctx context.Context, tx pgx.Tx, taskID int64) error {
	if _, err := tx.Exec(ctx,
		`UPDATE tasks
		 SET status = $2, selected_helper_id = NULL,
		     accepts_applications = (application_count < max_applications),
		     updated_at = now()
		 WHERE id = $1`,
		taskID, string(model.TaskStatusOpen),
	); err != nil {
		return fmt.Errorf("reopen task: %w", err)
	}
	return nil
}

// completeBooking выполняет приёмку работы: перевод agreed_credits от заказчика
// к исполнителю, запись в журнал переводов и завершение бронирования и задачи.
// Строки обоих пользователей блокируются в порядке возрастания id, чтобы два
// встречных завершения не взаимоблокировались. Сумма балансов сторон до и после
// перевода неизменна.
func (r *Repository) completeBooking(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	first, second := b.ProviderID, b.HelperID
	if second < first {
		first, second = second, first
	}
	for _, id := range []int64{first, second} {
		var dummy int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&dummy); err != nil {
			return fmt.Errorf("lock user %d: %w", id, err)
		}
	}

	var providerCredits int64
	if err := tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, b.ProviderID).Scan(&providerCredits); err != nil {
		return fmt.Errorf("select provider credits: %w", err)
	}
	if providerCredits < b.AgreedCredits {
		return fmt.Errorf("%w: balance %d, agreed %d", ErrInsufficientCredits, providerCredits, b.AgreedCredits)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET credits = credits - $2 WHERE id = $1`,
		b.ProviderID, b.AgreedCredits,
	); err != nil {
		return fmt.Errorf("debit provider: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET credits = credits + $2, completed_tasks = completed_tasks + 1 WHERE id = $1`,
		b.HelperID, b.AgreedCredits,
	); err != nil {
		return fmt.Errorf("credit helper: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO credit_entries (booking_id, from_user_id, to_user_id, amount) VALUES ($1, $2, $3, $4)`,
		b.ID, b.ProviderID, b.HelperID, b.AgreedCredits,
	); err != nil {
		return fmt.Errorf("insert credit entry: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE bookings SET status = $2, completed_at = now(), updated_at = now() WHERE id = $1`,
		b.ID, string(model.BookingStatusCompleted),
	); err != nil {
		return fmt.Errorf("complete booking: %w", err)
	}

	return setTaskStatus(ctx, tx, b.TaskID, model.TaskStatusCompleted)
}

// SubmitWork сдаёт результат работы: исполнитель переводит бронирование из
// in-progress в work-submitted с перечнем артефактов и комментарием.
func (r *Repository) SubmitWork(ctx context.Context, bookingID, helperID int64, deliverables []string, note string) (*model.Booking, error) {
	var result *model.Booking
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		role, err := bookingRole(b, helperID)
		if err != nil {
			return err
		}
		if role != model.RoleHelper {
			return fmt.Errorf("%w: only the helper submits work", ErrForbiddenTransition)
		}
		if b.Status != model.BookingStatusInProgress {
			return fmt.Errorf("%w: booking is %s, work is submitted from in-progress", ErrInvalidState, b.Status)
		}

		if deliverables == nil {
			deliverables = []string{}
		}
		if _, err := tx.Exec(ctx,
			`UPDATE bookings
			 SET status = $2, deliverables = $3, work_note = $4, updated_at = now()
			 WHERE id = $1`,
			b.ID, string(model.BookingStatusWorkSubmitted), deliverables, note,
		); err != nil {
			return fmt.Errorf("submit work: %w", err)
		}

		updated, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID))
		if err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DisputeBooking открывает спор: бронирование переходит в disputed из любого
// нетерминального статуса, прежний статус запоминается для возврата.
func (r *Repository) DisputeBooking(ctx context.Context, bookingID, actorID int64) (*model.Booking, error) {
	var result *model.Booking
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if _, err := bookingRole(b, actorID); err != nil {
			return err
		}
		if b.Status == model.BookingStatusDisputed {
			return fmt.Errorf("%w: booking is already disputed", ErrInvalidState)
		}
		if model.BookingStatusTerminal(b.Status) {
			return fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE bookings SET status = $2, disputed_from = $3, updated_at = now() WHERE id = $1`,
			b.ID, string(model.BookingStatusDisputed), string(b.Status),
		); err != nil {
			return fmt.Errorf("dispute booking: %w", err)
		}

		updated, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID))
		if err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DisputeOutcome описывает исход разрешения спора.
type DisputeOutcome string

const (
	// DisputeOutcomeRefund завершает бронирование возвратом; перевода кредитов не происходит.
	DisputeOutcomeRefund DisputeOutcome = "refund"
	// DisputeOutcomeResume возвращает бронирование в статус до спора.
	DisputeOutcomeResume DisputeOutcome = "resume"
)

// ResolveDispute фиксирует внешнее решение по спору: refund переводит бронирование
// в refunded и отменяет задачу, resume возвращает статус до спора.
func (r *Repository) ResolveDispute(ctx context.Context, bookingID int64, outcome DisputeOutcome) (*model.Booking, error) {
	if outcome != DisputeOutcomeRefund && outcome != DisputeOutcomeResume {
		return nil, fmt.Errorf("%w: dispute outcome must be refund or resume", ErrInvalidState)
	}

	var result *model.Booking
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingStatusDisputed || b.DisputedFrom == nil {
			return fmt.Errorf("%w: booking is not disputed", ErrInvalidState)
		}

		if outcome == DisputeOutcomeRefund {
			if _, err := tx.Exec(ctx,
				`UPDATE bookings SET status = $2, disputed_from = NULL, updated_at = now() WHERE id = $1`,
				b.ID, string(model.BookingStatusRefunded),
			); err != nil {
				return fmt.Errorf("refund booking: %w", err)
			}
			if err := setTaskStatus(ctx, tx, b.TaskID, model.TaskStatusCancelled); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx,
				`UPDATE bookings SET status = $2, disputed_from = NULL, updated_at = now() WHERE id = $1`,
				b.ID, string(*b.DisputedFrom),
			); err != nil {
				return fmt.Errorf("resume booking: %w", err)
			}
		}

		updated, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID))
		if err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddReview сохраняет отзыв стороны завершённого бронирования и обновляет
// рейтинг противоположной стороны по формуле скользящего среднего
// (oldAvg*oldCount + newRating) / (oldCount + 1) в той же транзакции.
func (r *Repository) AddReview(ctx context.Context, bookingID, reviewerID int64, rating int, comment string) (*model.Review, error) {
	var result *model.Review
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		b, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		role, err := bookingRole(b, reviewerID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingStatusCompleted {
			return fmt.Errorf("%w: booking is %s, reviews require completed", ErrInvalidState, b.Status)
		}

		rev := &model.Review{
			BookingID:    bookingID,
			ReviewerRole: role,
			Rating:       rating,
			Comment:      comment,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO reviews (booking_id, reviewer_role, rating, comment)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at`,
			bookingID, string(role), rating, comment,
		).Scan(&rev.ID, &rev.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("insert review: %w", err)
		}

		// отзыв исполнителя оценивает заказчика и наоборот
		ratedID := b.HelperID
		if role == model.RoleHelper {
			ratedID = b.ProviderID
		}

		var oldAvg float64
		var oldCount int
		if err := tx.QueryRow(ctx,
			`SELECT rating, total_ratings FROM users WHERE id = $1 FOR UPDATE`, ratedID,
		).Scan(&oldAvg, &oldCount); err != nil {
			return fmt.Errorf("lock rated user: %w", err)
		}

		newAvg := model.NextRating(oldAvg, oldCount, rating)
		if _, err := tx.Exec(ctx,
			`UPDATE users SET rating = $2, total_ratings = $3 WHERE id = $1`,
			ratedID, newAvg, oldCount+1,
		); err != nil {
			return fmt.Errorf("update rating: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		result = rev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
