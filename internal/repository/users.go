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

// CreateUser создаёт нового пользователя с указанными навыками и стартовым балансом.
func (r *Repository) CreateUser(ctx context.Context, login string, passwordHash []byte, skills []string, startCredits int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, skills, credits) VALUES ($1, $2, $3, $4) RETURNING id`,
		login, passwordHash, skills, startCredits,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

const userColumns = `id, login, password_hash, skills, credits, rating, total_ratings, completed_tasks, tasks_created, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Skills, &u.Credits,
		&u.Rating, &u.TotalRatings, &u.CompletedTasks, &u.TasksCreated, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1`, login)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetBalance возвращает текущий баланс пользователя и обороты по журналу переводов.
func (r *Repository) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	var b model.Balance
	err := r.pool.QueryRow(ctx,
		`SELECT u.credits,
		        COALESCE((SELECT SUM(amount) FROM credit_entries WHERE to_user_id = u.id), 0),
		        COALESCE((SELECT SUM(amount) FROM credit_entries WHERE from_user_id = u.id), 0)
		 FROM users u WHERE u.id = $1`,
		userID,
	).Scan(&b.Current, &b.Earned, &b.Spent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select balance: %w", err)
	}
	return &b, nil
}

// GetCreditEntries возвращает журнал переводов, в которых участвовал пользователь.
func (r *Repository) GetCreditEntries(ctx context.Context, userID int64) ([]model.CreditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, booking_id, from_user_id, to_user_id, amount, created_at
		 FROM credit_entries
		 WHERE from_user_id = $1 OR to_user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select credit entries: %w", err)
	}
	defer rows.Close()

	var res []model.CreditEntry
	for rows.Next() {
		var e model.CreditEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.FromUserID, &e.ToUserID, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit entry: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
