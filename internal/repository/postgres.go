// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ошибки уровня хранилища. Текст ошибки называет нарушенный инвариант и
// отдаётся клиенту без изменений, поэтому формулировки значимы.
var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotFound             = errors.New("entity not found")
	ErrDuplicateApplication = errors.New("user has already applied to this task")
	ErrSelfApplication      = errors.New("task provider cannot apply to own task")
	ErrTaskNotOpen          = errors.New("task is not open")
	ErrNotAccepting         = errors.New("task is not accepting applications")
	ErrAlreadyResponded     = errors.New("application already processed")
	ErrAlreadyReviewed      = errors.New("review already submitted for this side")
	ErrForbidden            = errors.New("actor is not a party to this entity")
	ErrForbiddenTransition  = errors.New("status transition not permitted for this actor")
	ErrInvalidState         = errors.New("operation not permitted in current status")
	ErrInsufficientCredits  = errors.New("provider balance is lower than agreed credits")
)

// Repository предоставляет доступ к хранилищу данных в PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New создаёт репозиторий и инициализирует схему БД через миграции.
func New(dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &Repository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *Repository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сериализационных конфликтах, дедлоках
// и сетевых сбоях. Доменные ошибки не ретраятся.
func (r *Repository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected
	}

	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
