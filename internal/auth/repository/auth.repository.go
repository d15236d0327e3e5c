package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"writingstuff/internal/auth/model"
	"writingstuff/pkg/apperror"
	"writingstuff/pkg/logger"

	"github.com/lib/pq"
)

// AccountRepository persists accounts. Lookups are case sensitive; callers
// normalise email before storing and querying.
type AccountRepository interface {
	Create(ctx context.Context, a *model.Account) error
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	FindByID(ctx context.Context, id string) (*model.Account, error)
}

const uniqueViolation = "23505"

type PostgresAccountRepository struct {
	DB *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{DB: db}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, a *model.Account) error {
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO accounts (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		a.ID, a.Username, a.Email, a.PasswordHash,
	).Scan(&a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("username or email already registered: %w", apperror.ErrConflict)
		}
		logger.Sugar.Errorf("Failed to create account %s: %v", a.Username, err)
		return err
	}
	return nil
}

const selectAccount = `SELECT id, username, email, password_hash, created_at FROM accounts`

func (r *PostgresAccountRepository) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	return r.findOne(ctx, selectAccount+` WHERE username = $1`, username)
}

func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, selectAccount+` WHERE email = $1`, email)
}

func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, selectAccount+` WHERE id = $1`, id)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, query, arg string) (*model.Account, error) {
	var a model.Account
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		logger.Sugar.Errorf("Failed to load account: %v", err)
		return nil, err
	}
	return &a, nil
}
