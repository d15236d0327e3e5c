package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"writingstuff/internal/auth/model"
	"writingstuff/pkg/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresAccountRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresAccountRepository(db), mock
}

func TestPostgresCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts (id, username, email, password_hash, created_at)`)).
		WithArgs("u-1", "alice", "alice@example.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	a := &model.Account{ID: "u-1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, now, a.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &model.Account{ID: "u-1", Username: "alice", Email: "a@x.io"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestPostgresFindByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, email, password_hash, created_at FROM accounts WHERE email = $1`)).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at"}).
			AddRow("u-1", "alice", "alice@example.com", "hash", now))

	a, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", a.ID)
	assert.Equal(t, "hash", a.PasswordHash)
}

func TestPostgresFindMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at"}))

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Account{ID: "1", Username: "bob", Email: "bob@x.io"}))
	assert.ErrorIs(t, repo.Create(ctx, &model.Account{ID: "2", Username: "bob", Email: "other@x.io"}), apperror.ErrConflict)
	assert.ErrorIs(t, repo.Create(ctx, &model.Account{ID: "3", Username: "carl", Email: "bob@x.io"}), apperror.ErrConflict)

	a, err := repo.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "1", a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = repo.FindByID(ctx, "2")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
