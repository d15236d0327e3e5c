package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"writingstuff/internal/document/model"
	"writingstuff/pkg/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresDocumentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresDocumentRepository(db), mock
}

var documentColumns = []string{"id", "owner_id", "title", "kind", "filename", "file_key", "content", "size", "version", "idempotency_key", "created_at", "updated_at"}

func TestPostgresCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO documents`)).
		WithArgs("d-1", "u-1", "report.pdf", model.KindPDF, "report.pdf", "u-1/d-1.pdf", "text", int64(42),
			sql.NullString{String: "key-1", Valid: true}).
		WillReturnRows(sqlmock.NewRows([]string{"version", "created_at", "updated_at"}).AddRow(1, now, now))

	d := &model.Document{ID: "d-1", OwnerID: "u-1", Title: "report.pdf", Kind: model.KindPDF,
		Filename: "report.pdf", FileKey: "u-1/d-1.pdf", Content: "text", Size: 42, IdempotencyKey: "key-1"}
	require.NoError(t, repo.Create(context.Background(), d))
	assert.Equal(t, int64(1), d.Version)
	assert.Equal(t, now, d.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateWithoutIdempotencyKey(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO documents`)).
		WithArgs("d-1", "u-1", model.DefaultTitle, model.KindText, "", "", "", int64(0), sql.NullString{}).
		WillReturnRows(sqlmock.NewRows([]string{"version", "created_at", "updated_at"}).AddRow(1, now, now))

	d := &model.Document{ID: "d-1", OwnerID: "u-1", Title: model.DefaultTitle, Kind: model.KindText}
	require.NoError(t, repo.Create(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateDuplicateKey(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO documents`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &model.Document{ID: "d-1", OwnerID: "u-1", IdempotencyKey: "k"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestPostgresGet(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(selectDocument + ` WHERE id = $1`)).
		WithArgs("d-1").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("d-1", "u-1", "Notes", model.KindText, "", "", "hello", 5, 3, "", now, now))

	d, err := repo.Get(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", d.Content)
	assert.Equal(t, int64(3), d.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectDocument)).WithArgs("d-1").WillReturnError(sql.ErrNoRows)
	_, err := repo.Get(context.Background(), "d-1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta(selectDocument)).WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02"})
	_, err = repo.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPostgresListByOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id ASC`)).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "title", "kind", "filename", "size", "version", "created_at", "updated_at"}).
			AddRow("d-2", "u-1", "b.pdf", model.KindPDF, "b.pdf", 10, 1, now, now).
			AddRow("d-1", "u-1", "a", model.KindText, "", 0, 2, now.Add(-time.Hour), now))

	docs, err := repo.ListByOwner(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d-2", docs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateContent(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE documents SET content = $1, size = $2, version = version + 1`)).
		WithArgs("new text", int64(8), "d-1").
		WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(4, now))

	version, updatedAt, err := repo.UpdateContent(context.Background(), "d-1", "new text", 8)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
	assert.Equal(t, now, updatedAt)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE documents`)).WillReturnError(sql.ErrNoRows)
	_, _, err = repo.UpdateContent(context.Background(), "d-9", "x", 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPostgresDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents WHERE id = $1`)).
		WithArgs("d-1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "d-1"))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents`)).
		WithArgs("d-1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "d-1"), apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryDocumentRepository()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first := &model.Document{ID: "d-1", OwnerID: "u-1", Title: "first", Kind: model.KindText}
	second := &model.Document{ID: "d-2", OwnerID: "u-1", Title: "second", Kind: model.KindPDF, IdempotencyKey: "k"}
	other := &model.Document{ID: "d-3", OwnerID: "u-2", Title: "other", Kind: model.KindText}
	for _, d := range []*model.Document{first, second, other} {
		require.NoError(t, repo.Create(ctx, d))
	}

	dup := &model.Document{ID: "d-4", OwnerID: "u-1", IdempotencyKey: "k"}
	assert.ErrorIs(t, repo.Create(ctx, dup), apperror.ErrConflict)

	byKey, err := repo.FindByIdempotencyKey(ctx, "u-1", "k")
	require.NoError(t, err)
	assert.Equal(t, "d-2", byKey.ID)
	_, err = repo.FindByIdempotencyKey(ctx, "u-2", "k")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	docs, err := repo.ListByOwner(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d-2", docs[0].ID)
	assert.Equal(t, "d-1", docs[1].ID)

	version, _, err := repo.UpdateContent(ctx, "d-1", "hello", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	got, err := repo.Get(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)

	require.NoError(t, repo.Delete(ctx, "d-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "d-1"), apperror.ErrNotFound)
	_, _, err = repo.UpdateContent(ctx, "d-1", "x", 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
