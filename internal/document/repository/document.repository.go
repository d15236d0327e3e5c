package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"writingstuff/internal/document/model"
	"writingstuff/pkg/apperror"
	"writingstuff/pkg/logger"

	"github.com/lib/pq"
)

// DocumentRepository persists document metadata and content. Ownership is
// checked by the service, so lookups here are by id only.
type DocumentRepository interface {
	Create(ctx context.Context, d *model.Document) error
	FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*model.Document, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Document, error)
	// UpdateContent stores content and size and bumps the version by one.
	UpdateContent(ctx context.Context, id, content string, size int64) (version int64, updatedAt time.Time, err error)
	Delete(ctx context.Context, id string) error
}

const (
	uniqueViolation      = "23505"
	invalidTextRepresent = "22P02"
)

type PostgresDocumentRepository struct {
	DB *sql.DB
}

func NewPostgresDocumentRepository(db *sql.DB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{DB: db}
}

func (r *PostgresDocumentRepository) Create(ctx context.Context, d *model.Document) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO documents (id, owner_id, title, kind, filename, file_key, content, size, version, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, NOW(), NOW())
		RETURNING version, created_at, updated_at`,
		d.ID, d.OwnerID, d.Title, d.Kind, d.Filename, d.FileKey, d.Content, d.Size, nullable(d.IdempotencyKey),
	).Scan(&d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("idempotency key already used: %w", apperror.ErrConflict)
		}
		logger.Sugar.Errorf("Failed to create document: %v", err)
		return err
	}
	return nil
}

const selectDocument = `SELECT id, owner_id, title, kind, filename, file_key, content, size, version, COALESCE(idempotency_key, ''), created_at, updated_at FROM documents`

func (r *PostgresDocumentRepository) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx, selectDocument+` WHERE owner_id = $1 AND idempotency_key = $2`, ownerID, key)
	return scanDocument(row)
}

func (r *PostgresDocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	return scanDocument(r.DB.QueryRowContext(ctx, selectDocument+` WHERE id = $1`, id))
}

func scanDocument(row *sql.Row) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Kind, &d.Filename, &d.FileKey, &d.Content,
		&d.Size, &d.Version, &d.IdempotencyKey, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if notFound(err) {
			return nil, apperror.ErrNotFound
		}
		logger.Sugar.Errorf("Failed to load document: %v", err)
		return nil, err
	}
	return &d, nil
}

func (r *PostgresDocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, owner_id, title, kind, filename, size, version, created_at, updated_at
		FROM documents WHERE owner_id = $1
		ORDER BY created_at DESC, id ASC`, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents for user %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Kind, &d.Filename, &d.Size, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		logger.Sugar.Errorf("Failed to list documents for user %s: %v", ownerID, err)
		return nil, err
	}
	return docs, nil
}

func (r *PostgresDocumentRepository) UpdateContent(ctx context.Context, id, content string, size int64) (int64, time.Time, error) {
	var version int64
	var updatedAt time.Time
	err := r.DB.QueryRowContext(ctx, `
		UPDATE documents SET content = $1, size = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3
		RETURNING version, updated_at`, content, size, id).Scan(&version, &updatedAt)
	if err != nil {
		if notFound(err) {
			return 0, time.Time{}, apperror.ErrNotFound
		}
		logger.Sugar.Errorf("Failed to update content for doc %s: %v", id, err)
		return 0, time.Time{}, err
	}
	return version, updatedAt, nil
}

func (r *PostgresDocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		if notFound(err) {
			return apperror.ErrNotFound
		}
		logger.Sugar.Errorf("Failed to delete doc %s: %v", id, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// notFound also covers ids that are not valid UUIDs.
func notFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresent
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
