//go:build integration

package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"writingstuff/config"
	"writingstuff/config/database"
	authModel "writingstuff/internal/auth/model"
	authRepo "writingstuff/internal/auth/repository"
	docModel "writingstuff/internal/document/model"
	docRepo "writingstuff/internal/document/repository"
	"writingstuff/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "writer",
				"POSTGRES_PASSWORD": "writer",
				"POSTGRES_DB":       "writingstuff",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err, "postgres container")
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return config.DatabaseConfig{
		Driver:         "postgres",
		URL:            fmt.Sprintf("postgres://writer:writer@%s:%s/writingstuff?sslmode=disable", host, port.Port()),
		ConnectRetries: 5,
	}
}

func TestPostgresRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	db, err := database.Connect(ctx, startPostgres(t))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(ctx, db))

	accounts := authRepo.NewPostgresAccountRepository(db)
	owner := &authModel.Account{ID: uuid.NewString(), Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, accounts.Create(ctx, owner))
	dup := &authModel.Account{ID: uuid.NewString(), Username: "alice", Email: "other@example.com", PasswordHash: "hash"}
	assert.ErrorIs(t, accounts.Create(ctx, dup), apperror.ErrConflict)

	docs := docRepo.NewPostgresDocumentRepository(db)
	doc := &docModel.Document{
		ID: uuid.NewString(), OwnerID: owner.ID, Title: "report.pdf", Kind: docModel.KindPDF,
		Filename: "report.pdf", FileKey: owner.ID + "/x.pdf", Content: "page one\fpage two", Size: 1234,
		IdempotencyKey: "upload-1",
	}
	require.NoError(t, docs.Create(ctx, doc))
	assert.Equal(t, int64(1), doc.Version)

	again := *doc
	again.ID = uuid.NewString()
	assert.ErrorIs(t, docs.Create(ctx, &again), apperror.ErrConflict)

	byKey, err := docs.FindByIdempotencyKey(ctx, owner.ID, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byKey.ID)

	text := &docModel.Document{ID: uuid.NewString(), OwnerID: owner.ID, Title: docModel.DefaultTitle, Kind: docModel.KindText}
	require.NoError(t, docs.Create(ctx, text))

	version, _, err := docs.UpdateContent(ctx, text.ID, "hello", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	got, err := docs.Get(ctx, text.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)

	list, err := docs.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = docs.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, docs.Delete(ctx, doc.ID))
	assert.ErrorIs(t, docs.Delete(ctx, doc.ID), apperror.ErrNotFound)

	require.NoError(t, database.Rollback(ctx, db))
}
