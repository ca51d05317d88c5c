package repository

import (
	"context"
	"database/sql"
	"testing"

	library "github.com/goliatone/go-library-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteCreateSessionRecords = `CREATE TABLE session_records (
    id TEXT NOT NULL PRIMARY KEY,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    CONSTRAINT uq_session_records_key UNIQUE (key)
);`

func setupSessionStorage(t *testing.T) (*SQLStorage, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateSessionRecords)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return NewSQLStorage(bunDB), cleanup
}

func TestSQLStorageSetAndGet(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()

	ctx := context.Background()

	_, ok, err := storage.Get(ctx, library.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.Set(ctx, map[string]string{
		library.TokenKey: "tok-1",
		library.UserKey:  `{"email":"a@b.com"}`,
	}))

	token, ok, err := storage.Get(ctx, library.TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)

	user, ok, err := storage.Get(ctx, library.UserKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"email":"a@b.com"}`, user)
}

func TestSQLStorageSetOverwrites(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, map[string]string{library.TokenKey: "old"}))
	require.NoError(t, storage.Set(ctx, map[string]string{library.TokenKey: "new"}))

	token, ok, err := storage.Get(ctx, library.TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", token)

	var count int
	require.NoError(t, storage.db.NewSelect().
		Model((*SessionRecordModel)(nil)).
		ColumnExpr("COUNT(*)").
		Scan(ctx, &count))
	assert.Equal(t, 1, count)
}

func TestSQLStorageDeleteClearsBothRecords(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, map[string]string{
		library.TokenKey: "tok",
		library.UserKey:  "{}",
		"unrelated":      "keep",
	}))

	require.NoError(t, storage.Delete(ctx, library.TokenKey, library.UserKey))

	_, ok, err := storage.Get(ctx, library.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = storage.Get(ctx, library.UserKey)
	require.NoError(t, err)
	assert.False(t, ok)

	val, ok, err := storage.Get(ctx, "unrelated")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "keep", val)

	require.NoError(t, storage.Delete(ctx, library.TokenKey))
}

func TestSQLStorageSetIsAtomic(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()

	ctx := context.Background()
	_, err := storage.db.Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON session_records
        WHEN NEW.value = 'bad' BEGIN SELECT RAISE(ABORT, 'rejected'); END;`)
	require.NoError(t, err)

	err = storage.Set(ctx, map[string]string{
		library.TokenKey: "tok",
		library.UserKey:  "bad",
	})
	require.Error(t, err)

	_, ok, err := storage.Get(ctx, library.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok, "a failed write must not leave a partial session")
}

func TestSQLStorageBacksSessionStore(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()

	ctx := context.Background()
	token := "eyJhbGciOiJIUzI1NiJ9.eyJ1c2VySWQiOjcsImZpcnN0TmFtZSI6IkFkYSIsInJvbGUiOiJBRE1JTiJ9.sig"

	store := library.NewSessionStore(storage, library.AuthenticatorFunc(
		func(context.Context, library.Credentials) (map[string]any, error) {
			return map[string]any{"jwtToken": token}, nil
		},
	)).WithLogger(library.NopLogger{})

	_, err := store.Login(ctx, library.Credentials{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)

	reloaded := library.NewSessionStore(storage, nil)
	session := reloaded.Current(ctx)
	require.True(t, session.Authenticated())
	assert.Equal(t, int64(7), session.Identity.ID)
	assert.Equal(t, "Ada", session.Identity.FirstName)
	assert.True(t, session.IsAdmin())

	reloaded.Logout(ctx)
	assert.False(t, store.IsAuthenticated(ctx))
}

func TestSQLStorageRunInTxHonorsCancelledContext(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := storage.Set(ctx, map[string]string{library.TokenKey: "tok"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSQLStorageWithoutDB(t *testing.T) {
	ctx := context.Background()
	storage := NewSQLStorage(nil)

	_, ok, err := storage.Get(ctx, library.TokenKey)
	assert.ErrorIs(t, err, ErrNoDB)
	assert.False(t, ok)
	assert.ErrorIs(t, storage.Set(ctx, map[string]string{library.TokenKey: "tok"}), ErrNoDB)
	assert.ErrorIs(t, storage.Delete(ctx, library.TokenKey), ErrNoDB)
	assert.ErrorIs(t, storage.CreateTable(ctx), ErrNoDB)
	assert.NoError(t, storage.Close())

	store := library.NewSessionStore(storage, nil).WithLogger(library.NopLogger{})
	assert.False(t, store.IsAuthenticated(ctx))
}
