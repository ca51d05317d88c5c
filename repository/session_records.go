package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	library "github.com/goliatone/go-library-client"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// SessionRecordModel is the Bun model for persisted session records.
type SessionRecordModel struct {
	bun.BaseModel `bun:"table:session_records"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid"`
	Key       string    `bun:"key,notnull,unique"`
	Value     string    `bun:"value,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// SQLStorage implements library.Storage on a single table. Multi key writes
// run in one transaction so the token and identity records never diverge.
type SQLStorage struct {
	db *bun.DB
}

var _ library.Storage = (*SQLStorage)(nil)

// NewSQLStorage creates a new storage over db.
func NewSQLStorage(db *bun.DB) *SQLStorage {
	return &SQLStorage{db: db}
}

// Open opens a SQLite database at dsn and makes sure the table exists.
func Open(ctx context.Context, dsn string) (*SQLStorage, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	storage := NewSQLStorage(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := storage.CreateTable(ctx); err != nil {
		_ = storage.Close()
		return nil, err
	}
	return storage, nil
}

// CreateTable creates session_records if it is missing.
func (s *SQLStorage) CreateTable(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := s.db.NewCreateTable().
		Model((*SessionRecordModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// ErrNoDB is returned by every operation on a storage built without a db.
var ErrNoDB = errors.New("session storage db should be initialized")

func (s *SQLStorage) Validate() error {
	if s == nil || s.db == nil {
		return ErrNoDB
	}
	return nil
}

// Get implements library.Storage.
func (s *SQLStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if err := s.Validate(); err != nil {
		return "", false, err
	}
	var model SessionRecordModel
	err := s.db.NewSelect().
		Model(&model).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return model.Value, true, nil
}

// Set implements library.Storage.
func (s *SQLStorage) Set(ctx context.Context, records map[string]string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return s.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		for key, value := range records {
			model := &SessionRecordModel{
				ID:        uuid.New(),
				Key:       key,
				Value:     value,
				CreatedAt: now,
				UpdatedAt: now,
			}
			_, err := tx.NewInsert().
				Model(model).
				On("CONFLICT (key) DO UPDATE").
				Set("value = EXCLUDED.value").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete implements library.Storage.
func (s *SQLStorage) Delete(ctx context.Context, keys ...string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*SessionRecordModel)(nil)).
		Where("key IN (?)", bun.In(keys)).
		Exec(ctx)
	return err
}

func (s *SQLStorage) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.db.RunInTx(ctx, opts, f)
	}
}

// Close closes the underlying database.
func (s *SQLStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
