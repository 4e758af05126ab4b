package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores documents in a single jsonb table; see internal/migrate/sql for the schema.
// jsonb keeps the JSON value, not its bytes: Get returns keys reordered and duplicate
// keys collapsed to the last one, with insignificant whitespace dropped.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

// OpenPostgres opens a pool through the pgx stdlib driver.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) DB() *sql.DB { return s.db }

func (s *Postgres) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`select data from documents where collection=$1 and id=$2`,
		key.Collection, key.ID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Postgres) Set(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkObject(doc); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		insert into documents(collection, id, data, updated_at)
		values ($1, $2, $3::jsonb, now())
		on conflict (collection, id) do update
		set data = excluded.data, updated_at = excluded.updated_at
	`, key.Collection, key.ID, []byte(doc))
	return err
}

func (s *Postgres) Create(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkObject(doc); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		insert into documents(collection, id, data, updated_at)
		values ($1, $2, $3::jsonb, now())
		on conflict (collection, id) do nothing
	`, key.Collection, key.ID, []byte(doc))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, key Key, fields map[string]any) error {
	if err := key.validate(); err != nil {
		return err
	}
	patch, err := encodeFields(fields)
	if err != nil {
		return err
	}
	// jsonb || replaces top-level keys, which is the merge the other backends do.
	res, err := s.db.ExecContext(ctx, `
		update documents set data = data || $3::jsonb, updated_at = now()
		where collection=$1 and id=$2
	`, key.Collection, key.ID, []byte(patch))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`delete from documents where collection=$1 and id=$2`, key.Collection, key.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, data from documents where collection=$1 order by id asc`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		out = append(out, Document{Key: Key{Collection: collection, ID: id}, Data: data})
	}
	return out, rows.Err()
}

func (s *Postgres) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Postgres) Close() error { return s.db.Close() }
