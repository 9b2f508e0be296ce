package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
)

const kvTable = "kv_entry"

// SQLKV keeps the key-value pairs in a single table. The same code serves
// PostgreSQL and SQLite; only the placeholder flavor and the migrations differ.
type SQLKV struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
}

func newSQLKV(db *sql.DB, flavor sqlbuilder.Flavor, createMigrationTable string, migrations []string) (*SQLKV, error) {
	s := &SQLKV{db: db, flavor: flavor}
	if err := s.migrate(createMigrationTable, migrations); err != nil {
		db.Close()
		return &SQLKV{}, err
	}

	return s, nil
}

func (s *SQLKV) Put(ctx context.Context, key string, value []byte) error {
	ib := s.flavor.NewInsertBuilder()
	ib.InsertInto(kvTable).
		Cols("name", "value", "updated_at").
		Values(key, string(value), time.Now().Unix())
	ib.SQL("ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at")

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}

	return nil
}

func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("value").From(kvTable).Where(sb.Equal("name", key))

	query, args := sb.Build()
	var value string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, &Error{Op: "get", Key: key, Err: err}
	}

	return []byte(value), true, nil
}

func (s *SQLKV) Has(ctx context.Context, key string) (bool, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From(kvTable).Where(sb.Equal("name", key))

	query, args := sb.Build()
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, &Error{Op: "has", Key: key, Err: err}
	}

	return count > 0, nil
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	db := s.flavor.NewDeleteBuilder()
	db.DeleteFrom(kvTable).Where(db.Equal("name", key))

	query, args := db.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}

	return nil
}

func (s *SQLKV) Close() error {
	return s.db.Close()
}

func (s *SQLKV) migrate(createTable string, wanted []string) error {
	if _, err := s.db.Exec(createTable); err != nil {
		return fmt.Errorf("could not create migration table: %w", err)
	}

	// find existing
	rows, err := s.db.Query(`SELECT query FROM migration ORDER BY id`)
	if err != nil {
		return err
	}

	existing := []string{}
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, query)
	}
	rows.Close()

	// compare
	missing, err := compareMigrations(wanted, existing)
	if err != nil {
		return err
	}

	// execute missing
	for _, query := range missing {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("could not apply migration: %w", err)
		}

		// register
		ib := s.flavor.NewInsertBuilder()
		ib.InsertInto("migration").Cols("query").Values(query)
		q, args := ib.Build()
		if _, err := s.db.Exec(q, args...); err != nil {
			return err
		}
	}

	return nil
}

func compareMigrations(wanted, existing []string) ([]string, error) {
	needed := []string{}
	if len(wanted) < len(existing) {
		return []string{}, fmt.Errorf("not enough migrations")
	}

	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want == existing[i]:
			// do nothing
		case want != existing[i]:
			return []string{}, fmt.Errorf("incompatible migration: %v", want)
		}
	}

	return needed, nil
}
