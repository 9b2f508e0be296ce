package storage

import (
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"
)

const sqliteMigrationTable = `CREATE TABLE IF NOT EXISTS migration
(id INTEGER PRIMARY KEY AUTOINCREMENT, query TEXT)`

var sqliteMigration = []string{
	`CREATE TABLE kv_entry (
name TEXT PRIMARY KEY,
value TEXT NOT NULL
)`,
	`ALTER TABLE kv_entry
ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0`,
}

func NewSQLite(path string) (*SQLKV, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return &SQLKV{}, err
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return newSQLKV(db, sqlbuilder.SQLite, sqliteMigrationTable, sqliteMigration)
}
