package storage

import (
	"database/sql"
	"fmt"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
)

type PostgresInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

const pgMigrationTable = `CREATE TABLE IF NOT EXISTS migration
("id" SERIAL PRIMARY KEY, "query" TEXT)`

var pgMigration = []string{
	`CREATE TABLE kv_entry (
name VARCHAR(255) PRIMARY KEY,
value TEXT NOT NULL
)`,
	`ALTER TABLE kv_entry
ADD COLUMN updated_at BIGINT NOT NULL DEFAULT 0`,
}

func NewPostgres(pgInfo PostgresInfo) (*SQLKV, error) {
	db, err := sql.Open("postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", pgInfo.Host, pgInfo.Port, pgInfo.User, pgInfo.Password, pgInfo.Database))
	if err != nil {
		return &SQLKV{}, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return &SQLKV{}, fmt.Errorf("could not reach postgres: %w", err)
	}

	return newSQLKV(db, sqlbuilder.PostgreSQL, pgMigrationTable, pgMigration)
}
