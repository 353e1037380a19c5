package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrDBScan       = errors.New("database scan error")
	ErrTxn          = errors.New("database transaction error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
)

type Database struct {
	*sqlx.DB
}

// NewDatabase opens the shared store file. The DSN serializes write
// transactions at BEGIN and waits out writers from other node processes
// instead of failing with SQLITE_BUSY.
func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{DB: db}, nil
}

// Migrate creates the compatibility schema. Table and column names are part
// of the shared surface and must not change.
func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS local_models(
						model_id TEXT,
						generation_time TEXT,
						agent_id TEXT,
						round INTEGER,
						performance REAL,
						num_samples INTEGER
					)`,
					`CREATE TABLE IF NOT EXISTS cluster_models(
						model_id TEXT,
						generation_time TEXT,
						aggregator_id TEXT,
						round INTEGER,
						num_samples INTEGER
					)`,
					`CREATE TABLE IF NOT EXISTS registered_agents(
						agent_id TEXT PRIMARY KEY,
						agent_name TEXT,
						agent_ip TEXT,
						agent_port TEXT,
						random_value INTEGER,
						registration_time TEXT,
						is_active INTEGER DEFAULT 1
					)`,
					`CREATE TABLE IF NOT EXISTS current_aggregator(
						round INTEGER PRIMARY KEY,
						aggregator_id TEXT,
						aggregator_ip TEXT,
						aggregator_port TEXT,
						selection_time TEXT,
						status TEXT DEFAULT 'active'
					)`,
					`CREATE TABLE IF NOT EXISTS round_control(
						id INTEGER PRIMARY KEY,
						current_round INTEGER DEFAULT 0,
						agents_registered INTEGER DEFAULT 0,
						aggregation_complete INTEGER DEFAULT 0,
						last_update TEXT
					)`,
					`INSERT OR IGNORE INTO round_control (id, current_round) VALUES (1, 0)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS round_control`,
					`DROP TABLE IF EXISTS current_aggregator`,
					`DROP TABLE IF EXISTS registered_agents`,
					`DROP TABLE IF EXISTS cluster_models`,
					`DROP TABLE IF EXISTS local_models`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("database migration error: %w", err)
	}

	return nil
}
