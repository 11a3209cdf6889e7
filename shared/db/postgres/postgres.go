package postgres

import (
	"fmt"
	"time"

	"github.com/dfryer1193/blogspace/shared/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

const connectTimeout = 5 * time.Second

type PostgresConfig struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// PostgresDB implements the db.Database interface for PostgreSQL through pgx's database/sql adapter
type PostgresDB struct {
	cfg *PostgresConfig
	db  *sqlx.DB
}

var _ db.Database = (*PostgresDB)(nil)

func NewPostgresDB(cfg *PostgresConfig) *PostgresDB {
	return &PostgresDB{
		cfg: cfg,
	}
}

// Connect opens the pool, checks connectivity and brings the schema up to date
func (p *PostgresDB) Connect() error {
	if p.db != nil {
		return fmt.Errorf("database already connected")
	}

	pgCfg, err := pgx.ParseConfig(p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Fail fast on startup if PG is unreachable
	pgCfg.ConnectTimeout = connectTimeout

	conn := sqlx.NewDb(stdlib.OpenDB(*pgCfg), "pgx")

	if p.cfg.MaxOpen > 0 {
		conn.SetMaxOpenConns(p.cfg.MaxOpen)
	}
	if p.cfg.MaxIdle > 0 {
		conn.SetMaxIdleConns(p.cfg.MaxIdle)
	}
	if p.cfg.MaxLifetime > 0 {
		conn.SetConnMaxLifetime(p.cfg.MaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.RunMigrations(conn, db.PostMigrations); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	p.db = conn
	return nil
}

func (p *PostgresDB) Close() error {
	if p.db == nil {
		return nil
	}

	err := p.db.Close()
	p.db = nil
	return err
}

// DB returns the underlying *sqlx.DB instance
func (p *PostgresDB) DB() *sqlx.DB {
	return p.db
}
