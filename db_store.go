package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

type DBDialect string

const (
	dialectSQLite   DBDialect = "sqlite"
	dialectPostgres DBDialect = "postgres"
	dialectMemory   DBDialect = "memory"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

type SQLRepository struct {
	dialect DBDialect
	db      *sql.DB
	log     *slog.Logger
}

// openRepository connects to the configured database and migrates it. The
// memory dialect returns a nil repository and nothing is persisted.
func openRepository(ctx context.Context, cfg Config, log *slog.Logger) (*SQLRepository, error) {
	dialectRaw := strings.TrimSpace(strings.ToLower(cfg.DBDialect))
	if dialectRaw == "" {
		dialectRaw = string(dialectSQLite)
	}
	dialect := DBDialect(dialectRaw)

	var driverName string
	var dsn string
	switch dialect {
	case dialectMemory:
		log.Info("database disabled, sessions live in memory only")
		return nil, nil
	case dialectSQLite:
		driverName = "sqlite"
		path := strings.TrimSpace(cfg.DBSQLitePath)
		if path == "" {
			path = filepath.Join("tmp", "life_sim.sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		dsn = path
	case dialectPostgres:
		driverName = "pgx"
		dsn = cfg.postgresDSN()
		if dsn == "" {
			return nil, errors.New("DB_DIALECT=postgres requires DB_POSTGRES_DSN or DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", dialectRaw)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == dialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	repo := &SQLRepository{dialect: dialect, db: db, log: log}
	if err := repo.applyMigrations(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("database ready", "dialect", dialect)
	return repo, nil
}

func (r *SQLRepository) applyMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrationFS)
	gooseDialect := "sqlite3"
	if r.dialect == dialectPostgres {
		gooseDialect = "postgres"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, r.db, "migrations/"+string(r.dialect)); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) bind(pos int) string {
	if r.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

// upsertQuery writes a player-keyed payload row, replacing any existing one.
func (r *SQLRepository) upsertQuery(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (player_id, payload, updated_at) VALUES (%s, %s, %s) "+
			"ON CONFLICT (player_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at",
		table, r.bind(1), r.bind(2), r.bind(3),
	)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLRepository) upsertPayload(ctx context.Context, ex execer, table, playerID, payload string) error {
	if _, err := ex.ExecContext(ctx, r.upsertQuery(table), playerID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func (r *SQLRepository) SaveSession(ctx context.Context, sess *Session) error {
	return r.Save(ctx, []*Session{sess})
}

// Save writes every given session in one transaction.
func (r *SQLRepository) Save(ctx context.Context, sessions []*Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	for _, sess := range sessions {
		payload, err := json.Marshal(sess)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode session %s: %w", sess.PlayerID, err)
		}
		if err := r.upsertPayload(ctx, tx, "sessions", sess.PlayerID, string(payload)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

// LoadSessions returns every stored session. Rows that no longer decode are
// skipped with a warning; the player simply starts over.
func (r *SQLRepository) LoadSessions(ctx context.Context) ([]*Session, error) {
	var out []*Session
	err := loadPayloadRows(ctx, r.db, "SELECT player_id, payload FROM sessions ORDER BY player_id", func(playerID, payload string) error {
		var sess Session
		if err := json.Unmarshal([]byte(payload), &sess); err != nil {
			r.log.Warn("skip malformed session", "player", playerID, "err", err)
			return nil
		}
		sess.PlayerID = playerID
		out = append(out, &sess)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) DeleteSessions(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

func (r *SQLRepository) SaveGameData(ctx context.Context, playerID string, raw []byte) error {
	return r.upsertPayload(ctx, r.db, "game_data", playerID, string(raw))
}

// LoadGameData returns the stored blob verbatim, or nil when the player has none.
func (r *SQLRepository) LoadGameData(ctx context.Context, playerID string) ([]byte, error) {
	q := fmt.Sprintf("SELECT payload FROM game_data WHERE player_id = %s", r.bind(1))
	var payload string
	err := r.db.QueryRowContext(ctx, q, playerID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load game data: %w", err)
	}
	return []byte(payload), nil
}

func loadPayloadRows(ctx context.Context, db *sql.DB, q string, fn func(playerID, payload string) error) error {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var playerID, payload string
		if err := rows.Scan(&playerID, &payload); err != nil {
			return err
		}
		if err := fn(playerID, payload); err != nil {
			return err
		}
	}
	return rows.Err()
}
