package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/nlpinitiative/discrimination-classifier/classifier"
	"github.com/nlpinitiative/discrimination-classifier/config"
)

const defaultTable = "classification_history"

// PostgresStore persists history in PostgreSQL, one JSONB row per result
type PostgresStore struct {
	db    *sql.DB
	table string // Quoted identifier
}

// NewPostgresStore connects, configures the pool and creates the table
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db, table: pq.QuoteIdentifier(defaultTable)}
	if err := store.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	slog.Info("[HistoryDB] Connected to PostgreSQL",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database))
	return store, nil
}

func (p *PostgresStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id UUID PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		discriminatory BOOLEAN NOT NULL DEFAULT FALSE,
		result JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_session_created ON %[1]s(session_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_history_created_at ON %[1]s(created_at);
	`, p.table)

	_, err := p.db.ExecContext(ctx, query)
	return err
}

func (p *PostgresStore) Append(ctx context.Context, sessionID string, result *classifier.ClassificationResult) (Entry, error) {
	entry := NewEntry(sessionID, result)
	data, err := json.Marshal(result)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal result: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, session_id, created_at, discriminatory, result)
	VALUES ($1, $2, $3, $4, $5::jsonb)
	`, p.table)

	_, err = p.db.ExecContext(ctx, query,
		entry.ID, entry.SessionID, entry.CreatedAt, result.Discriminatory(), string(data))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert history entry: %w", err)
	}
	return entry, nil
}

func (p *PostgresStore) List(ctx context.Context, sessionID string, limit, offset int) ([]Entry, error) {
	// LIMIT NULL returns every remaining row, matching MemoryStore
	var rowLimit sql.NullInt64
	if limit > 0 {
		rowLimit = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
	SELECT id, session_id, created_at, result
	FROM %s
	WHERE session_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`, p.table)

	rows, err := p.db.QueryContext(ctx, query, sessionID, rowLimit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var (
			e    Entry
			data []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.CreatedAt, &data); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal(data, &e.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresStore) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE session_id = $1`, p.table)
	if err := p.db.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, p.table)
	if _, err := p.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func (p *PostgresStore) CleanupOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at < NOW() - make_interval(secs => $1)`, p.table)
	result, err := p.db.ExecContext(ctx, query, age.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up history: %w", err)
	}
	return result.RowsAffected()
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
