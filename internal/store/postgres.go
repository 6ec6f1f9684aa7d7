package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id                   BIGSERIAL PRIMARY KEY,
	user_id              BIGINT NOT NULL,
	date                 TIMESTAMPTZ NOT NULL,
	total_words          INTEGER NOT NULL DEFAULT 0,
	correct_words        INTEGER NOT NULL DEFAULT 0,
	incorrect_words      INTEGER NOT NULL DEFAULT 0,
	accuracy_percent     DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_response_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_points         INTEGER NOT NULL DEFAULT 0,
	records              JSONB NOT NULL DEFAULT '[]',
	stats                JSONB NOT NULL DEFAULT '{}',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sessions_user_date_idx ON sessions (user_id, date DESC);

CREATE TABLE IF NOT EXISTS user_progress (
	user_id    TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect opens the pool, pings it and creates the tables if missing.
func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log = log.With().Str("component", "store").Logger()
	log.Info().
		Str("url", maskDSN(databaseURL)).
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Msg("database connected")

	p := &Postgres{Pool: pool, log: log}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return p, nil
}

// EnsureSchema creates the sessions and user_progress tables. Idempotent.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, schemaSQL)
	return err
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.log.Info().Msg("closing database pool")
	p.Pool.Close()
}

func (p *Postgres) CreateSession(ctx context.Context, in NewSession) (int64, error) {
	s := buildSession(0, in, time.Now().UTC())
	records, err := json.Marshal(s.Records)
	if err != nil {
		return 0, fmt.Errorf("encode records: %w", err)
	}
	stats, err := json.Marshal(s.Stats)
	if err != nil {
		return 0, fmt.Errorf("encode stats: %w", err)
	}

	var id int64
	err = p.Pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id, date, total_words, correct_words, incorrect_words,
			accuracy_percent, avg_response_time_ms, total_points, records, stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $2)
		RETURNING id
	`, s.UserID, s.Date, s.TotalWords, s.CorrectWords, s.IncorrectWords,
		s.AccuracyPercent, s.AvgResponseTimeMs, s.TotalPoints, records, stats,
	).Scan(&id)
	return id, err
}

const sessionColumns = `id, user_id, date, total_words, correct_words, incorrect_words,
	accuracy_percent, avg_response_time_ms, total_points, records, stats, created_at`

func (p *Postgres) Session(ctx context.Context, id int64) (*Session, error) {
	row := p.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Postgres) UserSessions(ctx context.Context, userID int64, limit int) ([]Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY date DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := p.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var records, stats []byte
	err := row.Scan(&s.ID, &s.UserID, &s.Date, &s.TotalWords, &s.CorrectWords, &s.IncorrectWords,
		&s.AccuracyPercent, &s.AvgResponseTimeMs, &s.TotalPoints, &records, &stats, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(records, &s.Records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if err := json.Unmarshal(stats, &s.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &s, nil
}

func (p *Postgres) PutProgress(ctx context.Context, userID string, doc map[string]any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	_, err = p.Pool.Exec(ctx, `
		INSERT INTO user_progress (user_id, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			doc        = EXCLUDED.doc,
			updated_at = now()
	`, userID, b)
	return err
}

func (p *Postgres) Progress(ctx context.Context, userID string) (map[string]any, error) {
	var b []byte
	err := p.Pool.QueryRow(ctx, `SELECT doc FROM user_progress WHERE user_id = $1`, userID).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return doc, nil
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
