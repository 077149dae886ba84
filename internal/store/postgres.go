package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OrFisher/real-time-speech-processor/internal/keywords"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS keywords (
			id TEXT PRIMARY KEY,
			word TEXT NOT NULL UNIQUE,
			talking_point TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_keywords_active_word ON keywords (is_active, word);`,
		`CREATE TABLE IF NOT EXISTS transcriptions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			speaker_type TEXT NOT NULL DEFAULT 'unknown',
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcriptions_session_created ON transcriptions (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateKeyword(ctx context.Context, kw keywords.Keyword) (keywords.Keyword, error) {
	now := time.Now().UTC()
	kw.ID = uuid.NewString()
	kw.Word = strings.TrimSpace(kw.Word)
	kw.CreatedAt = now
	kw.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO keywords (id, word, talking_point, is_active, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		kw.ID, kw.Word, kw.TalkingPoint, kw.Active, kw.CreatedAt, kw.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return keywords.Keyword{}, ErrWordExists
		}
		return keywords.Keyword{}, fmt.Errorf("insert keyword: %w", err)
	}
	return kw, nil
}

func (s *PostgresStore) GetKeyword(ctx context.Context, id string) (keywords.Keyword, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, word, talking_point, is_active, created_at, updated_at FROM keywords WHERE id=$1`, id)
	kw, err := scanKeyword(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return keywords.Keyword{}, ErrNotFound
		}
		return keywords.Keyword{}, fmt.Errorf("get keyword: %w", err)
	}
	return kw, nil
}

func (s *PostgresStore) ListKeywords(ctx context.Context) ([]keywords.Keyword, error) {
	return s.queryKeywords(ctx,
		`SELECT id, word, talking_point, is_active, created_at, updated_at FROM keywords ORDER BY word ASC`)
}

func (s *PostgresStore) UpdateKeyword(ctx context.Context, kw keywords.Keyword) (keywords.Keyword, error) {
	kw.Word = strings.TrimSpace(kw.Word)
	kw.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE keywords SET word=$2, talking_point=$3, is_active=$4, updated_at=$5 WHERE id=$1`,
		kw.ID, kw.Word, kw.TalkingPoint, kw.Active, kw.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return keywords.Keyword{}, ErrWordExists
		}
		return keywords.Keyword{}, fmt.Errorf("update keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return keywords.Keyword{}, ErrNotFound
	}
	return s.GetKeyword(ctx, kw.ID)
}

func (s *PostgresStore) DeleteKeyword(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM keywords WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ActiveKeywords(ctx context.Context) ([]keywords.Keyword, error) {
	return s.queryKeywords(ctx,
		`SELECT id, word, talking_point, is_active, created_at, updated_at
		   FROM keywords WHERE is_active ORDER BY word ASC`)
}

func (s *PostgresStore) SaveTranscription(ctx context.Context, rec Transcription) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcriptions (id, session_id, speaker_type, text, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		rec.ID, rec.SessionID, rec.SpeakerType, rec.Text, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTranscriptions(ctx context.Context, sessionID string, limit int) ([]Transcription, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, speaker_type, text, created_at
		   FROM transcriptions WHERE session_id=$1 ORDER BY created_at ASC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	out := make([]Transcription, 0, limit)
	for rows.Next() {
		var rec Transcription
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.SpeakerType, &rec.Text, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcription rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) queryKeywords(ctx context.Context, sql string) ([]keywords.Keyword, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()

	out := make([]keywords.Keyword, 0, 16)
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword rows: %w", err)
	}
	return out, nil
}

func scanKeyword(row pgx.Row) (keywords.Keyword, error) {
	var kw keywords.Keyword
	if err := row.Scan(&kw.ID, &kw.Word, &kw.TalkingPoint, &kw.Active, &kw.CreatedAt, &kw.UpdatedAt); err != nil {
		return keywords.Keyword{}, err
	}
	return kw, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
