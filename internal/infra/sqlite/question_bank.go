// Package sqlite keeps a local question bank in a single SQLite file for hosts that play offline.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"livequiz/internal/app"
	"livequiz/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions(lower(topic));`,
}

type QuestionBank struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates the database file and schema if needed.
func Open(path string, log zerolog.Logger) (*QuestionBank, error) {
	log = log.With().Str("component", "sqlite-bank").Logger()
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty in-memory database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Warn().Err(err).Msg("couldn't enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		log.Warn().Err(err).Msg("couldn't set busy timeout")
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &QuestionBank{db: db, log: log}, nil
}

func (b *QuestionBank) Close() error {
	return b.db.Close()
}

// Generate draws up to req.Count random questions for the topic.
func (b *QuestionBank) Generate(ctx context.Context, req app.GenerateRequest) ([]domain.Question, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT data FROM questions WHERE lower(topic) = ? ORDER BY random() LIMIT ?`,
		strings.ToLower(req.Topic), req.Count)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			b.log.Warn().Err(err).Msg("skipping unreadable question row")
			continue
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuestionsNotFound, req.Topic)
	}
	return questions, nil
}

// Import validates and stores questions under topic in one transaction.
func (b *QuestionBank) Import(ctx context.Context, topic string, questions []domain.Question) (int, error) {
	if strings.TrimSpace(topic) == "" {
		return 0, fmt.Errorf("import: topic is required")
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO questions (topic, data) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, fmt.Errorf("import question %d: %w", i, err)
		}
		data, err := json.Marshal(q)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, topic, string(data)); err != nil {
			return 0, fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(questions), nil
}
