// Package store keeps the question pool, categories and result history in a
// SQL database. The same queries run on SQLite and Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"assessly/internal/exam"
	"assessly/internal/question"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ question.Repository   = (*Store)(nil)
	_ exam.ResultRepository = (*Store)(nil)
)

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	seq := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "DATETIME"
	if s.dialect == Postgres {
		seq = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			subject_id TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			category_id TEXT NOT NULL DEFAULT '',
			prompt TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_index INTEGER NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL DEFAULT 'medium',
			tags TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_category ON questions (category_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS results (
			seq %s,
			id TEXT NOT NULL UNIQUE,
			taken_at %s NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			total INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			wrong INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			score_percent INTEGER NOT NULL
		)`, seq, ts),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveQuestions upserts items in one transaction; either all are stored or
// none are.
func (s *Store) SaveQuestions(ctx context.Context, items []question.Question) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO questions (id, category_id, prompt, options, correct_index, explanation, difficulty, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			category_id = excluded.category_id,
			prompt = excluded.prompt,
			options = excluded.options,
			correct_index = excluded.correct_index,
			explanation = excluded.explanation,
			difficulty = excluded.difficulty,
			tags = excluded.tags`))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, q := range items {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options: %w", err)
		}
		tags := q.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsRaw, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, q.ID, q.CategoryID, q.Prompt, string(opts), q.CorrectIndex, q.Explanation, string(q.Difficulty), string(tagsRaw)); err != nil {
			return fmt.Errorf("upsert question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListQuestions(ctx context.Context, f question.Filter) ([]question.Question, error) {
	query := `SELECT id, category_id, prompt, options, correct_index, explanation, difficulty, tags FROM questions`
	args := make([]any, 0, len(f.CategoryIDs))
	if len(f.CategoryIDs) > 0 {
		marks := make([]string, 0, len(f.CategoryIDs))
		for _, id := range f.CategoryIDs {
			marks = append(marks, "?")
			args = append(args, id)
		}
		query += ` WHERE category_id IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	out := make([]question.Question, 0)
	for rows.Next() {
		var (
			q          question.Question
			opts, tags string
			difficulty string
		)
		if err := rows.Scan(&q.ID, &q.CategoryID, &q.Prompt, &opts, &q.CorrectIndex, &q.Explanation, &difficulty, &tags); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of %s: %w", q.ID, err)
		}
		if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", q.ID, err)
		}
		if len(q.Tags) == 0 {
			q.Tags = nil
		}
		q.Difficulty = question.ParseDifficulty(difficulty)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) SaveCategory(ctx context.Context, c question.Category) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO categories (id, name, subject_id, parent_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			subject_id = excluded.subject_id,
			parent_id = excluded.parent_id`),
		c.ID, c.Name, c.SubjectID, c.ParentID)
	if err != nil {
		return fmt.Errorf("upsert category %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]question.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, subject_id, parent_id FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := make([]question.Category, 0)
	for rows.Next() {
		var c question.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SubjectID, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendResult inserts r. Results are never updated.
func (s *Store) AppendResult(ctx context.Context, r exam.Result) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO results (id, taken_at, kind, title, total, correct, wrong, skipped, score_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.TakenAt.UTC(), string(r.Kind), r.Title, r.Total, r.Correct, r.Wrong, r.Skipped, r.ScorePercent)
	if err != nil {
		return fmt.Errorf("insert result %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) ListResults(ctx context.Context) ([]exam.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, taken_at, kind, title, total, correct, wrong, skipped, score_percent
		FROM results ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]exam.Result, 0)
	for rows.Next() {
		var (
			r    exam.Result
			kind string
		)
		if err := rows.Scan(&r.ID, &r.TakenAt, &kind, &r.Title, &r.Total, &r.Correct, &r.Wrong, &r.Skipped, &r.ScorePercent); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Kind = exam.Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}
