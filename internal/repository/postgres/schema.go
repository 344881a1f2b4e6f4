package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL creates the chapter and comment tables. Offsets are stored flat;
// the comment text lives next to its anchor so one row restores one highlight.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	course_id     TEXT        NOT NULL,
	chapter_index INTEGER     NOT NULL CHECK (chapter_index >= 0),
	title         TEXT        NOT NULL DEFAULT '',
	content       TEXT        NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (course_id, chapter_index)
);

CREATE TABLE IF NOT EXISTS %[2]s (
	id            UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id       TEXT        NOT NULL,
	course_id     TEXT        NOT NULL,
	chapter_index INTEGER     NOT NULL CHECK (chapter_index >= 0),
	comment_text  TEXT        NOT NULL,
	selected_text TEXT        NOT NULL,
	start_offset  INTEGER     NOT NULL CHECK (start_offset >= 0),
	end_offset    INTEGER     NOT NULL,
	text_before   TEXT        NOT NULL DEFAULT '',
	text_after    TEXT        NOT NULL DEFAULT '',
	highlight_id  TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (end_offset > start_offset),
	UNIQUE (course_id, chapter_index, highlight_id)
);

CREATE INDEX IF NOT EXISTS %[3]s_scope_idx
	ON %[2]s (course_id, chapter_index, user_id, created_at);
`

// EnsureSchema creates missing tables for the configured prefix.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) error {
	query := fmt.Sprintf(schemaSQL, tables.Chapters, tables.Comments, tables.Comments)
	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("schema ready", "chapters", tables.Chapters, "comments", tables.Comments)
	return nil
}

// DropSchema removes the tables for the configured prefix.
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	query := fmt.Sprintf(`
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
	`, tables.Comments, tables.Chapters)
	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}
