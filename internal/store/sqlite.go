package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/timetable-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// GetPreferences returns stored preferences, or defaults for an unknown chat.
func (r *SQLiteRepo) GetPreferences(ctx context.Context, chatID int64) (domain.Preferences, error) {
	return getPreferences(ctx, r.db, chatID)
}

// ToggleGroup advances the chat's group filter and persists it.
func (r *SQLiteRepo) ToggleGroup(ctx context.Context, chatID int64, groups int) (int, error) {
	var next int
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getPreferences(ctx, tx, chatID)
		if err != nil {
			return err
		}
		p.Group = nextGroup(p.Group, groups)
		next = p.Group
		return upsert(ctx, tx, p)
	})
	return next, err
}

// ToggleNotifications flips the chat's reminder flag and persists it.
func (r *SQLiteRepo) ToggleNotifications(ctx context.Context, chatID int64) (bool, error) {
	var next bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getPreferences(ctx, tx, chatID)
		if err != nil {
			return err
		}
		p.Notifications = !p.Notifications
		next = p.Notifications
		return upsert(ctx, tx, p)
	})
	return next, err
}

// ListNotified returns chat IDs with reminders enabled, ordered by chat ID.
func (r *SQLiteRepo) ListNotified(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id
		FROM preferences
		WHERE notifications = 1
		ORDER BY chat_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *SQLiteRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getPreferences(ctx context.Context, q querier, chatID int64) (domain.Preferences, error) {
	row := q.QueryRowContext(ctx, `
		SELECT group_filter, notifications
		FROM preferences
		WHERE chat_id = ?`,
		chatID,
	)
	var (
		group    int
		notifInt int
	)
	if err := row.Scan(&group, &notifInt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Preferences{ChatID: chatID}, nil
		}
		return domain.Preferences{}, err
	}
	return domain.Preferences{
		ChatID:        chatID,
		Group:         group,
		Notifications: notifInt != 0,
	}, nil
}

// upsert inserts or updates a chat's preferences.
func upsert(ctx context.Context, q querier, p domain.Preferences) error {
	now := time.Now().UTC().Unix()
	_, err := q.ExecContext(ctx, `
		INSERT INTO preferences (chat_id, created_at, updated_at, group_filter, notifications)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			updated_at    = excluded.updated_at,
			group_filter  = excluded.group_filter,
			notifications = excluded.notifications`,
		p.ChatID, now, now, p.Group, boolToInt(p.Notifications),
	)
	return err
}
