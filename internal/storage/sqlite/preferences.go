package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readPreferences(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM preferences")
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs[key] = value
	}
	return prefs, rows.Err()
}

func writePreferences(ctx context.Context, tx *sql.Tx, set map[string]string, del []string) error {
	if len(set) > 0 {
		stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO preferences (key, value, updated_at) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		for key, value := range set {
			if _, err := stmt.ExecContext(ctx, key, value, now); err != nil {
				return fmt.Errorf("failed to write preference %s: %w", key, err)
			}
		}
	}

	for _, key := range del {
		if _, err := tx.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to delete preference %s: %w", key, err)
		}
	}
	return nil
}
