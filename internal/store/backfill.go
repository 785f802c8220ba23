package store

import (
	"context"
	"fmt"

	"github.com/acrispim/mdchat/internal/message"
)

// Backfill populates the delivery metadata columns on rows written before
// migration 0002, deriving direction, delivery status and the original
// creation timestamp from the legacy type column and computing the content
// fingerprint. Already-populated fields are left untouched, so the pass is
// idempotent and safe to interrupt and resume; cancellation is checked
// between rows. Returns the number of rows updated.
func (db *DB) Backfill(ctx context.Context) (int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, legacy_type, markdown, plain_text, html, created_at
		FROM messages
		WHERE direction IS NULL
		   OR delivery_status IS NULL
		   OR original_created_at IS NULL
		   OR content_fingerprint IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("scan legacy rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type legacyRow struct {
		id                        int64
		legacyType                string
		markdown, plainText, html string
		createdAt                 int64
	}
	var pending []legacyRow
	for rows.Next() {
		var lr legacyRow
		if err := rows.Scan(&lr.id, &lr.legacyType, &lr.markdown, &lr.plainText, &lr.html, &lr.createdAt); err != nil {
			return 0, fmt.Errorf("scan legacy row: %w", err)
		}
		pending = append(pending, lr)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	updated := 0
	for _, lr := range pending {
		if err := ctx.Err(); err != nil {
			// Rows already migrated stay migrated.
			return updated, err
		}
		res, err := db.ExecContext(ctx, `
			UPDATE messages SET
				direction = COALESCE(direction, ?),
				delivery_status = COALESCE(delivery_status, ?),
				original_created_at = COALESCE(original_created_at, ?),
				content_fingerprint = COALESCE(content_fingerprint, ?)
			WHERE id = ?`,
			string(directionFromLegacy(lr.legacyType)),
			string(statusFromLegacy(lr.legacyType)),
			lr.createdAt,
			message.Fingerprint(lr.markdown, lr.plainText, lr.html),
			lr.id)
		if err != nil {
			return updated, fmt.Errorf("backfill row %d: %w", lr.id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}
	return updated, nil
}
