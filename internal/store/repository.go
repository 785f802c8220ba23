package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/acrispim/mdchat/internal/message"
)

// ErrNotFound is returned by Replace when the target record does not exist.
// Get, Delete and UpdateDeliveryStatus treat absence as a benign no-op
// instead.
var ErrNotFound = errors.New("message not found")

const recordColumns = `id, remote_jid, local_temp_id, remote_object_id, legacy_type,
	direction, delivery_status, reply_to_id, markdown, plain_text, html,
	is_edited, metadata, content_fingerprint, created_at, updated_at, original_created_at`

// Save inserts a new record and back-fills the descriptor's MessageID with
// the assigned persisted id.
func (db *DB) Save(ctx context.Context, d *message.Descriptor) error {
	r, err := recordFromDescriptor(d)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO messages (remote_jid, local_temp_id, remote_object_id, legacy_type,
			direction, delivery_status, reply_to_id, markdown, plain_text, html,
			is_edited, metadata, content_fingerprint, created_at, updated_at, original_created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RemoteJID, r.LocalTempID, r.RemoteObjectID, r.LegacyType,
		r.Direction, r.DeliveryStatus, r.ReplyToID, r.Markdown, r.PlainText, r.HTML,
		r.IsEdited, r.MetadataJSON, r.Fingerprint, r.CreatedAt, r.UpdatedAt, nullableMillis(r.OriginalCreatedAt))
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save message id: %w", err)
	}
	d.MessageID = strconv.FormatInt(id, 10)
	return nil
}

// Replace performs a full update of an existing record keyed by the
// descriptor's MessageID (resolved through the identifier chain).
func (db *DB) Replace(ctx context.Context, d *message.Descriptor) error {
	rowID, ok, err := db.resolveRowID(ctx, d.RemoteJID, d.MessageID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("replace message %s: %w", d.MessageID, ErrNotFound)
	}
	r, err := recordFromDescriptor(d)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE messages SET remote_jid = ?, local_temp_id = ?, remote_object_id = ?,
			legacy_type = ?, direction = ?, delivery_status = ?, reply_to_id = ?,
			markdown = ?, plain_text = ?, html = ?, is_edited = ?, metadata = ?,
			content_fingerprint = ?, created_at = ?, updated_at = ?, original_created_at = ?
		WHERE id = ?`,
		r.RemoteJID, r.LocalTempID, r.RemoteObjectID,
		r.LegacyType, r.Direction, r.DeliveryStatus, r.ReplyToID,
		r.Markdown, r.PlainText, r.HTML, r.IsEdited, r.MetadataJSON,
		r.Fingerprint, r.CreatedAt, r.UpdatedAt, nullableMillis(r.OriginalCreatedAt), rowID)
	if err != nil {
		return fmt.Errorf("replace message: %w", err)
	}
	return nil
}

// Get loads one message by any of its identifiers. Returns (nil, nil) when
// the id does not resolve.
func (db *DB) Get(ctx context.Context, remoteJID, messageID string) (*message.Descriptor, error) {
	rowID, ok, err := db.resolveRowID(ctx, remoteJID, messageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	r, err := db.loadRecord(ctx, rowID)
	if err != nil {
		return nil, err
	}
	return r.toDescriptor()
}

// Delete removes one message by any of its identifiers. A no-op when the id
// does not resolve.
func (db *DB) Delete(ctx context.Context, remoteJID, messageID string) error {
	rowID, ok, err := db.resolveRowID(ctx, remoteJID, messageID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, rowID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// LoadRecent returns the newest page of messages for a conversation,
// newest first. A non-positive page size yields an empty page.
func (db *DB) LoadRecent(ctx context.Context, remoteJID string, pageSize int) ([]message.Descriptor, error) {
	if pageSize <= 0 {
		return nil, nil
	}
	return db.loadPage(ctx, `
		SELECT `+recordColumns+` FROM messages
		WHERE remote_jid = ?
		ORDER BY created_at DESC
		LIMIT ?`, remoteJID, pageSize)
}

// LoadOlder returns a page of messages created strictly before the given
// time, newest first, for backward pagination.
func (db *DB) LoadOlder(ctx context.Context, remoteJID string, before time.Time, pageSize int) ([]message.Descriptor, error) {
	if pageSize <= 0 {
		return nil, nil
	}
	return db.loadPage(ctx, `
		SELECT `+recordColumns+` FROM messages
		WHERE remote_jid = ? AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?`, remoteJID, before.UnixMilli(), pageSize)
}

// UpdateDeliveryStatus applies a targeted status+timestamp update. A no-op
// when the id does not resolve, or when the transition would move the
// delivery status backwards (late/duplicate receipts).
func (db *DB) UpdateDeliveryStatus(ctx context.Context, remoteJID, messageID string, status message.DeliveryStatus, at time.Time) error {
	rowID, ok, err := db.resolveRowID(ctx, remoteJID, messageID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var current sql.NullString
	var legacyType string
	err = db.QueryRowContext(ctx,
		`SELECT delivery_status, legacy_type FROM messages WHERE id = ?`, rowID).
		Scan(&current, &legacyType)
	if err != nil {
		return fmt.Errorf("read delivery status: %w", err)
	}
	from := message.DeliveryStatus(current.String)
	if from == "" {
		from = statusFromLegacy(legacyType)
	}
	if from != status && !message.CanAdvance(from, status) {
		return nil
	}

	_, err = db.ExecContext(ctx,
		`UPDATE messages SET delivery_status = ?, updated_at = ? WHERE id = ?`,
		string(status), at.UnixMilli(), rowID)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	return nil
}

// resolveRowID maps any of a message's three identifiers to its row id.
// Lookup order, first match wins: persisted object id (accepted only when
// the conversation matches), remote object id, local temp id.
func (db *DB) resolveRowID(ctx context.Context, remoteJID, messageID string) (int64, bool, error) {
	if messageID == "" {
		return 0, false, nil
	}

	if id, err := strconv.ParseInt(messageID, 10, 64); err == nil {
		var rowID int64
		err := db.QueryRowContext(ctx,
			`SELECT id FROM messages WHERE id = ? AND remote_jid = ?`, id, remoteJID).
			Scan(&rowID)
		switch {
		case err == nil:
			return rowID, true, nil
		case !errors.Is(err, sql.ErrNoRows):
			return 0, false, fmt.Errorf("resolve by id: %w", err)
		}
	}

	var rowID int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM messages WHERE remote_jid = ? AND remote_object_id = ?`,
		remoteJID, messageID).Scan(&rowID)
	switch {
	case err == nil:
		return rowID, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, fmt.Errorf("resolve by remote object id: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT id FROM messages WHERE remote_jid = ? AND local_temp_id = ?`,
		remoteJID, messageID).Scan(&rowID)
	switch {
	case err == nil:
		return rowID, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, fmt.Errorf("resolve by local temp id: %w", err)
	}

	return 0, false, nil
}

func (db *DB) loadRecord(ctx context.Context, rowID int64) (*Record, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM messages WHERE id = ?`, rowID)
	r, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("load message %d: %w", rowID, err)
	}
	return r, nil
}

func (db *DB) loadPage(ctx context.Context, query string, args ...any) ([]message.Descriptor, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var page []message.Descriptor
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		d, err := r.toDescriptor()
		if err != nil {
			return nil, err
		}
		page = append(page, *d)
	}
	return page, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var localTempID, remoteObjectID, replyToID sql.NullString
	var direction, deliveryStatus, fingerprint sql.NullString
	var originalCreatedAt sql.NullInt64
	err := row.Scan(&r.ID, &r.RemoteJID, &localTempID, &remoteObjectID, &r.LegacyType,
		&direction, &deliveryStatus, &replyToID, &r.Markdown, &r.PlainText, &r.HTML,
		&r.IsEdited, &r.MetadataJSON, &fingerprint, &r.CreatedAt, &r.UpdatedAt, &originalCreatedAt)
	if err != nil {
		return nil, err
	}
	r.LocalTempID = localTempID.String
	r.RemoteObjectID = remoteObjectID.String
	r.ReplyToID = replyToID.String
	r.Direction = direction.String
	r.DeliveryStatus = deliveryStatus.String
	r.Fingerprint = fingerprint.String
	r.OriginalCreatedAt = originalCreatedAt.Int64
	return &r, nil
}

// nullableMillis maps the zero time onto NULL so the backfill can recognize
// rows that never recorded an original creation timestamp.
func nullableMillis(ms int64) any {
	if ms == 0 {
		return nil
	}
	return ms
}
