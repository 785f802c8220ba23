package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/acrispim/mdchat/internal/message"
)

// Legacy message type values retained for backward compatibility with rows
// written before the delivery metadata columns existed.
const (
	legacyTypeSent     = "sent"
	legacyTypeReceived = "received"
)

// Record is the persisted shadow of a message descriptor: a superset with
// the legacy type column and the raw metadata JSON blob.
type Record struct {
	ID             int64
	RemoteJID      string
	LocalTempID    string
	RemoteObjectID string

	LegacyType     string
	Direction      string
	DeliveryStatus string

	ReplyToID string

	Markdown  string
	PlainText string
	HTML      string

	IsEdited     bool
	MetadataJSON string
	Fingerprint  string

	CreatedAt         int64 // unix millis
	UpdatedAt         int64
	OriginalCreatedAt int64 // 0 = not yet backfilled
}

// legacyTypeFor maps a direction onto the compat column so pre-migration
// readers keep working.
func legacyTypeFor(dir message.Direction) string {
	if dir == message.DirectionOutgoing {
		return legacyTypeSent
	}
	return legacyTypeReceived
}

func recordFromDescriptor(d *message.Descriptor) (*Record, error) {
	metadata := "{}"
	if len(d.Metadata) > 0 {
		raw, err := json.Marshal(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(raw)
	}

	r := &Record{
		RemoteJID:      d.RemoteJID,
		LocalTempID:    d.LocalTempID,
		RemoteObjectID: d.RemoteObjectID,
		LegacyType:     legacyTypeFor(d.Direction),
		Direction:      string(d.Direction),
		DeliveryStatus: string(d.Status),
		ReplyToID:      d.ReplyToID,
		Markdown:       d.Markdown,
		PlainText:      d.PlainText,
		HTML:           d.HTML,
		IsEdited:       d.IsEdited,
		MetadataJSON:   metadata,
		Fingerprint:    d.Fingerprint,
		CreatedAt:      d.Created.UnixMilli(),
		UpdatedAt:      d.Updated.UnixMilli(),
	}
	if !d.OriginalCreated.IsZero() {
		r.OriginalCreatedAt = d.OriginalCreated.UnixMilli()
	}
	if id, err := strconv.ParseInt(d.MessageID, 10, 64); err == nil {
		r.ID = id
	}
	return r, nil
}

func (r *Record) toDescriptor() (*message.Descriptor, error) {
	var metadata map[string]string
	if r.MetadataJSON != "" && r.MetadataJSON != "{}" {
		if err := json.Unmarshal([]byte(r.MetadataJSON), &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for message %d: %w", r.ID, err)
		}
	}

	d := &message.Descriptor{
		MessageID:      strconv.FormatInt(r.ID, 10),
		RemoteJID:      r.RemoteJID,
		LocalTempID:    r.LocalTempID,
		RemoteObjectID: r.RemoteObjectID,
		Direction:      message.Direction(r.Direction),
		Status:         message.DeliveryStatus(r.DeliveryStatus),
		ReplyToID:      r.ReplyToID,
		Markdown:       r.Markdown,
		PlainText:      r.PlainText,
		HTML:           r.HTML,
		IsEdited:       r.IsEdited,
		Fingerprint:    r.Fingerprint,
		Metadata:       metadata,
		Created:        time.UnixMilli(r.CreatedAt),
		Updated:        time.UnixMilli(r.UpdatedAt),
	}
	if r.OriginalCreatedAt != 0 {
		d.OriginalCreated = time.UnixMilli(r.OriginalCreatedAt)
	}
	// Rows not yet backfilled still expose usable values.
	if d.Direction == "" {
		d.Direction = directionFromLegacy(r.LegacyType)
	}
	if d.Status == "" {
		d.Status = statusFromLegacy(r.LegacyType)
	}
	if d.OriginalCreated.IsZero() {
		d.OriginalCreated = d.Created
	}
	return d, nil
}

func directionFromLegacy(legacyType string) message.Direction {
	if legacyType == legacyTypeSent {
		return message.DirectionOutgoing
	}
	return message.DirectionIncoming
}

func statusFromLegacy(legacyType string) message.DeliveryStatus {
	if legacyType == legacyTypeSent {
		return message.StatusSent
	}
	return message.StatusReceived
}
