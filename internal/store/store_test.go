package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/acrispim/mdchat/internal/message"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func outgoing(jid, markdown string) *message.Descriptor {
	now := time.Now()
	d := &message.Descriptor{
		RemoteJID:       jid,
		LocalTempID:     "tmp-" + markdown,
		Direction:       message.DirectionOutgoing,
		Status:          message.StatusPending,
		Created:         now,
		Updated:         now,
		OriginalCreated: now,
		Markdown:        markdown,
		PlainText:       markdown,
		HTML:            "<p>" + markdown + "</p>",
	}
	d.Refingerprint()
	return d
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + delivery metadata)", result.Version)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := outgoing("alice@example", "**hi**")
	d.ReplyToID = "41"
	d.Metadata = map[string]string{"client": "test"}
	if err := db.Save(ctx, d); err != nil {
		t.Fatal(err)
	}
	if d.MessageID == "" {
		t.Fatal("Save did not back-fill MessageID")
	}

	got, err := db.Get(ctx, "alice@example", d.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("saved message not found")
	}
	if got.Markdown != d.Markdown || got.PlainText != d.PlainText || got.HTML != d.HTML {
		t.Errorf("content mismatch: got %+v", got)
	}
	if got.Direction != message.DirectionOutgoing || got.Status != message.StatusPending {
		t.Errorf("direction/status = %s/%s", got.Direction, got.Status)
	}
	if got.ReplyToID != "41" {
		t.Errorf("reply_to_id = %q, want 41", got.ReplyToID)
	}
	if got.Metadata["client"] != "test" {
		t.Errorf("metadata = %v, want client=test", got.Metadata)
	}
	if got.Fingerprint != d.Fingerprint {
		t.Errorf("fingerprint = %q, want %q", got.Fingerprint, d.Fingerprint)
	}
	if got.Created.UnixMilli() != d.Created.UnixMilli() {
		t.Errorf("created = %v, want %v", got.Created, d.Created)
	}
	if got.OriginalCreated.UnixMilli() != d.OriginalCreated.UnixMilli() {
		t.Errorf("original created = %v, want %v", got.OriginalCreated, d.OriginalCreated)
	}
}

func TestIdentifierResolutionFallback(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := outgoing("alice@example", "hello")
	d.LocalTempID = "local-1"
	if err := db.Save(ctx, d); err != nil {
		t.Fatal(err)
	}

	// Not yet acknowledged: reachable by local temp id.
	got, err := db.Get(ctx, "alice@example", "local-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("lookup by local temp id failed")
	}
	if got.MessageID != d.MessageID {
		t.Errorf("MessageID = %q, want %q", got.MessageID, d.MessageID)
	}

	// After the far end assigns an id, reachable by remote object id too.
	d.RemoteObjectID = "remote-9"
	if err := db.Replace(ctx, d); err != nil {
		t.Fatal(err)
	}
	got, err = db.Get(ctx, "alice@example", "remote-9")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.MessageID != d.MessageID {
		t.Fatal("lookup by remote object id failed")
	}

	// And always by the persisted id itself.
	got, err = db.Get(ctx, "alice@example", d.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("lookup by persisted id failed")
	}
}

func TestResolutionRejectsWrongConversation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := outgoing("alice@example", "hello")
	if err := db.Save(ctx, d); err != nil {
		t.Fatal(err)
	}

	got, err := db.Get(ctx, "mallory@example", d.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("persisted id accepted for the wrong conversation")
	}
}

func TestJIDCaseInsensitiveButPreserving(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := outgoing("Alice@Example.Com", "hello")
	if err := db.Save(ctx, d); err != nil {
		t.Fatal(err)
	}

	got, err := db.Get(ctx, "alice@example.com", d.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("case-insensitive lookup failed")
	}
	if got.RemoteJID != "Alice@Example.Com" {
		t.Errorf("stored JID = %q, casing not preserved", got.RemoteJID)
	}
}

func TestLoadRecentAndOlder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		d := outgoing("alice@example", "msg")
		d.LocalTempID = ""
		d.Created = base.Add(time.Duration(i) * time.Minute)
		d.Updated = d.Created
		d.OriginalCreated = d.Created
		if err := db.Save(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := db.LoadRecent(ctx, "alice@example", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d messages, want 3", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].Created.After(recent[i-1].Created) {
			t.Error("LoadRecent not newest-first")
		}
	}

	older, err := db.LoadOlder(ctx, "alice@example", recent[2].Created, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 2 {
		t.Fatalf("got %d older messages, want 2", len(older))
	}
	for _, d := range older {
		if !d.Created.Before(recent[2].Created) {
			t.Error("LoadOlder returned a message not strictly older")
		}
	}

	empty, err := db.LoadRecent(ctx, "alice@example", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("pageSize 0: got %d messages, want 0", len(empty))
	}
}

func TestUpdateDeliveryStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := outgoing("alice@example", "hello")
	d.Status = message.StatusSent
	if err := db.Save(ctx, d); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateDeliveryStatus(ctx, "alice@example", d.MessageID, message.StatusReceived, time.Now()); err != nil {
		t.Fatal(err)
	}
	got, _ := db.Get(ctx, "alice@example", d.MessageID)
	if got.Status != message.StatusReceived {
		t.Errorf("status = %s, want received", got.Status)
	}

	if err := db.UpdateDeliveryStatus(ctx, "alice@example", d.MessageID, message.StatusDisplayed, time.Now()); err != nil {
		t.Fatal(err)
	}
	got, _ = db.Get(ctx, "alice@example", d.MessageID)
	if got.Status != message.StatusDisplayed {
		t.Errorf("status = %s, want displayed", got.Status)
	}

	// A late "received" receipt must not regress the displayed status.
	if err := db.UpdateDeliveryStatus(ctx, "alice@example", d.MessageID, message.StatusReceived, time.Now()); err != nil {
		t.Fatal(err)
	}
	got, _ = db.Get(ctx, "alice@example", d.MessageID)
	if got.Status != message.StatusDisplayed {
		t.Errorf("status regressed to %s", got.Status)
	}
}

func TestUpdateDeliveryStatusUnresolvable(t *testing.T) {
	db := testDB(t)

	// Unknown id resolves to nothing and is a silent no-op, not an error.
	err := db.UpdateDeliveryStatus(context.Background(), "alice@example", "no-such-id", message.StatusReceived, time.Now())
	if err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := outgoing("alice@example", "hello")
	if err := db.Save(ctx, d); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete(ctx, "alice@example", d.LocalTempID); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get(ctx, "alice@example", d.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("message still present after delete")
	}

	// Deleting an absent message is a no-op.
	if err := db.Delete(ctx, "alice@example", "gone"); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestReplaceMissingMessage(t *testing.T) {
	db := testDB(t)

	d := outgoing("alice@example", "hello")
	d.MessageID = "12345"
	err := db.Replace(context.Background(), d)
	if err == nil {
		t.Fatal("expected error replacing a missing message")
	}
}
