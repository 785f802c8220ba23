package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acrispim/mdchat/internal/markup"
	"github.com/acrispim/mdchat/internal/message"
	"github.com/acrispim/mdchat/internal/stream"
	"github.com/acrispim/mdchat/internal/transport"
)

// Service implements transport.Handler: the protocol adapter feeds inbound
// traffic here, and it is reconciled into the repository and the event
// stream.
var _ transport.Handler = (*Service)(nil)

// Attach registers the service as the transport's inbound handler.
func (s *Service) Attach(tp transport.Transport) {
	tp.SetHandler(s)
}

// MessageReceived persists an inbound message, publishes it, and
// acknowledges it to the far end. Redelivery of an already-known remote
// object id updates the existing record instead of duplicating it.
func (s *Service) MessageReceived(ctx context.Context, in transport.Inbound) error {
	if in.RemoteObjectID != "" {
		existing, err := s.repo.Get(ctx, in.RemoteJID, in.RemoteObjectID)
		if err != nil {
			return err
		}
		if existing != nil {
			return s.applyUpdate(ctx, existing, in)
		}
	}

	at := in.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	d := &message.Descriptor{
		RemoteJID:       in.RemoteJID,
		RemoteObjectID:  in.RemoteObjectID,
		Direction:       message.DirectionIncoming,
		Status:          message.StatusReceived,
		Created:         at,
		Updated:         at,
		OriginalCreated: at,
		ReplyToID:       in.ReplyToID,
		Metadata:        in.Metadata,
	}
	s.fillContent(d, in)

	if err := s.repo.Save(ctx, d); err != nil {
		return err
	}
	s.stream.Publish(stream.Event{
		Type:      stream.EventMessagesAppended,
		RemoteJID: in.RemoteJID,
		Timestamp: at,
		Messages:  []message.Descriptor{*d},
	})

	if in.RemoteObjectID != "" {
		if err := s.transport.Acknowledge(ctx, in.RemoteJID, in.RemoteObjectID); err != nil {
			// The message is already durable; a lost ack only delays the
			// far end's receipt.
			s.logger.Warn("failed to acknowledge inbound message",
				zap.Error(err), zap.String("remote_object_id", in.RemoteObjectID))
		}
	}
	return nil
}

// MessageUpdated applies a correction from the far end. An unknown target
// falls back to a fresh receive.
func (s *Service) MessageUpdated(ctx context.Context, in transport.Inbound) error {
	target := in.ReplacesObjectID
	if target == "" {
		target = in.RemoteObjectID
	}
	existing, err := s.repo.Get(ctx, in.RemoteJID, target)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.MessageReceived(ctx, in)
	}
	return s.applyUpdate(ctx, existing, in)
}

func (s *Service) applyUpdate(ctx context.Context, d *message.Descriptor, in transport.Inbound) error {
	at := in.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	if d.OriginalCreated.IsZero() {
		d.OriginalCreated = d.Created
	}
	prior := d.Fingerprint
	s.fillContent(d, in)
	d.Updated = at
	// An identical redelivery is not an edit.
	if d.Fingerprint != prior {
		d.IsEdited = true
	}

	if err := s.repo.Replace(ctx, d); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(d.MessageID)
	}
	s.stream.Publish(stream.Event{
		Type:      stream.EventMessageUpdated,
		RemoteJID: d.RemoteJID,
		Timestamp: at,
		Messages:  []message.Descriptor{*d},
	})
	return nil
}

// fillContent normalizes inbound content so at least one rendering is
// non-empty: markdown is rendered locally, bare HTML is tag-stripped for
// the plain fallback.
func (s *Service) fillContent(d *message.Descriptor, in transport.Inbound) {
	d.Markdown = in.Markdown
	d.PlainText = in.PlainText
	d.HTML = in.HTML

	if in.Markdown != "" && (d.HTML == "" || d.PlainText == "") {
		if htmlBody, plain, err := s.renderer.Render(in.Markdown); err == nil {
			if d.HTML == "" {
				d.HTML = htmlBody
			}
			if d.PlainText == "" {
				d.PlainText = plain
			}
		}
	}
	if d.PlainText == "" && d.HTML != "" {
		d.PlainText = markup.PlainFromHTML(d.HTML)
	}
	if d.PlainText == "" {
		d.PlainText = in.Markdown
	}
	d.Refingerprint()
}

// ReceiptReceived advances delivery status for the acknowledged messages
// and publishes one delivery receipt event. Unresolvable ids are skipped
// silently; cancellation is honored between updates.
func (s *Service) ReceiptReceived(ctx context.Context, rcpt transport.Receipt) error {
	status := message.StatusReceived
	if rcpt.Kind == transport.ReceiptDisplayed {
		status = message.StatusDisplayed
	}
	at := rcpt.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	for _, id := range rcpt.RemoteObjectIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.repo.UpdateDeliveryStatus(ctx, rcpt.RemoteJID, id, status, at); err != nil {
			return err
		}
	}

	s.publishReceipt(rcpt.RemoteJID, at, map[string]string{
		stream.DataMessageID: strings.Join(rcpt.RemoteObjectIDs, ","),
		stream.DataStatus:    string(status),
	})
	return nil
}
