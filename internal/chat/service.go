// Package chat is the write path for outgoing content: it owns the
// optimistic-local-then-confirm-remote send protocol and the reconciliation
// of inbound transport traffic into the message repository.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acrispim/mdchat/internal/message"
	"github.com/acrispim/mdchat/internal/render"
	"github.com/acrispim/mdchat/internal/stream"
	"github.com/acrispim/mdchat/internal/transport"
)

// ErrInvalidArgument marks validation failures raised before any side effect.
var ErrInvalidArgument = errors.New("invalid argument")

// Repository is the durable message state the service writes through.
// *store.DB satisfies it.
type Repository interface {
	Save(ctx context.Context, d *message.Descriptor) error
	Replace(ctx context.Context, d *message.Descriptor) error
	Get(ctx context.Context, remoteJID, messageID string) (*message.Descriptor, error)
	Delete(ctx context.Context, remoteJID, messageID string) error
	LoadRecent(ctx context.Context, remoteJID string, pageSize int) ([]message.Descriptor, error)
	LoadOlder(ctx context.Context, remoteJID string, before time.Time, pageSize int) ([]message.Descriptor, error)
	UpdateDeliveryStatus(ctx context.Context, remoteJID, messageID string, status message.DeliveryStatus, at time.Time) error
}

// MarkdownRenderer is the pure markdown boundary the send path delegates to.
// *markup.Renderer satisfies it.
type MarkdownRenderer interface {
	Render(markdown string) (htmlBody, plainText string, err error)
}

// Service orchestrates sending, editing and inbound reconciliation. It is
// the only writer for any given message id; concurrent edits to the same
// message from two call sites are not coordinated (single-writer assumption,
// enforced per profile by the process lock).
type Service struct {
	repo           Repository
	transport      transport.Transport
	stream         *stream.Stream
	cache          *render.Cache
	renderer       MarkdownRenderer
	connectTimeout time.Duration
	logger         *zap.Logger
}

// New creates a message service. The render cache is optional; when present
// it is invalidated on confirmed edits.
func New(repo Repository, tp transport.Transport, st *stream.Stream, cache *render.Cache,
	renderer MarkdownRenderer, connectTimeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:           repo,
		transport:      tp,
		stream:         st,
		cache:          cache,
		renderer:       renderer,
		connectTimeout: connectTimeout,
		logger:         logger,
	}
}

// SendOptions carries the optional parameters of SendMarkdown.
type SendOptions struct {
	// ReplyToID references the message being replied to.
	ReplyToID string
	// ReplaceMessageID, when resolvable, turns the send into an edit of the
	// referenced message (any of its three identifiers is accepted).
	ReplaceMessageID string
}

// SendMarkdown renders and dispatches outgoing markdown. The descriptor is
// persisted before dispatch and left in a durable, inspectable state
// regardless of transport outcome: Sent on success, Failed on error (the
// transport error is also returned to the caller).
func (s *Service) SendMarkdown(ctx context.Context, remoteJID, markdown string, opts SendOptions) (*message.Descriptor, error) {
	if strings.TrimSpace(remoteJID) == "" {
		return nil, fmt.Errorf("%w: remote JID is empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, fmt.Errorf("%w: markdown is empty", ErrInvalidArgument)
	}

	htmlBody, plain, err := s.renderer.Render(markdown)
	if err != nil {
		return nil, err
	}
	if plain == "" {
		// Guarantee a non-empty human-readable fallback.
		plain = markdown
	}

	if opts.ReplaceMessageID != "" {
		existing, err := s.repo.Get(ctx, remoteJID, opts.ReplaceMessageID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.sendEdit(ctx, existing, markdown, plain, htmlBody, opts)
		}
		// An unresolvable replacement target degrades to a new send.
	}
	return s.sendNew(ctx, remoteJID, markdown, plain, htmlBody, opts)
}

func (s *Service) sendNew(ctx context.Context, remoteJID, markdown, plain, htmlBody string, opts SendOptions) (*message.Descriptor, error) {
	now := time.Now()
	d := &message.Descriptor{
		RemoteJID:       remoteJID,
		LocalTempID:     uuid.NewString(),
		Direction:       message.DirectionOutgoing,
		Status:          message.StatusPending,
		Created:         now,
		Updated:         now,
		OriginalCreated: now,
		ReplyToID:       opts.ReplyToID,
		Markdown:        markdown,
		PlainText:       plain,
		HTML:            htmlBody,
	}
	d.Refingerprint()

	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	s.stream.Publish(stream.Event{
		Type:      stream.EventMessagesAppended,
		RemoteJID: remoteJID,
		Timestamp: now,
		Messages:  []message.Descriptor{*d},
	})
	return s.dispatch(ctx, d, false)
}

func (s *Service) sendEdit(ctx context.Context, d *message.Descriptor, markdown, plain, htmlBody string, opts SendOptions) (*message.Descriptor, error) {
	now := time.Now()
	if d.OriginalCreated.IsZero() {
		d.OriginalCreated = d.Created
	}
	d.Markdown = markdown
	d.PlainText = plain
	d.HTML = htmlBody
	d.Updated = now
	d.IsEdited = true
	d.ReplyToID = opts.ReplyToID
	d.Status = message.StatusPending
	d.Refingerprint()
	if d.LocalTempID == "" {
		d.LocalTempID = uuid.NewString()
	}

	if err := s.repo.Replace(ctx, d); err != nil {
		return nil, err
	}
	if s.cache != nil {
		// The new fingerprint misses the cache naturally; this cleans up
		// entries keyed by the prior fingerprint.
		s.cache.Invalidate(d.MessageID)
	}
	s.stream.Publish(stream.Event{
		Type:      stream.EventMessageUpdated,
		RemoteJID: d.RemoteJID,
		Timestamp: now,
		Messages:  []message.Descriptor{*d},
	})
	return s.dispatch(ctx, d, true)
}

// dispatch sends the descriptor over the transport and reconciles the
// durable record with the outcome. Shared by the new-message and edit paths.
func (s *Service) dispatch(ctx context.Context, d *message.Descriptor, correction bool) (*message.Descriptor, error) {
	out := transport.Outbound{
		RemoteJID:   d.RemoteJID,
		Markdown:    d.Markdown,
		PlainText:   d.PlainText,
		HTML:        d.HTML,
		ReplyToID:   d.ReplyToID,
		LocalTempID: d.LocalTempID,
		Metadata:    d.Metadata,
	}

	err := s.ensureSession(ctx, d.RemoteJID)
	if err == nil {
		if correction && d.RemoteObjectID != "" {
			err = s.transport.SendCorrection(ctx, d.RemoteJID, d.RemoteObjectID, out)
		} else {
			// An edit of a never-acknowledged message has no remote object
			// id to correct; it goes out as a regular send.
			var remoteID string
			remoteID, err = s.transport.Send(ctx, out)
			if remoteID != "" {
				d.RemoteObjectID = remoteID
			}
		}
	}

	now := time.Now()
	d.Updated = now
	receipt := map[string]string{
		stream.DataMessageID:   d.MessageID,
		stream.DataLocalTempID: d.LocalTempID,
	}

	if err != nil {
		d.Status = message.StatusFailed
		receipt[stream.DataStatus] = string(d.Status)
		receipt[stream.DataError] = err.Error()
		if rerr := s.repo.Replace(ctx, d); rerr != nil {
			s.logger.Error("failed to record failed delivery",
				zap.Error(rerr), zap.String("message_id", d.MessageID))
		}
		s.publishReceipt(d.RemoteJID, now, receipt)
		return d, fmt.Errorf("dispatch to %s: %w", d.RemoteJID, err)
	}

	d.Status = message.StatusSent
	receipt[stream.DataStatus] = string(d.Status)
	if err := s.repo.Replace(ctx, d); err != nil {
		return d, err
	}
	s.publishReceipt(d.RemoteJID, now, receipt)
	s.logger.Info("message dispatched",
		zap.String("message_id", d.MessageID),
		zap.String("remote_object_id", d.RemoteObjectID),
		zap.Bool("correction", correction))
	return d, nil
}

func (s *Service) ensureSession(ctx context.Context, remoteJID string) error {
	if s.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.connectTimeout)
		defer cancel()
	}
	return s.transport.EnsureSession(ctx, remoteJID)
}

func (s *Service) publishReceipt(remoteJID string, at time.Time, data map[string]string) {
	s.stream.Publish(stream.Event{
		Type:      stream.EventDeliveryReceipt,
		RemoteJID: remoteJID,
		Timestamp: at,
		Data:      data,
	})
}

// MarkDisplayed records that an inbound message was shown to the user and
// notifies the far end with a displayed marker. A no-op when the id does
// not resolve.
func (s *Service) MarkDisplayed(ctx context.Context, remoteJID, messageID string) error {
	d, err := s.repo.Get(ctx, remoteJID, messageID)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	if d.RemoteObjectID != "" {
		if err := s.transport.SendDisplayedMarker(ctx, remoteJID, d.RemoteObjectID); err != nil {
			return fmt.Errorf("displayed marker for %s: %w", messageID, err)
		}
	}
	now := time.Now()
	if err := s.repo.UpdateDeliveryStatus(ctx, remoteJID, messageID, message.StatusDisplayed, now); err != nil {
		return err
	}
	s.publishReceipt(remoteJID, now, map[string]string{
		stream.DataMessageID: d.MessageID,
		stream.DataStatus:    string(message.StatusDisplayed),
	})
	return nil
}

// NotifyChatState forwards a typing-notification state when the peer
// supports chat states; otherwise it does nothing.
func (s *Service) NotifyChatState(ctx context.Context, remoteJID string, state transport.ChatState) error {
	if !s.transport.IsChatStateSupported(remoteJID) {
		return nil
	}
	return s.transport.SendChatState(ctx, remoteJID, state)
}
