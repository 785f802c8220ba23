// Package transport defines the boundary to the underlying chat protocol
// client. The messaging core never inspects protocol internals; it dispatches
// through Transport and reacts to success or failure, and the concrete
// adapter feeds inbound traffic back through Handler.
package transport

import (
	"context"
	"time"
)

// Outbound is the transport-layer payload built from a message descriptor.
type Outbound struct {
	RemoteJID   string
	Markdown    string
	PlainText   string
	HTML        string
	ReplyToID   string
	LocalTempID string
	Metadata    map[string]string
}

// Inbound is a message received or corrected by the far end.
type Inbound struct {
	RemoteJID      string
	RemoteObjectID string
	// ReplacesObjectID carries the remote object id of the message a
	// correction replaces; empty for plain messages.
	ReplacesObjectID string
	Markdown         string
	PlainText        string
	HTML             string
	ReplyToID        string
	Timestamp        time.Time
	Metadata         map[string]string
}

// ReceiptKind distinguishes delivery receipts from displayed markers.
type ReceiptKind string

const (
	ReceiptDelivered ReceiptKind = "delivered"
	ReceiptDisplayed ReceiptKind = "displayed"
)

// Receipt acknowledges one or more previously sent messages.
type Receipt struct {
	RemoteJID       string
	RemoteObjectIDs []string
	Kind            ReceiptKind
	Timestamp       time.Time
}

// ChatState is a typing-notification state forwarded to the peer.
type ChatState string

const (
	StateActive    ChatState = "active"
	StateComposing ChatState = "composing"
	StatePaused    ChatState = "paused"
	StateInactive  ChatState = "inactive"
	StateGone      ChatState = "gone"
)

// Handler receives inbound transport events. The messaging core implements
// this; the protocol adapter calls it.
type Handler interface {
	MessageReceived(ctx context.Context, in Inbound) error
	MessageUpdated(ctx context.Context, in Inbound) error
	ReceiptReceived(ctx context.Context, rcpt Receipt) error
}

// Transport sends, corrects and acknowledges messages against the remote
// protocol. Implementations live outside this core.
type Transport interface {
	// Send dispatches a new message and returns the transport-assigned id,
	// or empty if the protocol does not assign one.
	Send(ctx context.Context, out Outbound) (remoteObjectID string, err error)

	// SendCorrection resends content under an already-acknowledged remote
	// object id, signalling an edit to the far end.
	SendCorrection(ctx context.Context, remoteJID, remoteObjectID string, out Outbound) error

	// Acknowledge confirms receipt of an inbound message.
	Acknowledge(ctx context.Context, remoteJID, remoteObjectID string) error

	// SendDisplayedMarker tells the far end an inbound message was shown.
	SendDisplayedMarker(ctx context.Context, remoteJID, remoteObjectID string) error

	// EnsureSession blocks until the underlying connection is usable for the
	// conversation, bounded by the caller's context.
	EnsureSession(ctx context.Context, remoteJID string) error

	SendChatState(ctx context.Context, remoteJID string, state ChatState) error
	IsChatStateSupported(remoteJID string) bool

	// SetHandler registers the consumer of inbound events.
	SetHandler(h Handler)
}
