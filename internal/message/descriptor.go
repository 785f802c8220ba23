package message

import "time"

// Direction indicates who originated a message.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionSystem   Direction = "system"
)

// DeliveryStatus tracks a message through its delivery lifecycle.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusFailed    DeliveryStatus = "failed"
	StatusReceived  DeliveryStatus = "received"
	StatusDisplayed DeliveryStatus = "displayed"
)

// Descriptor is the in-memory, transport-agnostic representation of one chat
// message. A message is addressable by up to three identifiers over its
// lifetime: MessageID (the persisted object id once saved), LocalTempID
// (client-generated, assigned before the persisted id is known) and
// RemoteObjectID (assigned by the far end once acknowledged).
type Descriptor struct {
	MessageID      string
	RemoteJID      string
	LocalTempID    string
	RemoteObjectID string

	Direction Direction
	Status    DeliveryStatus

	Created         time.Time
	Updated         time.Time
	OriginalCreated time.Time
	IsEdited        bool

	ReplyToID string

	Markdown  string
	PlainText string
	HTML      string

	// Fingerprint is the content hash over (Markdown, PlainText, HTML).
	// It must be recomputed whenever any of the three changes.
	Fingerprint string

	Metadata map[string]string
}

// Refingerprint recomputes the content fingerprint from the current
// Markdown/PlainText/HTML triple.
func (d *Descriptor) Refingerprint() {
	d.Fingerprint = Fingerprint(d.Markdown, d.PlainText, d.HTML)
}
