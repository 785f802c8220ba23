package stream

import (
	"time"

	"github.com/acrispim/mdchat/internal/message"
)

// EventType identifies what happened to a conversation.
type EventType string

const (
	EventMessagesAppended EventType = "messages_appended"
	EventMessageUpdated   EventType = "message_updated"
	EventDeliveryReceipt  EventType = "delivery_receipt"
)

// Data keys used by delivery receipt events.
const (
	DataMessageID   = "message_id"
	DataLocalTempID = "local_temp_id"
	DataStatus      = "status"
	DataError       = "error"
)

// Event is one conversation event queued for a consumer.
type Event struct {
	Type      EventType
	RemoteJID string
	Timestamp time.Time
	Messages  []message.Descriptor
	Data      map[string]string
}
