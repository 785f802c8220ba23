package message

import "slices"

// validAdvances defines how inbound acknowledgements may move delivery
// status forward. The send path itself (Replace on edit, Failed on dispatch
// error) rewrites status directly and is not routed through this table;
// the table only guards targeted status updates so a late or duplicate
// receipt never regresses a message (e.g. displayed back to received).
var validAdvances = map[DeliveryStatus][]DeliveryStatus{
	StatusPending:   {StatusSending, StatusSent, StatusFailed},
	StatusSending:   {StatusSent, StatusFailed},
	StatusSent:      {StatusReceived, StatusDisplayed},
	StatusReceived:  {StatusDisplayed},
	StatusFailed:    {StatusPending, StatusSending},
	StatusDisplayed: {},
}

// CanAdvance reports whether a targeted status update from one delivery
// status to another is allowed.
func CanAdvance(from, to DeliveryStatus) bool {
	return slices.Contains(validAdvances[from], to)
}
