package bot

import "time"

// Message directions for the audit trail.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// LogEntry records one message for audit/debug. Write-only from the
// engine's point of view.
type LogEntry struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Direction string    `json:"direction"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
