package bot

// EventKind discriminates inbound event payloads.
type EventKind string

const (
	EventText        EventKind = "text"
	EventButtonReply EventKind = "button_reply"
	EventListReply   EventKind = "list_reply"
)

// Event is one inbound message from the transport layer. Text events
// carry Body; button and list replies carry the selected ReplyID.
type Event struct {
	Kind    EventKind
	Body    string
	ReplyID string
}

// TextEvent builds a plain text event.
func TextEvent(body string) Event {
	return Event{Kind: EventText, Body: body}
}

// ButtonEvent builds a button-reply event.
func ButtonEvent(id string) Event {
	return Event{Kind: EventButtonReply, ReplyID: id}
}

// ListEvent builds a list-reply event.
func ListEvent(id string) Event {
	return Event{Kind: EventListReply, ReplyID: id}
}
