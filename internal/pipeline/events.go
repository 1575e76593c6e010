package pipeline

// Progress event types streamed to the client while a run executes or a
// follow-up answer streams back. Wire-compatible with the frontend's SSE
// consumer, so these strings must not change.
const (
	EventUpdate         = "update"
	EventFetchResult    = "fetch_result"
	EventResult         = "result"
	EventConversationID = "conversation_id"
	EventError          = "error"
	EventMessage        = "message"
)

// Event is one tagged progress message. Content holds a human-readable
// status string for update/error/message events and the structured analysis
// for result events. URL is set only on fetch_result events.
type Event struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Emitter delivers one event to the caller's stream. A non-nil return means
// the client is gone; the run must stop emitting and discard further output.
type Emitter func(Event) error
