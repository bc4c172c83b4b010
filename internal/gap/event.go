package gap

// EventType tags a stream event.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventItem     EventType = "item"
	EventSummary  EventType = "summary"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one element of a comparison stream. Exactly one payload field is
// set, matching Type; status and error events carry Message.
type Event struct {
	Type    EventType    `json:"type"`
	Message string       `json:"message,omitempty"`
	Item    *MatchResult `json:"item,omitempty"`
	Summary *Summary     `json:"summary,omitempty"`

	// Progress fields.
	Value   float64 `json:"value,omitempty"`
	Current int     `json:"current,omitempty"`
	Total   int     `json:"total,omitempty"`
}

// StatusEvent builds a status message event.
func StatusEvent(msg string) Event {
	return Event{Type: EventStatus, Message: msg}
}

// ProgressEvent reports that item current (1-based) of total is starting.
func ProgressEvent(current, total int) Event {
	e := Event{Type: EventProgress, Current: current, Total: total}
	if total > 0 {
		e.Value = float64(current-1) / float64(total) * 100
	}
	return e
}

// ItemEvent wraps a result.
func ItemEvent(r MatchResult) Event {
	return Event{Type: EventItem, Item: &r}
}

// SummaryEvent wraps a finalized summary.
func SummaryEvent(s Summary) Event {
	return Event{Type: EventSummary, Summary: &s}
}

// CompleteEvent marks the end of a successful stream.
func CompleteEvent() Event {
	return Event{Type: EventComplete}
}

// ErrorEvent reports a failure that ended the stream early.
func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg}
}
