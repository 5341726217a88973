package compiler

// EventType identifies an entry of the generated event list.
type EventType string

const (
	EventSectionStart EventType = "section_start"
	EventSectionEnd   EventType = "section_end"
	EventPlayStart    EventType = "play_start"
	EventPlayEnd      EventType = "play_end"
	EventAcquireStart EventType = "acquire_start"
	EventAcquireEnd   EventType = "acquire_end"
	EventDelayStart   EventType = "delay_start"
	EventDelayEnd     EventType = "delay_end"
)

// Event is one entry of the real-time event list. Times are absolute
// seconds from the start of the real-time execution, snapped to the device
// sample grid.
type Event struct {
	Type EventType

	// Time in seconds from real-time start.
	Time float64

	Section string
	Signal  string

	// PulseUID for play/acquire events.
	PulseUID string

	// Handle for acquire events.
	Handle string

	// Amplitude actually played (pulse amplitude with overrides applied;
	// sweep scaling uses the first sweep value in the event list).
	Amplitude float64

	// Iteration is the sweep iteration this event belongs to, or -1 when
	// the event is outside any real-time sweep.
	Iteration int
}

// eventOrder ranks event types so ties at equal times sort ends before
// starts and sections around their content.
func eventOrder(t EventType) int {
	switch t {
	case EventPlayEnd, EventAcquireEnd, EventDelayEnd:
		return 0
	case EventSectionEnd:
		return 1
	case EventSectionStart:
		return 2
	default:
		return 3
	}
}
