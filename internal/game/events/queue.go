package events

// Queue is a FIFO of in-flight events. Producers append; the rule engine
// drains front-to-back, and rule effects may append mid-drain.
type Queue struct {
	items []Event
}

// NewQueue creates an empty event queue.
func NewQueue() *Queue {
	return &Queue{items: make([]Event, 0, 16)}
}

// Add appends a single event to the back of the queue.
func (q *Queue) Add(e Event) {
	q.items = append(q.items, e)
}

// AddMultiple appends events preserving their order.
func (q *Queue) AddMultiple(evts []Event) {
	q.items = append(q.items, evts...)
}

// Pop removes and returns the front event.
func (q *Queue) Pop() (Event, bool) {
	if len(q.items) == 0 {
		return Event{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.items)
}

// IsEmpty reports whether the queue holds no events.
func (q *Queue) IsEmpty() bool {
	return len(q.items) == 0
}
