package events

import "testing"

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	if !q.IsEmpty() {
		t.Error("Expected new queue to be empty")
	}

	q.Add(New("FIRST", nil))
	q.Add(New("SECOND", nil))
	q.AddMultiple([]Event{New("THIRD", nil), New("FOURTH", nil)})

	if q.Len() != 4 {
		t.Errorf("Expected 4 queued events, got %d", q.Len())
	}

	order := []string{"FIRST", "SECOND", "THIRD", "FOURTH"}
	for _, want := range order {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("Expected event %s, queue was empty", want)
		}
		if e.Type != want {
			t.Errorf("Expected %s, got %s", want, e.Type)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Expected drained queue to report empty")
	}
}

func TestNew_PopulatesEvent(t *testing.T) {
	e := New("ZONE_CHANGED", map[string]any{"zone": 3})
	if e.ID == "" {
		t.Error("Expected generated event ID")
	}
	if e.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
	if e.Data["zone"] != 3 {
		t.Errorf("Expected payload to be preserved, got %v", e.Data["zone"])
	}

	withNil := New("TURN_BEGAN", nil)
	if withNil.Data == nil {
		t.Error("Expected nil data to be replaced with an empty map")
	}
}
