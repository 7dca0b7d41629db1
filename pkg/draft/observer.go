package draft

// EventKind names the state change an Event reports.
type EventKind string

const (
	EventInitialized EventKind = "initialized"
	EventChanged     EventKind = "changed"
	EventSaving      EventKind = "saving"
	EventSaved       EventKind = "saved"
	EventReverted    EventKind = "reverted"
	EventReset       EventKind = "reset"
)

// Event is delivered to observers after every state change of a Store.
type Event struct {
	Kind EventKind `json:"kind"`
	// Section is set for changes caused by a command.
	Section string `json:"section,omitempty"`
	Dirty   bool   `json:"dirty"`
	Saving  bool   `json:"saving"`
}

// Observer receives store events. It is called outside the store lock, so
// it may read the store, but it must not block for long: events are
// delivered synchronously in the goroutine that caused them.
type Observer func(Event)

type observers struct {
	next  int
	funcs map[int]Observer
}

func (o *observers) add(fn Observer) int {
	if o.funcs == nil {
		o.funcs = make(map[int]Observer)
	}
	id := o.next
	o.next++
	o.funcs[id] = fn
	return id
}

func (o *observers) remove(id int) {
	delete(o.funcs, id)
}

func (o *observers) snapshot() []Observer {
	out := make([]Observer, 0, len(o.funcs))
	for i := 0; i < o.next; i++ {
		if fn, ok := o.funcs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
