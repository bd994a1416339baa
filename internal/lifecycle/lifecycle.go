package lifecycle

import "time"

// Kind is the type of lifecycle transition.
type Kind int

const (
	// KindForeground means the device entered active use.
	KindForeground Kind = iota
	// KindBackground means the device left active use.
	KindBackground
)

// String returns the kind name for logging.
func (k Kind) String() string {
	if k == KindBackground {
		return "background"
	}
	return "foreground"
}

// Event is one raw foreground/background transition.
type Event struct {
	Kind      Kind
	Timestamp time.Time
}

// Source delivers lifecycle transitions. Subscribe registers a callback
// and returns an unsubscribe handle; after unsubscribing, no further
// events are delivered.
type Source interface {
	Subscribe(fn func(Event)) (func(), error)
}
