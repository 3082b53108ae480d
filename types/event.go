package types

// EventKind identifies a change delivered to the reducer.
type EventKind int

const (
	EventLoaded       EventKind = iota // full list replaced the collection
	EventAdded                         // one environment appeared
	EventRemoved                       // one environment disappeared
	EventModified                      // something changed, reload everything
	EventConnecting                    // connector running
	EventConnected                     // session established
	EventDisconnected                  // session lost or never established
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventModified:
		return "modified"
	case EventConnecting:
		return "connecting"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is an immutable message sent to the reducer. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind EventKind

	List   []*BootEnvironment // EventLoaded
	Record *BootEnvironment   // EventAdded
	ID     string             // EventRemoved
}

// Loaded builds an EventLoaded.
func Loaded(list []*BootEnvironment) Event { return Event{Kind: EventLoaded, List: list} }

// Added builds an EventAdded.
func Added(rec *BootEnvironment) Event { return Event{Kind: EventAdded, Record: rec} }

// Removed builds an EventRemoved.
func Removed(id string) Event { return Event{Kind: EventRemoved, ID: id} }

// Modified builds an EventModified.
func Modified() Event { return Event{Kind: EventModified} }
