package resource

// EventType classifies a workspace change.
type EventType int

const (
	// Added is emitted once per newly linked top-level resource.
	Added EventType = iota
	// Deleted is emitted once at the root of an unlinked subtree.
	Deleted
	// Changed is emitted when a resource's content changes.
	Changed
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case Added:
		return "add"
	case Deleted:
		return "delete"
	case Changed:
		return "change"
	default:
		return "unknown"
	}
}

// ChangeEvent is the immutable value broadcast on the workspace bus.
type ChangeEvent struct {
	Resource Resource
	Type     EventType
}
