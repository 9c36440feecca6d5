// Package pluginapi defines the contract shared between the tudu host and
// dynamically loaded plugins. Plugins are compiled as Go shared objects that
// import this exact package; both sides must be built against the same
// version. The package is deliberately dependency-free so that host and
// plugin builds cannot drift apart through transitive requirements.
package pluginapi

import "unicode/utf8"

// InterfaceVersion is the semver of the host/plugin contract. A plugin whose
// MinInterfaceVersion is newer than this is refused at load time.
const InterfaceVersion = "2.1.0"

// WellKnownSymbol is the exported package-level variable every plugin library
// must provide. Its type is Registration.
const WellKnownSymbol = "TuduPlugin"

// MaxStringLen bounds every string received from a plugin. Longer strings are
// truncated at the boundary.
const MaxStringLen = 64 * 1024

// Registration is the root object exported by a plugin library under
// WellKnownSymbol. The loader reads InterfaceVersion before calling New.
type Registration struct {
	InterfaceVersion string
	New              func() Plugin
}

// TodoState is the checkbox state of a todo item.
type TodoState uint8

const (
	StateEmpty TodoState = iota
	StateChecked
	StateQuestion
	StateExclamation
	StateInProgress
	StateCancelled
)

// String returns the canonical name used in queries and storage.
func (s TodoState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateChecked:
		return "checked"
	case StateQuestion:
		return "question"
	case StateExclamation:
		return "exclamation"
	case StateInProgress:
		return "in_progress"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Done reports whether the state counts as completed for query filters.
func (s TodoState) Done() bool {
	return s == StateChecked || s == StateCancelled
}

// Priority of a todo item.
type Priority uint8

const (
	PriorityP0 Priority = iota
	PriorityP1
	PriorityP2
)

func (p Priority) String() string {
	switch p {
	case PriorityP0:
		return "P0"
	case PriorityP1:
		return "P1"
	case PriorityP2:
		return "P2"
	default:
		return "unknown"
	}
}

// TodoItemView is an immutable snapshot of a todo item handed to plugins.
// Optional fields are pointers; nil means absent. Timestamps are Unix
// milliseconds. Position is the 0-based index in the source list at query
// time. UI-only fields (collapse state, soft-delete timestamp) are not part
// of the contract; the host filters soft-deleted items before exposure.
type TodoItemView struct {
	ID          string
	Content     string
	State       TodoState
	Priority    *Priority
	DueDate     *string // YYYY-MM-DD
	Description *string
	ParentID    *string
	Indent      uint32
	CreatedAt   int64
	ModifiedAt  int64
	CompletedAt *int64
	Position    uint32
}

// ProjectContext identifies a project.
type ProjectContext struct {
	ID        string
	Name      string
	CreatedAt int64
}

// StateFilter narrows a query by completion state.
type StateFilter uint8

const (
	FilterAll StateFilter = iota
	FilterPending
	FilterDone
)

// DateRange bounds a query by due date, inclusive, YYYY-MM-DD.
type DateRange struct {
	From string
	To   string
}

// TodoQuery selects todos. A nil Project means the current project.
type TodoQuery struct {
	Project        *string
	State          *StateFilter
	ParentID       *string
	IncludeDeleted bool
	Range          *DateRange
}

// TodoNode is a todo with its children, reconstructed from indent levels.
type TodoNode struct {
	Item     TodoItemView
	Children []TodoNode
	Position uint32
}

// TodoMetadata pairs a todo id with its metadata document. Data is never
// empty; "{}" denotes absence.
type TodoMetadata struct {
	TodoID string
	Data   string
}

// Truncate enforces the boundary string limit and repairs invalid UTF-8.
// Applied by the host to every string received from a plugin.
func Truncate(s string) string {
	if !utf8.ValidString(s) {
		s = string([]rune(s))
	}
	if len(s) > MaxStringLen {
		s = s[:MaxStringLen]
		// Do not cut a rune in half.
		for len(s) > 0 && !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	return s
}
