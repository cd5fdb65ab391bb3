package relay

// State is the pipeline's position in a run.
type State int

// Pipeline states, in the order a successful run visits them. Fetching,
// Uploading and Recording repeat once per item.
const (
	StateIdle State = iota
	StateSessionCreated
	StateAwaitingSelection
	StateEnumerating
	StateFetching
	StateUploading
	StateRecording
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionCreated:
		return "session_created"
	case StateAwaitingSelection:
		return "awaiting_selection"
	case StateEnumerating:
		return "enumerating"
	case StateFetching:
		return "fetching"
	case StateUploading:
		return "uploading"
	case StateRecording:
		return "recording"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}
