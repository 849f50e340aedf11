package reconciler

// State is a step of the reconciliation loop
type State int

const (
	// AcquiringLeadership waits for the lease
	AcquiringLeadership State = iota
	// Reconciling fetches a snapshot and diffs it against the store
	Reconciling
	// Streaming folds change events into the store
	Streaming
	// Backoff delays the next leadership attempt after a failure
	Backoff
)

func (s State) String() string {
	switch s {
	case AcquiringLeadership:
		return "AcquiringLeadership"
	case Reconciling:
		return "Reconciling"
	case Streaming:
		return "Streaming"
	case Backoff:
		return "Backoff"
	default:
		return "Unknown"
	}
}
