package membership

import (
	"net/netip"
	"sort"
)

// Identity uniquely names a cluster node for its lifetime
type Identity string

// ResumeToken is the opaque version marker returned with a snapshot. It is
// handed back to the change stream verbatim and never parsed or compared.
type ResumeToken string

// Member is one node record. An invalid (zero) Address means the node has
// no externally routable address.
type Member struct {
	Identity Identity
	Address  netip.Addr
}

// Membership maps each known node to its address
type Membership map[Identity]netip.Addr

// NewMembership builds a Membership from a list of members. Later entries
// win when an identity repeats.
func NewMembership(members ...Member) Membership {
	m := make(Membership, len(members))
	for _, member := range members {
		m[member.Identity] = member.Address
	}
	return m
}

// Clone returns a copy that shares nothing with m
func (m Membership) Clone() Membership {
	out := make(Membership, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Identities returns the keys of m in lexical order
func (m Membership) Identities() []Identity {
	out := make([]Identity, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Addresses returns every present address rendered as a string, sorted
// lexicographically.
func (m Membership) Addresses() []string {
	out := make([]string, 0, len(m))
	for _, addr := range m {
		if addr.IsValid() {
			out = append(out, addr.String())
		}
	}
	sort.Strings(out)
	return out
}

// EventType tags a ChangeEvent
type EventType int

const (
	// Added reports a node joining the cluster
	Added EventType = iota
	// Modified reports any other change to a node record
	Modified
	// Deleted reports a node leaving the cluster
	Deleted
)

// String implements fmt.Stringer
func (t EventType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeEvent is one decoded record of the change stream. Member is the
// full record as of the event, including for Deleted.
type ChangeEvent struct {
	Type   EventType
	Member Member
}

// Transition is a notification-worthy membership change. Type is either
// Added or Deleted, never Modified.
type Transition struct {
	Type     EventType
	Identity Identity
	Address  netip.Addr
}

// ChangeSummary is what the notifier receives: a transition plus the
// membership as it stands after that transition.
type ChangeSummary struct {
	Transition
	Current Membership
}

// Stream is an open change stream. Next blocks until the next event is
// available and returns io.EOF once the stream has ended.
type Stream interface {
	Next() (ChangeEvent, error)
	Close() error
}
