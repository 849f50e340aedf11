package membership

// Diff computes the transitions that turn current into snapshot. Members
// missing from snapshot come first as Deleted (carrying the address held in
// current), followed by new members as Added; each group is ordered by
// identity. Members present on both sides produce nothing, even when their
// address differs.
func Diff(current, snapshot Membership) []Transition {
	var out []Transition
	for _, id := range current.Identities() {
		if _, ok := snapshot[id]; !ok {
			out = append(out, Transition{Type: Deleted, Identity: id, Address: current[id]})
		}
	}
	for _, id := range snapshot.Identities() {
		if _, ok := current[id]; !ok {
			out = append(out, Transition{Type: Added, Identity: id, Address: snapshot[id]})
		}
	}
	return out
}

// Fold applies t to m in place
func (m Membership) Fold(t Transition) {
	switch t.Type {
	case Added:
		m[t.Identity] = t.Address
	case Deleted:
		delete(m, t.Identity)
	}
}

// Transit works out the transition event would cause against m, without
// mutating m. The second return is false for Modified events.
func (m Membership) Transit(event ChangeEvent) (Transition, bool) {
	switch event.Type {
	case Added:
		return Transition{Type: Added, Identity: event.Member.Identity, Address: event.Member.Address}, true
	case Deleted:
		// last known address, absent when the member was never stored
		return Transition{Type: Deleted, Identity: event.Member.Identity, Address: m[event.Member.Identity]}, true
	default:
		return Transition{}, false
	}
}
