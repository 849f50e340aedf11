package kube

import (
	"net/netip"

	"github.com/pkg/errors"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/super-flat/nodewatcher/membership"
)

// SnapshotFrom converts a node list into a Membership and the list's
// resource version
func SnapshotFrom(list *v1.NodeList) (membership.Membership, membership.ResumeToken, error) {
	if list == nil {
		return nil, "", &DecodeError{Kind: kindSnapshot, Err: errors.New("empty response")}
	}
	if list.ResourceVersion == "" {
		return nil, "", &DecodeError{Kind: kindSnapshot, Err: errors.New("missing metadata.resourceVersion")}
	}
	members := make(membership.Membership, len(list.Items))
	for i := range list.Items {
		m, err := toMember(&list.Items[i])
		if err != nil {
			return nil, "", &DecodeError{Kind: kindSnapshot, Err: errors.Wrapf(err, "item %d", i)}
		}
		members[m.Identity] = m.Address
	}
	return members, membership.ResumeToken(list.ResourceVersion), nil
}

// EventFrom converts one watch event into a ChangeEvent. Error events, such
// as an expired resource version or an undecodable line, and events that do
// not carry a node are DecodeErrors.
func EventFrom(event watch.Event) (membership.ChangeEvent, error) {
	var eventType membership.EventType
	switch event.Type {
	case watch.Added:
		eventType = membership.Added
	case watch.Modified:
		eventType = membership.Modified
	case watch.Deleted:
		eventType = membership.Deleted
	case watch.Error:
		return membership.ChangeEvent{}, &DecodeError{Kind: kindEvent, Err: apierrors.FromObject(event.Object)}
	default:
		return membership.ChangeEvent{}, &DecodeError{Kind: kindEvent, Err: errors.Errorf("unexpected event type %q", event.Type)}
	}

	node, ok := event.Object.(*v1.Node)
	if !ok || node == nil {
		return membership.ChangeEvent{}, &DecodeError{Kind: kindEvent, Err: errors.Errorf("unexpected object %T", event.Object)}
	}
	m, err := toMember(node)
	if err != nil {
		return membership.ChangeEvent{}, &DecodeError{Kind: kindEvent, Err: err}
	}
	return membership.ChangeEvent{Type: eventType, Member: m}, nil
}

// ExternalAddress returns the node's single external address. Zero or
// several external entries, or an unparsable one, yield the zero Addr.
func ExternalAddress(node *v1.Node) netip.Addr {
	var (
		found string
		count int
	)
	for _, addr := range node.Status.Addresses {
		if addr.Type == v1.NodeExternalIP {
			found = addr.Address
			count++
		}
	}
	if count != 1 {
		return netip.Addr{}
	}
	parsed, err := netip.ParseAddr(found)
	if err != nil {
		return netip.Addr{}
	}
	return parsed
}

func toMember(node *v1.Node) (membership.Member, error) {
	if node.Name == "" {
		return membership.Member{}, errors.New("missing metadata.name")
	}
	return membership.Member{
		Identity: membership.Identity(node.Name),
		Address:  ExternalAddress(node),
	}, nil
}
