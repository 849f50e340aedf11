package kube

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/super-flat/nodewatcher/membership"
)

// nodeJSON renders a node with the given addresses, each as "type=address"
func nodeJSON(name string, addresses ...string) string {
	entries := make([]string, 0, len(addresses))
	for _, a := range addresses {
		parts := strings.SplitN(a, "=", 2)
		entries = append(entries, fmt.Sprintf(`{"type":%q,"address":%q}`, parts[0], parts[1]))
	}
	return fmt.Sprintf(
		`{"kind":"Node","apiVersion":"v1","metadata":{"name":%q,"creationTimestamp":"2017-03-01T10:00:00Z"},"status":{"addresses":[%s]}}`,
		name, strings.Join(entries, ","),
	)
}

func nodeListJSON(version string, nodes ...string) string {
	return fmt.Sprintf(`{"kind":"NodeList","apiVersion":"v1","metadata":{"resourceVersion":%q},"items":[%s]}`,
		version, strings.Join(nodes, ","))
}

func eventJSON(kind string, node string) string {
	return fmt.Sprintf(`{"type":%q,"object":%s}`, kind, node)
}

// node builds a typed node with the given addresses, each as "type=address"
func node(name string, addresses ...string) *v1.Node {
	n := &v1.Node{ObjectMeta: metav1.ObjectMeta{Name: name}}
	for _, a := range addresses {
		parts := strings.SplitN(a, "=", 2)
		n.Status.Addresses = append(n.Status.Addresses, v1.NodeAddress{
			Type:    v1.NodeAddressType(parts[0]),
			Address: parts[1],
		})
	}
	return n
}

func nodeList(version string, nodes ...*v1.Node) *v1.NodeList {
	list := &v1.NodeList{ListMeta: metav1.ListMeta{ResourceVersion: version}}
	for _, n := range nodes {
		list.Items = append(list.Items, *n)
	}
	return list
}

func TestSnapshotFrom(t *testing.T) {
	list := nodeList("1234",
		node("node-a", "InternalIP=172.20.0.1", "ExternalIP=10.0.0.1", "Hostname=node-a"),
		node("node-b", "ExternalIP=10.0.0.2"),
		node("node-c", "InternalIP=172.20.0.3"),
	)

	members, token, err := SnapshotFrom(list)
	require.NoError(t, err)
	assert.Equal(t, membership.ResumeToken("1234"), token)
	require.Len(t, members, 3)
	assert.Equal(t, "10.0.0.1", members["node-a"].String())
	assert.Equal(t, "10.0.0.2", members["node-b"].String())
	assert.False(t, members["node-c"].IsValid())
}

func TestSnapshotFrom_EmptyCluster(t *testing.T) {
	members, token, err := SnapshotFrom(nodeList("7"))
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.Equal(t, membership.ResumeToken("7"), token)
}

func TestSnapshotFrom_Malformed(t *testing.T) {
	testCases := map[string]*v1.NodeList{
		"nil list":        nil,
		"missing version": nodeList("", node("node-a", "ExternalIP=10.0.0.1")),
		"nameless node":   nodeList("1", node("", "ExternalIP=10.0.0.1")),
	}
	for name, list := range testCases {
		t.Run(name, func(t *testing.T) {
			_, _, err := SnapshotFrom(list)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, "snapshot", decodeErr.Kind)
		})
	}
}

func TestEventFrom(t *testing.T) {
	testCases := []struct {
		eventType watch.EventType
		expected  membership.EventType
	}{
		{watch.Added, membership.Added},
		{watch.Modified, membership.Modified},
		{watch.Deleted, membership.Deleted},
	}
	for _, tc := range testCases {
		evt, err := EventFrom(watch.Event{Type: tc.eventType, Object: node("n", "ExternalIP=10.0.0.5")})
		require.NoError(t, err)
		assert.Equal(t, tc.expected, evt.Type)
		assert.Equal(t, membership.Identity("n"), evt.Member.Identity)
		assert.Equal(t, "10.0.0.5", evt.Member.Address.String())
	}
}

func TestEventFrom_Failures(t *testing.T) {
	gone := &metav1.Status{Status: metav1.StatusFailure, Code: 410, Reason: metav1.StatusReasonExpired, Message: "too old resource version"}
	testCases := map[string]watch.Event{
		"error event":    {Type: watch.Error, Object: gone},
		"bookmark":       {Type: watch.Bookmark, Object: node("n")},
		"missing object": {Type: watch.Added},
		"not a node":     {Type: watch.Added, Object: &v1.Pod{}},
		"nameless":       {Type: watch.Added, Object: node("")},
	}
	for name, event := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := EventFrom(event)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, "event", decodeErr.Kind)
		})
	}
}

func TestExternalAddress(t *testing.T) {
	testCases := map[string]struct {
		addresses []string
		expected  string
	}{
		"none":        {addresses: []string{"InternalIP=172.20.0.1"}, expected: ""},
		"single":      {addresses: []string{"ExternalIP=10.0.0.1"}, expected: "10.0.0.1"},
		"ipv6":        {addresses: []string{"ExternalIP=2001:db8::1"}, expected: "2001:db8::1"},
		"two":         {addresses: []string{"ExternalIP=10.0.0.1", "ExternalIP=10.0.0.2"}, expected: ""},
		"unparsable":  {addresses: []string{"ExternalIP=not-an-ip"}, expected: ""},
		"other types": {addresses: []string{"ExternalDNS=node.example.com", "ExternalIP=10.0.0.9"}, expected: "10.0.0.9"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			addr := ExternalAddress(node("n", tc.addresses...))
			if tc.expected == "" {
				assert.False(t, addr.IsValid())
				return
			}
			assert.Equal(t, tc.expected, addr.String())
		})
	}
}
