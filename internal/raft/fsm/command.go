package fsm

import (
	"net/netip"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/super-flat/nodewatcher/membership"
)

const (
	transitionsField = "transitions"
	typeField        = "type"
	identityField    = "identity"
	addressField     = "address"
)

// EncodeTransitions serializes a batch of transitions into a raft log payload.
// The batch is applied atomically by the fsm.
func EncodeTransitions(transitions []membership.Transition) ([]byte, error) {
	values := make([]interface{}, 0, len(transitions))
	for _, t := range transitions {
		if t.Type != membership.Added && t.Type != membership.Deleted {
			return nil, errors.Errorf("cannot encode %s transition for %s", t.Type, t.Identity)
		}
		values = append(values, map[string]interface{}{
			typeField:     t.Type.String(),
			identityField: string(t.Identity),
			addressField:  addressString(t.Address),
		})
	}
	cmd, err := structpb.NewStruct(map[string]interface{}{transitionsField: values})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build command")
	}
	return proto.Marshal(cmd)
}

// DecodeTransitions is the inverse of EncodeTransitions
func DecodeTransitions(data []byte) ([]membership.Transition, error) {
	cmd := new(structpb.Struct)
	if err := proto.Unmarshal(data, cmd); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal command")
	}
	list := cmd.GetFields()[transitionsField].GetListValue()
	if list == nil {
		return nil, errors.New("command carries no transitions")
	}
	out := make([]membership.Transition, 0, len(list.GetValues()))
	for ix, value := range list.GetValues() {
		fields := value.GetStructValue().GetFields()
		identity := fields[identityField].GetStringValue()
		if identity == "" {
			return nil, errors.Errorf("transition %d has no identity", ix)
		}
		t := membership.Transition{Identity: membership.Identity(identity)}
		switch fields[typeField].GetStringValue() {
		case membership.Added.String():
			t.Type = membership.Added
		case membership.Deleted.String():
			t.Type = membership.Deleted
		default:
			return nil, errors.Errorf("transition %d has unknown type %q", ix, fields[typeField].GetStringValue())
		}
		addr, err := parseAddress(fields[addressField].GetStringValue())
		if err != nil {
			return nil, errors.Wrapf(err, "transition %d", ix)
		}
		t.Address = addr
		out = append(out, t)
	}
	return out, nil
}

func addressString(addr netip.Addr) string {
	if !addr.IsValid() {
		return ""
	}
	return addr.String()
}

func parseAddress(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(s)
}
