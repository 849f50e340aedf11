package fsm

import (
	hraft "github.com/hashicorp/raft"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/super-flat/nodewatcher/membership"
)

type snapshot struct {
	members membership.Membership
}

var _ hraft.FSMSnapshot = &snapshot{}

// Persist writes the members as a struct of identity to address
func (s *snapshot) Persist(sink hraft.SnapshotSink) error {
	fields := make(map[string]*structpb.Value, len(s.members))
	for id, addr := range s.members {
		fields[string(id)] = structpb.NewStringValue(addressString(addr))
	}
	bytea, err := proto.Marshal(&structpb.Struct{Fields: fields})
	if err == nil {
		_, err = sink.Write(bytea)
	}
	if err != nil {
		return multierr.Append(err, sink.Cancel())
	}
	return sink.Close()
}

// Release implementation
func (s *snapshot) Release() {}
