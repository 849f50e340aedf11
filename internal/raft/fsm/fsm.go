package fsm

import (
	"io"
	"sync"

	hraft "github.com/hashicorp/raft"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/super-flat/nodewatcher/membership"
)

// MembershipFsm is the replicated membership. Every log entry is a batch of
// transitions folded into the member map.
type MembershipFsm struct {
	mtx     *sync.RWMutex
	members membership.Membership
}

var _ hraft.FSM = &MembershipFsm{}

// NewMembershipFsm creates an empty MembershipFsm
func NewMembershipFsm() *MembershipFsm {
	return &MembershipFsm{
		mtx:     &sync.RWMutex{},
		members: make(membership.Membership),
	}
}

// Apply is called once a log entry is committed by a majority of the cluster.
// It returns the number of transitions folded, or an error when the entry
// cannot be decoded. A bad entry leaves the state untouched.
func (f *MembershipFsm) Apply(raftLog *hraft.Log) interface{} {
	if raftLog == nil || raftLog.Data == nil {
		return nil
	}
	if raftLog.Type != hraft.LogCommand {
		return nil
	}
	transitions, err := DecodeTransitions(raftLog.Data)
	if err != nil {
		return err
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	for _, t := range transitions {
		f.members.Fold(t)
	}
	return len(transitions)
}

// Snapshot captures a copy of the member map. Encoding happens in Persist.
func (f *MembershipFsm) Snapshot() (hraft.FSMSnapshot, error) {
	return &snapshot{members: f.Current()}, nil
}

// Restore replaces the state with the content of a snapshot
func (f *MembershipFsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	bytea, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	state := new(structpb.Struct)
	if err := proto.Unmarshal(bytea, state); err != nil {
		return errors.Wrap(err, "failed to unmarshal the FSM snapshot")
	}
	members := make(membership.Membership, len(state.GetFields()))
	for id, value := range state.GetFields() {
		addr, err := parseAddress(value.GetStringValue())
		if err != nil {
			return errors.Wrapf(err, "bad address for %s in snapshot", id)
		}
		members[membership.Identity(id)] = addr
	}
	f.mtx.Lock()
	f.members = members
	f.mtx.Unlock()
	return nil
}

// Current returns a point-in-time copy of the replicated membership
func (f *MembershipFsm) Current() membership.Membership {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	return f.members.Clone()
}
