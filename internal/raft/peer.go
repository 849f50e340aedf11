package raft

import (
	"net"
	"strconv"
	"strings"

	hraft "github.com/hashicorp/raft"
	"github.com/pkg/errors"
)

// Peer specifies a raft peer
type Peer struct {
	ID       string
	Host     string
	RaftPort uint16
}

// Address returns host:port
func (p Peer) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(int(p.RaftPort)))
}

func (p Peer) server() hraft.Server {
	return hraft.Server{
		Suffrage: hraft.Voter,
		ID:       hraft.ServerID(p.ID),
		Address:  hraft.ServerAddress(p.Address()),
	}
}

// NewPeer creates an instance of Peer from an id and a host:port address
func NewPeer(id string, raftAddr string) (*Peer, error) {
	if id == "" {
		return nil, errors.Errorf("peer %q has no id", raftAddr)
	}
	host, port, err := net.SplitHostPort(raftAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "cant parse raft addr '%s'", raftAddr)
	}
	raftPort, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return nil, errors.Wrapf(err, "bad port in raft addr '%s'", raftAddr)
	}
	return &Peer{
		ID:       id,
		Host:     host,
		RaftPort: uint16(raftPort),
	}, nil
}

// ParsePeers parses a comma separated list of id=host:port entries
func ParsePeers(list string) ([]*Peer, error) {
	var peers []*Peer
	seen := make(map[string]bool)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("peer entry %q is not id=host:port", entry)
		}
		peer, err := NewPeer(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		if seen[peer.ID] {
			return nil, errors.Errorf("peer %q listed twice", peer.ID)
		}
		seen[peer.ID] = true
		peers = append(peers, peer)
	}
	return peers, nil
}
