package replication

import (
	"context"

	"github.com/chatcluster/chatd/internal/chatpb"
)

// PeerClient is the subset of chatpb.ChatClient the RM needs to talk to a
// peer node's HandleReplication RPC. Kept as a narrow interface so tests
// can fake peers without a real gRPC connection.
type PeerClient interface {
	HandleReplication(ctx context.Context, in *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error)
}

// Dialer resolves a peer address to a PeerClient. The Manager calls it
// lazily, on first contact with a peer, and caches the PeerClient it
// returns (see Manager.peerClient). Supplied by cmd/server (real gRPC dial) or by
// tests (in-memory fakes), keeping this package free of a direct
// dependency on how connections are established.
type Dialer func(addr string) (PeerClient, error)
