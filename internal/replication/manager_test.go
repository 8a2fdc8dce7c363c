package replication

import (
	"context"
	"errors"
	"testing"

	"github.com/chatcluster/chatd/internal/chatpb"
	"github.com/chatcluster/chatd/internal/store"
	"github.com/rs/zerolog"
)

type fakePeer struct {
	respond func(*chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error)
}

func (f *fakePeer) HandleReplication(_ context.Context, in *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	return f.respond(in)
}

func grantingDialer(term int64) Dialer {
	return func(addr string) (PeerClient, error) {
		return &fakePeer{respond: func(in *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
			switch in.Type {
			case chatpb.MsgVoteRequest:
				return &chatpb.ReplicationMessage{Type: chatpb.MsgVoteResponse, Term: term, VoteResponse: &chatpb.VoteResponse{VoteGranted: true}}, nil
			default:
				return &chatpb.ReplicationMessage{Type: chatpb.MsgReplicationSuccess, Term: term, ReplicationResponse: &chatpb.ReplicationResponse{Success: true}}, nil
			}
		}}, nil
	}
}

func denyingDialer(term int64) Dialer {
	return func(addr string) (PeerClient, error) {
		return &fakePeer{respond: func(in *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
			switch in.Type {
			case chatpb.MsgVoteRequest:
				return &chatpb.ReplicationMessage{Type: chatpb.MsgVoteResponse, Term: term, VoteResponse: &chatpb.VoteResponse{VoteGranted: false}}, nil
			default:
				return &chatpb.ReplicationMessage{Type: chatpb.MsgReplicationSuccess, Term: term, ReplicationResponse: &chatpb.ReplicationResponse{Success: false}}, nil
			}
		}}, nil
	}
}

func unreachableDialer() Dialer {
	return func(addr string) (PeerClient, error) {
		return nil, errors.New("connection refused")
	}
}

func newTestManager(t *testing.T, peers []string, dialer Dialer) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New("node1:8000", peers, st, dialer, zerolog.Nop()), st
}

func TestStartElectionSingleNodeBecomesLeader(t *testing.T) {
	m, _ := newTestManager(t, nil, unreachableDialer())
	m.startElection()
	if m.Role() != Leader {
		t.Errorf("Role() = %v, want Leader (quorum of 1 node is self)", m.Role())
	}
}

func TestStartElectionWinsWithMajority(t *testing.T) {
	m, _ := newTestManager(t, []string{"node2:8000", "node3:8000"}, grantingDialer(0))
	m.startElection()
	if m.Role() != Leader {
		t.Errorf("Role() = %v, want Leader (self + 2 granted votes is 3/3)", m.Role())
	}
}

func TestStartElectionLosesWithoutMajority(t *testing.T) {
	m, _ := newTestManager(t, []string{"node2:8000", "node3:8000"}, denyingDialer(0))
	m.startElection()
	if m.Role() == Leader {
		t.Errorf("Role() = Leader, want non-leader (self-vote alone is 1/3, below quorum of 2)")
	}
}

func TestHandleReplicationStepsDownOnHigherTerm(t *testing.T) {
	m, _ := newTestManager(t, nil, unreachableDialer())
	m.startElection() // becomes leader at term 1

	_, err := m.HandleReplication(context.Background(), &chatpb.ReplicationMessage{
		Type:      chatpb.MsgHeartbeat,
		Term:      99,
		ServerID:  "node9:8000",
		Heartbeat: &chatpb.Heartbeat{},
	})
	if err != nil {
		t.Fatalf("HandleReplication() error = %v", err)
	}
	if m.Role() != Follower {
		t.Errorf("Role() = %v, want Follower after seeing a higher term", m.Role())
	}
	if m.Term() != 99 {
		t.Errorf("Term() = %d, want 99", m.Term())
	}
	if m.LeaderAddr() != "node9:8000" {
		t.Errorf("LeaderAddr() = %q, want node9:8000", m.LeaderAddr())
	}
}

func TestHandleReplicationRejectsStaleTerm(t *testing.T) {
	m, _ := newTestManager(t, nil, unreachableDialer())
	m.startElection() // term 1, leader

	resp, err := m.HandleReplication(context.Background(), &chatpb.ReplicationMessage{
		Type:     chatpb.MsgHeartbeat,
		Term:     0,
		ServerID: "stale-leader:8000",
	})
	if err != nil {
		t.Fatalf("HandleReplication() error = %v", err)
	}
	if resp.Type != chatpb.MsgReplicationError {
		t.Errorf("resp.Type = %v, want REPLICATION_ERROR for a stale term", resp.Type)
	}
	if resp.Term != 1 {
		t.Errorf("resp.Term = %d, want 1 (self term)", resp.Term)
	}
}

func TestReplicateMessageRollsBackOnFailedQuorum(t *testing.T) {
	m, st := newTestManager(t, []string{"node2:8000", "node3:8000"}, unreachableDialer())
	// Force leadership directly instead of running an election: a failed
	// election would mark both peers dead, shrinking the alive-set to self
	// alone (quorum 1) and letting replication commit. With both peers still
	// marked alive, quorum is 2 of 3 and the unreachable peers leave it unmet.
	m.es.setRole(Leader)
	m.es.setLeader(m.self)

	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := st.CreateAccount(ctx, u, "pw"); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", u, err)
		}
	}
	id, err := st.StoreMessage(ctx, "alice", "bob", "hi", false, nil)
	if err != nil {
		t.Fatalf("StoreMessage() error = %v", err)
	}

	err = m.ReplicateMessage(ctx, id, "alice", "bob", "hi")
	if !errors.Is(err, ErrReplicationFailed) {
		t.Fatalf("ReplicateMessage() error = %v, want ErrReplicationFailed", err)
	}

	page, err := st.GetMessagesBetweenUsers(ctx, "alice", "bob", 0, 10)
	if err != nil {
		t.Fatalf("GetMessagesBetweenUsers() error = %v", err)
	}
	if page.Total != 0 {
		t.Errorf("message should have been rolled back, total = %d", page.Total)
	}
}

func TestReplicateMessageCommitsOnQuorum(t *testing.T) {
	m, st := newTestManager(t, []string{"node2:8000", "node3:8000"}, grantingDialer(0))
	m.es.setRole(Leader)
	m.es.setLeader(m.self)

	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := st.CreateAccount(ctx, u, "pw"); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", u, err)
		}
	}
	id, err := st.StoreMessage(ctx, "alice", "bob", "hi", false, nil)
	if err != nil {
		t.Fatalf("StoreMessage() error = %v", err)
	}

	if err := m.ReplicateMessage(ctx, id, "alice", "bob", "hi"); err != nil {
		t.Fatalf("ReplicateMessage() error = %v, want nil", err)
	}

	page, err := st.GetMessagesBetweenUsers(ctx, "alice", "bob", 0, 10)
	if err != nil {
		t.Fatalf("GetMessagesBetweenUsers() error = %v", err)
	}
	if page.Total != 1 {
		t.Errorf("message should be committed, total = %d", page.Total)
	}
}
