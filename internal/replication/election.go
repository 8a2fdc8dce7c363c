package replication

import (
	"context"
	"sync"

	"github.com/chatcluster/chatd/internal/chatpb"
)

// startElection implements spec §4.2's election sequence.
func (m *Manager) startElection() {
	m.es.setRole(Candidate)

	m.es.termMu.Lock()
	m.es.term++
	currentTerm := m.es.term
	lastLogTerm := m.es.lastLogTerm
	lastLogIndex := m.es.lastLogIndex
	m.es.termMu.Unlock()

	m.es.setVotedFor(m.self)

	alive := m.es.aliveSet(m.self)
	quorum := quorumOf(len(alive))

	var mu sync.Mutex
	votes := 1 // implicit self-vote
	steppedDown := false

	var wg sync.WaitGroup
	for _, addr := range alive {
		if addr == m.self {
			continue
		}
		addr := addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := m.peerClient(addr)
			if err != nil {
				m.es.markDead(addr)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), VoteRPCTimeout)
			defer cancel()
			resp, err := client.HandleReplication(ctx, &chatpb.ReplicationMessage{
				Type:     chatpb.MsgVoteRequest,
				Term:     currentTerm,
				ServerID: m.self,
				VoteRequest: &chatpb.VoteRequest{
					LastLogTerm:  lastLogTerm,
					LastLogIndex: lastLogIndex,
				},
			})
			if err != nil {
				m.es.markDead(addr)
				return
			}
			m.es.markAlive(addr)

			mu.Lock()
			defer mu.Unlock()
			if resp.Term > currentTerm {
				if !steppedDown {
					steppedDown = true
					m.stepDown(resp.Term)
				}
				return
			}
			if resp.VoteResponse != nil && resp.VoteResponse.VoteGranted {
				votes++
			}
		}()
	}
	wg.Wait()

	if steppedDown {
		return
	}
	if votes < quorum {
		return // remain CANDIDATE; the election timer will retry in the next term
	}
	if m.Role() != Candidate || m.Term() != currentTerm {
		return // state moved on while votes were in flight
	}

	m.es.setRole(Leader)
	m.es.setLeader(m.self)
	m.log.Info().Int64("term", currentTerm).Int("votes", votes).Int("quorum", quorum).Msg("election won")
	m.sendHeartbeats() // assert leadership immediately, per spec §4.2
}

// HandleReplication is the RM's receiver for every inbound replication
// message, implementing spec §4.2's term rules and §6.2's tagged-union
// dispatch, plus §4.1 follower actions for REPLICATE_* mutations (the
// table in spec §4.2).
func (m *Manager) HandleReplication(ctx context.Context, msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	selfTerm := m.es.getTerm()

	if msg.Term > selfTerm {
		m.stepDown(msg.Term)
		selfTerm = msg.Term
	} else if msg.Term < selfTerm {
		return &chatpb.ReplicationMessage{
			Type: chatpb.MsgReplicationError,
			Term: selfTerm,
		}, nil
	}

	switch msg.Type {
	case chatpb.MsgVoteRequest:
		return m.handleVoteRequest(msg)
	case chatpb.MsgHeartbeat:
		return m.handleHeartbeat(msg)
	case chatpb.MsgReplicateAccount:
		return m.handleReplicateAccount(ctx, msg)
	case chatpb.MsgReplicateMessage:
		return m.handleReplicateMessage(ctx, msg)
	case chatpb.MsgDeleteMessages:
		return m.handleDeleteMessages(ctx, msg)
	case chatpb.MsgDeleteAccount:
		return m.handleDeleteAccount(ctx, msg)
	case chatpb.MsgMarkRead:
		return m.handleMarkRead(ctx, msg)
	default:
		return &chatpb.ReplicationMessage{Type: chatpb.MsgReplicationError, Term: selfTerm}, nil
	}
}

func (m *Manager) handleVoteRequest(msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	votedFor := m.es.getVotedFor()
	candidateOK := votedFor == "" || votedFor == msg.ServerID

	m.es.termMu.Lock()
	selfLastLogTerm, selfLastLogIndex := m.es.lastLogTerm, m.es.lastLogIndex
	m.es.termMu.Unlock()

	upToDate := false
	if msg.VoteRequest != nil {
		if msg.VoteRequest.LastLogTerm > selfLastLogTerm {
			upToDate = true
		} else if msg.VoteRequest.LastLogTerm == selfLastLogTerm && msg.VoteRequest.LastLogIndex >= selfLastLogIndex {
			upToDate = true
		}
	}

	granted := candidateOK && upToDate
	if granted {
		m.es.setVotedFor(msg.ServerID)
		m.resetElectionTimer() // granting resets the receiver's election timer, per spec §4.2
	}

	return &chatpb.ReplicationMessage{
		Type:         chatpb.MsgVoteResponse,
		Term:         m.es.getTerm(),
		ServerID:     m.self,
		VoteResponse: &chatpb.VoteResponse{VoteGranted: granted},
	}, nil
}

func (m *Manager) handleHeartbeat(msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	// Heartbeat reception resets the election timer BEFORE any role
	// transition logic runs, per spec §5's ordering guarantee.
	m.resetElectionTimer()
	m.es.setLeader(msg.ServerID)

	if msg.Term == m.es.getTerm() && m.Role() != Follower {
		m.es.setRole(Follower)
	}

	if msg.Heartbeat != nil {
		m.es.termMu.Lock()
		if msg.Heartbeat.CommitIndex > m.es.commitIndex {
			m.es.commitIndex = msg.Heartbeat.CommitIndex
		}
		m.es.termMu.Unlock()
	}

	return &chatpb.ReplicationMessage{Type: chatpb.MsgReplicationSuccess, Term: m.es.getTerm(), ServerID: m.self}, nil
}

// sendHeartbeats fans out a heartbeat to every peer and steps down if it
// no longer commands a majority of the alive-set, per spec §4.2 "Every
// heartbeat round the leader counts implicit-self + successful heartbeat
// acks; if that count is below floor(alive/2)+1, it steps down."
func (m *Manager) sendHeartbeats() {
	m.es.termMu.Lock()
	term := m.es.term
	commitIndex := m.es.commitIndex
	m.es.termMu.Unlock()
	alive := m.es.aliveSet(m.self)
	quorum := quorumOf(len(alive))

	var mu sync.Mutex
	acks := 1 // implicit self

	var wg sync.WaitGroup
	for _, addr := range alive {
		if addr == m.self {
			continue
		}
		addr := addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := m.peerClient(addr)
			if err != nil {
				m.es.markDead(addr)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), HeartbeatRPCTimeout)
			defer cancel()
			resp, err := client.HandleReplication(ctx, &chatpb.ReplicationMessage{
				Type:      chatpb.MsgHeartbeat,
				Term:      term,
				ServerID:  m.self,
				Heartbeat: &chatpb.Heartbeat{CommitIndex: commitIndex},
			})
			if err != nil {
				m.es.markDead(addr)
				return
			}
			m.es.markAlive(addr)

			mu.Lock()
			defer mu.Unlock()
			if resp.Term > term {
				m.stepDown(resp.Term)
				return
			}
			acks++
		}()
	}
	wg.Wait()

	if m.Role() == Leader && acks < quorum {
		m.log.Warn().Int("acks", acks).Int("quorum", quorum).Msg("lost heartbeat majority, stepping down")
		m.es.setRole(Follower)
	}
}
