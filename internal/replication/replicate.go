package replication

import (
	"context"
	"sync"

	"github.com/chatcluster/chatd/internal/chatpb"
)

// broadcastResult is the outcome of fanning one replication message out to
// the alive-set.
type broadcastResult struct {
	acks  int
	quorum int
}

// broadcast sends msg to every peer in the alive-set snapshot taken at call
// start (spec §5: "the denominator cannot grow mid-call"), counts
// implicit-self plus successful acks, and reports whether quorum was met.
// A response is only counted as an ack when the follower's
// ReplicationResponse.Success is true, so a follower-side store error does
// not silently count as committed.
func (m *Manager) broadcast(msg *chatpb.ReplicationMessage) broadcastResult {
	alive := m.es.aliveSet(m.self)
	quorum := quorumOf(len(alive))

	var mu sync.Mutex
	acks := 1 // implicit self: the leader already performed the local PS write

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
			ctx, cancel := context.WithTimeout(context.Background(), ReplicationRPCTimeout)
			defer cancel()
			resp, err := client.HandleReplication(ctx, msg)
			if err != nil {
				m.es.markDead(addr)
				return
			}
			m.es.markAlive(addr)

			mu.Lock()
			defer mu.Unlock()
			if resp.Term > msg.Term {
				m.stepDown(resp.Term)
				return
			}
			if resp.ReplicationResponse != nil && resp.ReplicationResponse.Success {
				acks++
			}
		}()
	}
	wg.Wait()

	return broadcastResult{acks: acks, quorum: quorum}
}

// commit advances the leader's log-less log pointers after a successful
// replication round, per spec §4.2 "On success the leader bumps
// last_log_index += 1 ... commit_index = last_log_index."
func (m *Manager) commit() {
	m.es.termMu.Lock()
	m.es.lastLogIndex++
	m.es.lastLogTerm = m.es.term
	m.es.commitIndex = m.es.lastLogIndex
	m.es.termMu.Unlock()
}

// ReplicateAccount performs the leader-side half of CreateAccount: the PS
// write has already happened in the CS; this broadcasts REPLICATE_ACCOUNT
// and rolls back (deletes the account) on failed quorum, honoring §4.2's
// critical consistency rule.
func (m *Manager) ReplicateAccount(ctx context.Context, username string) error {
	if !m.IsLeader() {
		return ErrNotLeader
	}
	term := m.Term()
	res := m.broadcast(&chatpb.ReplicationMessage{
		Type:               chatpb.MsgReplicateAccount,
		Term:               term,
		ServerID:           m.self,
		AccountReplication: &chatpb.AccountReplication{Username: username},
	})
	if res.acks < res.quorum {
		if _, err := m.store.DeleteAccount(ctx, username); err != nil {
			m.log.Error().Err(err).Str("username", username).Msg("rollback of unreplicated account failed")
		}
		return ErrReplicationFailed
	}
	m.commit()
	return nil
}

// ReplicateMessage broadcasts REPLICATE_MESSAGE for a message the leader
// already stored at id, rolling back (hard-deleting) the row on failed
// quorum. This is the operation spec §8's testable properties 3 and 4
// (replication commit implies majority persistence; rollback on failure)
// are about.
func (m *Manager) ReplicateMessage(ctx context.Context, id int64, sender, recipient, content string) error {
	if !m.IsLeader() {
		return ErrNotLeader
	}
	term := m.Term()
	res := m.broadcast(&chatpb.ReplicationMessage{
		Type:     chatpb.MsgReplicateMessage,
		Term:     term,
		ServerID: m.self,
		MessageReplication: &chatpb.MessageReplication{
			MessageID: id,
			Sender:    sender,
			Recipient: recipient,
			Content:   content,
		},
	})
	if res.acks < res.quorum {
		if err := m.store.DeleteMessageHard(ctx, id); err != nil {
			m.log.Error().Err(err).Int64("id", id).Msg("rollback of unreplicated message failed")
		}
		return ErrReplicationFailed
	}
	m.commit()
	return nil
}

// ReplicateDeleteMessages, ReplicateDeleteAccount and ReplicateMarkRead
// broadcast their respective REPLICATE_* variants after the leader's local
// PS mutation. Unlike ReplicateMessage/ReplicateAccount, these operate on
// rows that already existed before the call (soft-delete flag flips, hard
// delete-by-cascade, read-state flips): there is no new row to hard-delete
// on rollback, so a failed quorum here is surfaced as ReplicationFailure
// without attempting to undo the local flag flip. Followers that missed
// the round will reconverge if the same mutation is retried by the client
// (§4.3 failure semantics: "clients ... must not assume durability").

func (m *Manager) ReplicateDeleteMessages(ctx context.Context, username string, ids []int64) error {
	if !m.IsLeader() {
		return ErrNotLeader
	}
	term := m.Term()
	res := m.broadcast(&chatpb.ReplicationMessage{
		Type:     chatpb.MsgDeleteMessages,
		Term:     term,
		ServerID: m.self,
		Deletion: &chatpb.Deletion{Username: username, MessageIDs: ids},
	})
	if res.acks < res.quorum {
		return ErrReplicationFailed
	}
	m.commit()
	return nil
}

func (m *Manager) ReplicateDeleteAccount(ctx context.Context, username string) error {
	if !m.IsLeader() {
		return ErrNotLeader
	}
	term := m.Term()
	res := m.broadcast(&chatpb.ReplicationMessage{
		Type:     chatpb.MsgDeleteAccount,
		Term:     term,
		ServerID: m.self,
		Deletion: &chatpb.Deletion{Username: username},
	})
	if res.acks < res.quorum {
		return ErrReplicationFailed
	}
	m.commit()
	return nil
}

// ReplicateMarkRead replicates mark_messages_as_read, per SPEC_FULL.md's
// resolved open question: replicated, but not subject to the rollback
// invariant (read state is advisory).
func (m *Manager) ReplicateMarkRead(ctx context.Context, username string, ids []int64) error {
	if !m.IsLeader() {
		return ErrNotLeader
	}
	term := m.Term()
	res := m.broadcast(&chatpb.ReplicationMessage{
		Type:     chatpb.MsgMarkRead,
		Term:     term,
		ServerID: m.self,
		Deletion: &chatpb.Deletion{Username: username, MessageIDs: ids},
	})
	if res.acks < res.quorum {
		return ErrReplicationFailed
	}
	m.commit()
	return nil
}
