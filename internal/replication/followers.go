package replication

import (
	"context"

	"github.com/chatcluster/chatd/internal/chatpb"
)

// The handle* functions below are the follower actions from spec §4.2's
// replication table, invoked by HandleReplication after term reconciliation.

func (m *Manager) handleReplicateAccount(ctx context.Context, msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	if msg.AccountReplication == nil {
		return replicationErrorResponse(m.es.getTerm()), nil
	}
	ok, err := m.store.CreateReplicatedAccount(ctx, msg.AccountReplication.Username)
	if err != nil {
		m.log.Error().Err(err).Str("username", msg.AccountReplication.Username).Msg("replicate account failed")
		return replicationErrorResponse(m.es.getTerm()), nil
	}
	return &chatpb.ReplicationMessage{
		Type:                chatpb.MsgReplicationSuccess,
		Term:                m.es.getTerm(),
		ServerID:            m.self,
		ReplicationResponse: &chatpb.ReplicationResponse{Success: ok},
	}, nil
}

func (m *Manager) handleReplicateMessage(ctx context.Context, msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	if msg.MessageReplication == nil {
		return replicationErrorResponse(m.es.getTerm()), nil
	}
	p := msg.MessageReplication
	id, err := m.store.StoreMessage(ctx, p.Sender, p.Recipient, p.Content, false, &p.MessageID)
	if err != nil {
		m.log.Error().Err(err).Int64("id", p.MessageID).Msg("replicate message failed")
		return &chatpb.ReplicationMessage{
			Type:                chatpb.MsgReplicationSuccess,
			Term:                m.es.getTerm(),
			ServerID:            m.self,
			ReplicationResponse: &chatpb.ReplicationResponse{Success: false},
		}, nil
	}
	return &chatpb.ReplicationMessage{
		Type:                chatpb.MsgReplicationSuccess,
		Term:                m.es.getTerm(),
		ServerID:            m.self,
		ReplicationResponse: &chatpb.ReplicationResponse{Success: true, MessageID: id},
	}, nil
}

func (m *Manager) handleDeleteMessages(ctx context.Context, msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	if msg.Deletion == nil {
		return replicationErrorResponse(m.es.getTerm()), nil
	}
	ok, err := m.store.DeleteMessages(ctx, msg.Deletion.Username, msg.Deletion.MessageIDs)
	if err != nil {
		m.log.Error().Err(err).Str("username", msg.Deletion.Username).Msg("replicate delete_messages failed")
		ok = false
	}
	return &chatpb.ReplicationMessage{
		Type:                chatpb.MsgReplicationSuccess,
		Term:                m.es.getTerm(),
		ServerID:            m.self,
		ReplicationResponse: &chatpb.ReplicationResponse{Success: ok},
	}, nil
}

func (m *Manager) handleDeleteAccount(ctx context.Context, msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	if msg.Deletion == nil {
		return replicationErrorResponse(m.es.getTerm()), nil
	}
	ok, err := m.store.DeleteAccount(ctx, msg.Deletion.Username)
	if err != nil {
		m.log.Error().Err(err).Str("username", msg.Deletion.Username).Msg("replicate delete_account failed")
		ok = false
	}
	return &chatpb.ReplicationMessage{
		Type:                chatpb.MsgReplicationSuccess,
		Term:                m.es.getTerm(),
		ServerID:            m.self,
		ReplicationResponse: &chatpb.ReplicationResponse{Success: ok},
	}, nil
}

func (m *Manager) handleMarkRead(ctx context.Context, msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	if msg.Deletion == nil {
		return replicationErrorResponse(m.es.getTerm()), nil
	}
	ok, err := m.store.MarkMessagesAsRead(ctx, msg.Deletion.Username, msg.Deletion.MessageIDs)
	if err != nil {
		m.log.Error().Err(err).Str("username", msg.Deletion.Username).Msg("replicate mark_read failed")
		ok = false
	}
	return &chatpb.ReplicationMessage{
		Type:                chatpb.MsgReplicationSuccess,
		Term:                m.es.getTerm(),
		ServerID:            m.self,
		ReplicationResponse: &chatpb.ReplicationResponse{Success: ok},
	}, nil
}

func replicationErrorResponse(term int64) *chatpb.ReplicationMessage {
	return &chatpb.ReplicationMessage{Type: chatpb.MsgReplicationError, Term: term}
}
