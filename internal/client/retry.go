package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chatcluster/chatd/internal/chatpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxLeaderRetries bounds the retry-across-failover loop, per spec §4.4
// point 3 ("recommended 3").
const maxLeaderRetries = 3

// leaderRetryBackoff is the fixed ~1s pause between attempts named in spec
// §4.4 point 3.
const leaderRetryBackoff = time.Second

// withLeaderRetry runs op against the session's active client, and on a
// "not leader"/transport failure, discovers and switches to the leader
// before retrying, up to maxLeaderRetries times with leaderRetryBackoff
// between attempts. op must not retain the chatpb.ChatClient it is given
// past its own return.
func withLeaderRetry[T any](ctx context.Context, s *Session, op func(chatpb.ChatClient) (T, error)) (T, error) {
	var zero T
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(leaderRetryBackoff), maxLeaderRetries)

	var result T
	err := backoff.Retry(func() error {
		resp, err := op(s.activeClient())
		if err == nil {
			result = resp
			return nil
		}
		if !isNotLeaderOrTransport(err) {
			return backoff.Permanent(err)
		}

		s.log.Warn().Err(err).Msg("rpc failed, attempting to discover leader")
		addr, derr := s.discoverLeader(ctx)
		if derr != nil {
			return err
		}
		if serr := s.switchTo(addr); serr != nil {
			return err
		}
		return err
	}, b)
	if err != nil {
		return zero, err
	}
	return result, nil
}

func isNotLeaderOrTransport(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return true // not a status error at all: treat as a transport failure
	}
	switch st.Code() {
	case codes.FailedPrecondition, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func (s *Session) CreateAccount(ctx context.Context, password string) (*chatpb.StatusResponse, error) {
	return withLeaderRetry(ctx, s, func(c chatpb.ChatClient) (*chatpb.StatusResponse, error) {
		return c.CreateAccount(s.withUsername(ctx), &chatpb.CreateAccountRequest{Username: s.Username, Password: password})
	})
}

func (s *Session) Login(ctx context.Context, password string) (*chatpb.StatusResponse, error) {
	return withLeaderRetry(ctx, s, func(c chatpb.ChatClient) (*chatpb.StatusResponse, error) {
		return c.Login(s.withUsername(ctx), &chatpb.LoginRequest{Username: s.Username, Password: password})
	})
}

func (s *Session) SendMessage(ctx context.Context, recipient, text string) (*chatpb.StatusResponse, error) {
	return withLeaderRetry(ctx, s, func(c chatpb.ChatClient) (*chatpb.StatusResponse, error) {
		return c.SendMessage(s.withUsername(ctx), &chatpb.SendMessageRequest{Recipient: recipient, Text: text})
	})
}

func (s *Session) DeleteMessages(ctx context.Context, ids []int64) (*chatpb.StatusResponse, error) {
	return withLeaderRetry(ctx, s, func(c chatpb.ChatClient) (*chatpb.StatusResponse, error) {
		return c.DeleteMessages(s.withUsername(ctx), &chatpb.DeleteMessagesRequest{Username: s.Username, MessageIDs: ids})
	})
}

func (s *Session) DeleteAccount(ctx context.Context) (*chatpb.StatusResponse, error) {
	return withLeaderRetry(ctx, s, func(c chatpb.ChatClient) (*chatpb.StatusResponse, error) {
		return c.DeleteAccount(s.withUsername(ctx), &chatpb.DeleteAccountRequest{Username: s.Username})
	})
}

func (s *Session) MarkRead(ctx context.Context, ids []int64) (*chatpb.StatusResponse, error) {
	return withLeaderRetry(ctx, s, func(c chatpb.ChatClient) (*chatpb.StatusResponse, error) {
		return c.MarkRead(s.withUsername(ctx), &chatpb.MarkReadRequest{Username: s.Username, MessageIDs: ids})
	})
}

// ReadConversation, ListAccounts and ListChatPartners are reads the CS
// serves locally regardless of role (spec §4.3), so they run directly
// against the active client without the leader-retry loop.

func (s *Session) ReadConversation(ctx context.Context, partner string, offset, limit int32) (*chatpb.ReadConversationResponse, error) {
	return s.activeClient().ReadConversation(s.withUsername(ctx), &chatpb.ReadConversationRequest{Partner: partner, Offset: offset, Limit: limit})
}

func (s *Session) ListAccounts(ctx context.Context, pattern string, page int32) (*chatpb.ListAccountsResponse, error) {
	return s.activeClient().ListAccounts(s.withUsername(ctx), &chatpb.ListAccountsRequest{Pattern: pattern, Page: page})
}

func (s *Session) ListChatPartners(ctx context.Context) (*chatpb.ListChatPartnersResponse, error) {
	return s.activeClient().ListChatPartners(s.withUsername(ctx), &chatpb.ListChatPartnersRequest{Username: s.Username})
}

func (s *Session) GetLeader(ctx context.Context) (*chatpb.GetLeaderResponse, error) {
	return s.activeClient().GetLeader(s.withUsername(ctx), &chatpb.GetLeaderRequest{})
}
