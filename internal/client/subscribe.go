package client

import (
	"context"
	"time"

	"github.com/chatcluster/chatd/internal/chatpb"
)

// subscribeRetryDelay is how long the background read task waits before
// re-establishing a dropped ReadMessages stream, e.g. after a leadership
// migration severs the connection mid-stream.
const subscribeRetryDelay = 2 * time.Second

// StartReadMessages launches the dedicated background task named in spec
// §4.4's last paragraph: it runs the streaming ReadMessages RPC against
// whatever endpoint is currently active, pushes every delivered message to
// s.Inbox, and transparently reopens the stream (following a leadership
// migration if the stream dropped because of one) until ctx is cancelled or
// Close is called. Grounded on chat_grpc_client.py's read_messages /
// start_read_thread pair, reworked as a single goroutine loop instead of a
// daemon thread plus queue.
func (s *Session) StartReadMessages(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			if err := s.runReadMessagesOnce(ctx); err != nil {
				s.log.Warn().Err(err).Msg("read_messages stream ended, will retry")
			}
			select {
			case <-time.After(subscribeRetryDelay):
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Session) runReadMessagesOnce(ctx context.Context) error {
	stream, err := s.activeClient().ReadMessages(s.withUsername(ctx), &chatpb.ReadMessagesRequest{Username: s.Username})
	if err != nil {
		return err
	}
	for {
		msg, err := stream.Recv()
		if err != nil {
			return err
		}
		select {
		case s.Inbox <- msg:
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
