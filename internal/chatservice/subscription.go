// Package chatservice implements the chat cluster's Chat Service (CS): the
// request dispatcher that terminates client RPCs, forwards mutations to
// the leader, serves reads locally, and fans out live deliveries. Grounded
// on spec §4.3 and on
// _examples/original_source/replication/src/chat_grpc_server.py for RPC
// handler bodies; gRPC wiring grounded on the teacher's
// internal/grpcapi/server.go (Server struct + Unimplemented embedding +
// one method per RPC).
package chatservice

import (
	"sync"

	"github.com/chatcluster/chatd/internal/chatpb"
)

// subscriptionQueueDepth bounds per-subscription buffered deliveries, per
// SPEC_FULL.md's resolved open question on queue depth (spec §9 names this
// an open question; 1024 is the chosen finite bound).
const subscriptionQueueDepth = 1024

// subscriptionState is the OPENING -> DRAINING -> LIVE -> CLOSED lifecycle
// named in spec §4.3.
type subscriptionState int

const (
	stateOpening subscriptionState = iota
	stateDraining
	stateLive
	stateClosed
)

// subscription is one live ReadMessages stream's delivery queue, CS-local
// and non-durable per spec §3.
type subscription struct {
	username string
	queue    chan *chatpb.DeliveredMessage

	mu    sync.Mutex
	state subscriptionState
}

func newSubscription(username string) *subscription {
	return &subscription{
		username: username,
		queue:    make(chan *chatpb.DeliveredMessage, subscriptionQueueDepth),
		state:    stateOpening,
	}
}

func (s *subscription) setState(st subscriptionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *subscription) getState() subscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// push enqueues a delivery without blocking. Returns false on overflow, at
// which point the caller (subscriptionTable) closes this subscription per
// spec §4.3 "Subscription queue overflow ... bound the queue; on overflow,
// close that subscription and let the client reopen."
func (s *subscription) push(m *chatpb.DeliveredMessage) bool {
	select {
	case s.queue <- m:
		return true
	default:
		return false
	}
}

// subscriptionTable is the CS-local mapping from username to the set of
// live delivery queues named in spec §3's Subscription type. Guarded by a
// single lock, per spec §5's "subscription table is guarded by a single
// lock; per-subscription queues are themselves thread-safe bounded
// channels."
type subscriptionTable struct {
	mu   sync.Mutex
	subs map[string][]*subscription
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{subs: make(map[string][]*subscription)}
}

func (t *subscriptionTable) register(username string) *subscription {
	sub := newSubscription(username)
	t.mu.Lock()
	t.subs[username] = append(t.subs[username], sub)
	t.mu.Unlock()
	return sub
}

func (t *subscriptionTable) remove(sub *subscription) {
	sub.setState(stateClosed)
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.subs[sub.username]
	for i, s := range list {
		if s == sub {
			t.subs[sub.username] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(t.subs[sub.username]) == 0 {
		delete(t.subs, sub.username)
	}
}

// publish pushes m to every live subscription for recipient. Returns the
// number of subscriptions it was delivered to; zero means the recipient
// has no live subscription and the message remains undelivered in the PS
// (spec §4.3 "If none, the message remains undelivered").
func (t *subscriptionTable) publish(recipient string, m *chatpb.DeliveredMessage) int {
	t.mu.Lock()
	list := append([]*subscription(nil), t.subs[recipient]...)
	t.mu.Unlock()

	delivered := 0
	for _, sub := range list {
		if sub.getState() == stateClosed {
			continue
		}
		if sub.push(m) {
			delivered++
		} else {
			t.remove(sub) // overflow: close and let the client reopen
		}
	}
	return delivered
}
