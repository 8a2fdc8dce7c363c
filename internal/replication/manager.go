package replication

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chatcluster/chatd/internal/chatpb"
	"github.com/chatcluster/chatd/internal/store"
	"github.com/rs/zerolog"
)

// ErrReplicationFailed is returned by the Replicate* methods when quorum
// was not reached; callers (the CS) must treat this as spec §7's
// ReplicationFailure. ReplicateAccount and ReplicateMessage have already
// rolled back the local PS write when they return it; ReplicateDeleteMessages,
// ReplicateDeleteAccount and ReplicateMarkRead leave the local write in place.
var ErrReplicationFailed = errors.New("replication: quorum not reached")

// ErrNotLeader is returned by the Replicate* methods when called on a
// non-leader node; the CS is expected to never do this (it forwards
// mutations to the leader first), so this indicates a race with a
// concurrent step-down.
var ErrNotLeader = errors.New("replication: not leader")

// Manager is the per-node Replication Manager (RM) described in spec §4.2.
type Manager struct {
	self   string
	store  *store.Store
	dialer Dialer
	log    zerolog.Logger

	es *electionState

	clientsMu sync.Mutex
	clients   map[string]PeerClient

	resetElectionCh chan struct{}
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// New constructs an RM for this node. self is this node's "host:port"
// identity (matches what it advertises as server_id); peers is the
// statically configured peer set (spec §4.2 "statically configured peer
// set", explicitly excluding dynamic membership per §1 Non-goals).
func New(self string, peers []string, st *store.Store, dialer Dialer, log zerolog.Logger) *Manager {
	return &Manager{
		self:            self,
		store:           st,
		dialer:          dialer,
		log:             log.With().Str("component", "replication").Logger(),
		es:              newElectionState(peers),
		clients:         make(map[string]PeerClient),
		resetElectionCh: make(chan struct{}, 1),
		stopCh:          make(chan struct{}),
	}
}

// Start launches the election timer and heartbeat emitter, one
// long-running goroutine each, per spec §4.2 "a single long-running
// goroutine/thread performs heartbeat emission; a single long-running
// goroutine/thread drives the election timer."
func (m *Manager) Start() {
	m.wg.Add(2)
	go m.runElectionTimer()
	go m.runHeartbeatLoop()
}

// Stop cancels both background loops. Idempotent calls are not supported;
// call once at node shutdown.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Manager) Role() Role       { return m.es.getRole() }
func (m *Manager) Term() int64      { return m.es.getTerm() }
func (m *Manager) LeaderAddr() string { return m.es.getLeader() }
func (m *Manager) IsLeader() bool   { return m.Role() == Leader }

// resetElectionTimer is non-blocking: if a reset is already pending the
// send is dropped, which is fine since the timer loop only needs to know
// "reset happened at least once since I last checked".
func (m *Manager) resetElectionTimer() {
	select {
	case m.resetElectionCh <- struct{}{}:
	default:
	}
}

func randomElectionTimeout() time.Duration {
	span := MaxElectionTimeout - MinElectionTimeout
	return MinElectionTimeout + time.Duration(rand.Int64N(int64(span)))
}

func (m *Manager) runElectionTimer() {
	defer m.wg.Done()
	for {
		timeout := randomElectionTimeout() // resampled every iteration, per spec §4.2
		timer := time.NewTimer(timeout)
		select {
		case <-timer.C:
			if m.Role() != Leader {
				m.startElection()
			}
		case <-m.resetElectionCh:
			timer.Stop()
		case <-m.stopCh:
			timer.Stop()
			return
		}
	}
}

func (m *Manager) runHeartbeatLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if m.Role() == Leader {
				m.sendHeartbeats()
			}
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) peerClient(addr string) (PeerClient, error) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if c, ok := m.clients[addr]; ok {
		return c, nil
	}
	c, err := m.dialer(addr)
	if err != nil {
		return nil, err
	}
	m.clients[addr] = c
	return c, nil
}

// stepDown transitions to FOLLOWER, adopting newTerm if it is greater than
// the current term, per spec §4.2's universal step-down rule.
func (m *Manager) stepDown(newTerm int64) {
	m.es.termMu.Lock()
	if newTerm > m.es.term {
		m.es.term = newTerm
	}
	m.es.termMu.Unlock()
	m.es.setVotedFor("")
	m.es.setRole(Follower)
}
