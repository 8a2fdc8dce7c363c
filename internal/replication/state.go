// Package replication implements the chat cluster's Replication Manager
// (RM): a per-node Raft-style election and log-less primary-backup
// replication layer on top of internal/store. Grounded directly on spec
// §4.2 and on
// _examples/original_source/replication/src/replication/replication_manager.py
// for timing constants and message flow; concurrency idiom (goroutines,
// cancellable timers) grounded on _examples/moogacs-raft/raft.go.
package replication

import (
	"sync"
	"time"
)

// Role mirrors spec §3's Election State role enum.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

const (
	// HeartbeatInterval is the leader's heartbeat emission period, per
	// spec §4.2 "recommended 100 ms".
	HeartbeatInterval = 100 * time.Millisecond
	// MinElectionTimeout / MaxElectionTimeout bound the randomized
	// follower election timer, per spec §4.2.
	MinElectionTimeout = 1000 * time.Millisecond
	MaxElectionTimeout = 2000 * time.Millisecond
	// VoteRPCTimeout / ReplicationRPCTimeout are per-call bounds, per
	// spec §5 "Cancellation and timeouts".
	VoteRPCTimeout        = 2 * time.Second
	HeartbeatRPCTimeout   = 1 * time.Second
	ReplicationRPCTimeout = 1 * time.Second
)

// replicaInfo is the RM-local, non-durable per-peer bookkeeping named in
// spec §3 ReplicaInfo.
type replicaInfo struct {
	addr          string
	isAlive       bool
	lastHeartbeat time.Time
}

// electionState holds the non-durable per-node election fields named in
// spec §3. Each field is guarded by its own mutex (roleMu, termMu,
// votedForMu, leaderMu) per §4.2/§9's "keep the locks fine-grained ...
// lock-acquisition order is fixed (role -> term -> voted_for -> leader ->
// replicas)". Callers that need more than one field MUST acquire the
// corresponding mutexes in that order to avoid deadlock.
type electionState struct {
	roleMu sync.Mutex
	role   Role

	termMu sync.Mutex
	term   int64

	votedForMu sync.Mutex
	votedFor   string // peer id ("host:port"), or "" for none

	leaderMu       sync.Mutex
	leaderEndpoint string

	lastLogIndex int64 // only ever touched under termMu alongside term bumps
	lastLogTerm  int64
	commitIndex  int64

	replicasMu sync.Mutex
	replicas   map[string]*replicaInfo
}

func newElectionState(peers []string) *electionState {
	es := &electionState{role: Follower, replicas: make(map[string]*replicaInfo, len(peers))}
	for _, p := range peers {
		es.replicas[p] = &replicaInfo{addr: p, isAlive: true}
	}
	return es
}

func (es *electionState) getRole() Role {
	es.roleMu.Lock()
	defer es.roleMu.Unlock()
	return es.role
}

func (es *electionState) setRole(r Role) {
	es.roleMu.Lock()
	es.role = r
	es.roleMu.Unlock()
}

func (es *electionState) getTerm() int64 {
	es.termMu.Lock()
	defer es.termMu.Unlock()
	return es.term
}

func (es *electionState) getVotedFor() string {
	es.votedForMu.Lock()
	defer es.votedForMu.Unlock()
	return es.votedFor
}

func (es *electionState) setVotedFor(v string) {
	es.votedForMu.Lock()
	es.votedFor = v
	es.votedForMu.Unlock()
}

func (es *electionState) getLeader() string {
	es.leaderMu.Lock()
	defer es.leaderMu.Unlock()
	return es.leaderEndpoint
}

func (es *electionState) setLeader(addr string) {
	es.leaderMu.Lock()
	es.leaderEndpoint = addr
	es.leaderMu.Unlock()
}

// aliveSet returns {self} union {peers currently marked alive}, per the
// GLOSSARY definition. self is always included.
func (es *electionState) aliveSet(self string) []string {
	es.replicasMu.Lock()
	defer es.replicasMu.Unlock()
	set := make([]string, 0, len(es.replicas)+1)
	set = append(set, self)
	for addr, r := range es.replicas {
		if r.isAlive {
			set = append(set, addr)
		}
	}
	return set
}

func quorumOf(aliveCount int) int {
	return aliveCount/2 + 1
}

func (es *electionState) markAlive(addr string) {
	es.replicasMu.Lock()
	if r, ok := es.replicas[addr]; ok {
		r.isAlive = true
		r.lastHeartbeat = time.Now()
	}
	es.replicasMu.Unlock()
}

func (es *electionState) markDead(addr string) {
	es.replicasMu.Lock()
	if r, ok := es.replicas[addr]; ok {
		r.isAlive = false
	}
	es.replicasMu.Unlock()
}

func (es *electionState) peerAddrs() []string {
	es.replicasMu.Lock()
	defer es.replicasMu.Unlock()
	addrs := make([]string, 0, len(es.replicas))
	for addr := range es.replicas {
		addrs = append(addrs, addr)
	}
	return addrs
}
