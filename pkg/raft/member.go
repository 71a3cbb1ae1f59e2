package raft

import "sync"

// MemberRole is a member's standing in the cluster (spec.md §3, §4.2).
// Active members vote. Passive members are learners that receive every
// committed entry. Reserve members receive only heartbeats/config and
// are promotion candidates. Inactive members are placeholders.
type MemberRole string

const (
	RoleActive   MemberRole = "ACTIVE"
	RolePassive  MemberRole = "PASSIVE"
	RoleReserve  MemberRole = "RESERVE"
	RoleInactive MemberRole = "INACTIVE"
)

// Member is one entry of a Configuration.
type Member struct {
	ID      MemberID
	Role    MemberRole
	Address string
}

// Configuration is the cluster's member set at a point in the log
// (spec.md §3). A server always operates under its latest known
// configuration, committed or not; at most one uncommitted
// configuration may exist at a time (enforced by the membership
// coordinator, not by this type).
type Configuration struct {
	Index   Index
	Time    uint64
	Members []Member
}

// Voters returns the ACTIVE members eligible to participate in a
// quorum.
func (c Configuration) Voters() []Member {
	voters := make([]Member, 0, len(c.Members))
	for _, m := range c.Members {
		if m.Role == RoleActive {
			voters = append(voters, m)
		}
	}
	return voters
}

// Member looks up a member by id.
func (c Configuration) Member(id MemberID) (Member, bool) {
	for _, m := range c.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// QuorumSize returns the minimum number of active voters required for
// a majority under this configuration.
func (c Configuration) QuorumSize() int {
	return len(c.Voters())/2 + 1
}

// WithMember returns a copy of the configuration with member replaced
// or appended (matched by ID), at the given index/time.
func (c Configuration) WithMember(m Member, index Index, time uint64) Configuration {
	members := make([]Member, 0, len(c.Members)+1)
	replaced := false
	for _, existing := range c.Members {
		if existing.ID == m.ID {
			members = append(members, m)
			replaced = true
			continue
		}
		members = append(members, existing)
	}
	if !replaced {
		members = append(members, m)
	}
	return Configuration{Index: index, Time: time, Members: members}
}

// WithoutMember returns a copy of the configuration with the named
// member removed.
func (c Configuration) WithoutMember(id MemberID, index Index, time uint64) Configuration {
	members := make([]Member, 0, len(c.Members))
	for _, existing := range c.Members {
		if existing.ID == id {
			continue
		}
		members = append(members, existing)
	}
	return Configuration{Index: index, Time: time, Members: members}
}

// MemberState is the leader-side bookkeeping kept for every non-self
// member (spec.md §3 "PerMember").
type MemberState struct {
	mu sync.Mutex

	ID                 MemberID
	MatchIndex         Index
	NextIndex          Index
	NextSnapshotIndex  Index
	NextSnapshotOffset int64
	InFlight           int
	FailureCount       int
	Available          bool
	ConfigIndex        Index
	ConfigTerm         Term
}

// NewMemberState seeds bookkeeping for a member freshly added to the
// leader's replication set, with NextIndex starting at the leader's
// last log index + 1.
func NewMemberState(id MemberID, nextIndex Index) *MemberState {
	return &MemberState{ID: id, NextIndex: nextIndex, Available: true}
}

func (m *MemberState) RecordSuccess(lastLogIndex Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MatchIndex = lastLogIndex
	m.NextIndex = lastLogIndex + 1
	m.FailureCount = 0
	m.Available = true
}

// RecordMismatch applies the follower-supplied hint on a log-matching
// rejection (§4.3 step 4).
func (m *MemberState) RecordMismatch(hint Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MatchIndex = hint
	next := hint + 1
	if next < 1 {
		next = 1
	}
	m.NextIndex = next
}

func (m *MemberState) RecordFailure() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailureCount++
	m.Available = false
	return m.FailureCount
}

func (m *MemberState) ResetSnapshotCursor() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NextSnapshotIndex = 0
	m.NextSnapshotOffset = 0
}

func (m *MemberState) Snapshot() MemberState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemberState{
		ID:                 m.ID,
		MatchIndex:         m.MatchIndex,
		NextIndex:          m.NextIndex,
		NextSnapshotIndex:  m.NextSnapshotIndex,
		NextSnapshotOffset: m.NextSnapshotOffset,
		InFlight:           m.InFlight,
		FailureCount:       m.FailureCount,
		Available:          m.Available,
		ConfigIndex:        m.ConfigIndex,
		ConfigTerm:         m.ConfigTerm,
	}
}
