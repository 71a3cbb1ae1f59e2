package session

import (
	"encoding/json"

	"github.com/zhipwang/atomix/pkg/raft"
)

// wireSession is Session's durable shape: Session's unexported fields
// are copied into exported ones so encoding/json carries them.
type wireSession struct {
	ID             raft.SessionID
	Name           string
	Type           string
	Member         raft.MemberID
	Timeout        int64
	LastActivity   int64
	State          State
	LastSequence   uint64
	Results        map[uint64]cachedResult
	NextEventIndex raft.EventIndex
	CompleteIndex  raft.EventIndex
	Pending        []eventBatch
}

// wireResult is cachedResult's durable shape, used by its JSON methods.
type wireResult struct {
	Value []byte
	Err   string
}

func (c cachedResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResult{Value: c.value, Err: c.err})
}

func (c *cachedResult) UnmarshalJSON(data []byte) error {
	var w wireResult
	err := json.Unmarshal(data, &w)
	c.value, c.err = w.Value, w.Err
	return err
}

type snapshotPayload struct {
	AppliedIndex raft.Index
	Sessions     []wireSession
	StateMachine []byte
}

// Snapshot serializes the session registry and defers to the
// application state machine for its own bytes (spec.md §4.4: a
// snapshot covers "the application state and every open session").
func (m *Manager) Snapshot() ([]byte, error) {
	m.mu.Lock()
	sp := snapshotPayload{AppliedIndex: m.appliedIndex}
	for _, s := range m.sessions {
		sp.Sessions = append(sp.Sessions, wireSession{
			ID: s.ID, Name: s.Name, Type: s.Type, Member: s.Member,
			Timeout: s.Timeout, LastActivity: s.LastActivity, State: s.State,
			LastSequence: s.lastSequence, Results: s.results,
			NextEventIndex: s.nextEventIndex, CompleteIndex: s.completeIndex,
			Pending: s.pending,
		})
	}
	m.mu.Unlock()

	smData, err := m.sm.Snapshot()
	if err != nil {
		return nil, err
	}
	sp.StateMachine = smData
	return json.Marshal(sp)
}

// InstallSnapshot replaces the registry and state machine wholesale
// from a received or locally-triggered snapshot (spec.md §4.4).
func (m *Manager) InstallSnapshot(snap raft.Snapshot, data []byte) error {
	var sp snapshotPayload
	if err := json.Unmarshal(data, &sp); err != nil {
		return err
	}
	if err := m.sm.Restore(sp.StateMachine); err != nil {
		return err
	}

	sessions := make(map[raft.SessionID]*Session, len(sp.Sessions))
	for _, w := range sp.Sessions {
		sessions[w.ID] = &Session{
			ID: w.ID, Name: w.Name, Type: w.Type, Member: w.Member,
			Timeout: w.Timeout, LastActivity: w.LastActivity, State: w.State,
			lastSequence: w.LastSequence, results: w.Results,
			nextEventIndex: w.NextEventIndex, completeIndex: w.CompleteIndex,
			pending: w.Pending,
		}
	}

	m.mu.Lock()
	m.sessions = sessions
	m.appliedIndex = sp.AppliedIndex
	m.mu.Unlock()
	return nil
}
