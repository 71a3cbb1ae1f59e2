// Package kvstore is the reference raft.StateMachine cmd/raftd ships
// so the server binary has something to replicate: a flat string key/
// value map driven by JSON-encoded commands. spec.md §1 leaves the
// application state machine out of scope; this is the concrete
// instance a deployed raftd node actually runs, in the same spirit as
// the teacher shipping WarrenFSM behind the generic raft.FSM contract
// (pkg/manager/fsm.go's Command{Op, Data} dispatch, generalized here
// from cluster objects to key/value pairs).
package kvstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zhipwang/atomix/pkg/raft"
)

// Command is one mutation submitted through a client session
// (raft.CommandRequest.Payload is the JSON encoding of one of these).
type Command struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
}

const (
	OpSet    = "set"
	OpDelete = "delete"
)

// Query is a read-only lookup (raft.QueryRequest.Payload).
type Query struct {
	Key string `json:"key"`
}

// Store is a key/value raft.StateMachine: Apply mutates, Query reads
// without advancing the log, Snapshot/Restore (de)serialize the whole
// map for §4.4 snapshot cutover.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

var _ raft.StateMachine = (*Store)(nil)

func (s *Store) Apply(index raft.Index, payload []byte) ([]byte, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("kvstore: decode command: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Op {
	case OpSet:
		s.data[cmd.Key] = cmd.Value
		return cmd.Value, nil
	case OpDelete:
		delete(s.data, cmd.Key)
		return nil, nil
	default:
		return nil, fmt.Errorf("kvstore: unknown op %q", cmd.Op)
	}
}

func (s *Store) Query(payload []byte) ([]byte, error) {
	var q Query
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("kvstore: decode query: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[q.Key]
	if !ok {
		return nil, fmt.Errorf("kvstore: key %q not found", q.Key)
	}
	return v, nil
}

func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.data)
}

func (s *Store) Restore(data []byte) error {
	restored := make(map[string][]byte)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &restored); err != nil {
			return fmt.Errorf("kvstore: restore: %w", err)
		}
	}
	s.mu.Lock()
	s.data = restored
	s.mu.Unlock()
	return nil
}
