package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhipwang/atomix/pkg/raft"
)

type echoMachine struct {
	applied map[raft.Index][]byte
}

func newEchoMachine() *echoMachine {
	return &echoMachine{applied: make(map[raft.Index][]byte)}
}

func (e *echoMachine) Apply(index raft.Index, payload []byte) ([]byte, error) {
	e.applied[index] = payload
	return payload, nil
}

func (e *echoMachine) Query(payload []byte) ([]byte, error) { return payload, nil }

func (e *echoMachine) Snapshot() ([]byte, error) { return json.Marshal(e.applied) }

func (e *echoMachine) Restore(data []byte) error {
	e.applied = make(map[raft.Index][]byte)
	return json.Unmarshal(data, &e.applied)
}

func newTestManager(t *testing.T) (*Manager, *raft.Executor) {
	t.Helper()
	exec := raft.NewExecutor(64)
	t.Cleanup(exec.Stop)
	return NewManager(newEchoMachine(), exec), exec
}

func applySync(t *testing.T, m *Manager, entry *raft.LogEntry, leader bool, now int64) raft.EntryResult {
	t.Helper()
	m.Apply(entry, leader, now)
	res, err := m.Await(context.Background(), entry.Index)
	require.NoError(t, err)
	return res
}

func TestOpenSessionThenCommand(t *testing.T) {
	m, _ := newTestManager(t)

	open := &raft.LogEntry{Index: 1, Term: 1, Kind: raft.EntryOpenSession, Payload: mustJSON(t, &raft.OpenSessionRequest{Name: "client-1", Timeout: int64(time.Minute)})}
	applySync(t, m, open, true, 100)

	cmd := &raft.LogEntry{Index: 2, Term: 1, Kind: raft.EntryCommand, Payload: mustJSON(t, &raft.CommandRequest{Session: 1, Sequence: 1, Payload: []byte("hello")})}
	res := applySync(t, m, cmd, true, 101)
	require.NoError(t, res.Err)
	require.Equal(t, []byte("hello"), res.Result)
}

func TestCommandDedupOnResend(t *testing.T) {
	m, _ := newTestManager(t)
	open := &raft.LogEntry{Index: 1, Term: 1, Kind: raft.EntryOpenSession, Payload: mustJSON(t, &raft.OpenSessionRequest{Name: "c"})}
	applySync(t, m, open, true, 0)

	first := &raft.LogEntry{Index: 2, Term: 1, Kind: raft.EntryCommand, Payload: mustJSON(t, &raft.CommandRequest{Session: 1, Sequence: 1, Payload: []byte("a")})}
	res1 := applySync(t, m, first, true, 0)

	// A resend of the same sequence at a different log index must
	// return the cached result, not re-apply (linearizability).
	resend := &raft.LogEntry{Index: 3, Term: 1, Kind: raft.EntryCommand, Payload: mustJSON(t, &raft.CommandRequest{Session: 1, Sequence: 1, Payload: []byte("a")})}
	res2 := applySync(t, m, resend, true, 0)

	require.Equal(t, res1.Result, res2.Result)
}

func TestKeepAliveUnknownSession(t *testing.T) {
	m, _ := newTestManager(t)
	ka := &raft.LogEntry{Index: 1, Term: 1, Kind: raft.EntryKeepAlive, Payload: mustJSON(t, &raft.KeepAliveRequest{Session: 99})}
	res := applySync(t, m, ka, true, 0)
	require.Error(t, res.Err)
	require.Equal(t, raft.ErrUnknownSession, raft.KindOf(res.Err))
}

func TestCloseSessionRemovesRegistry(t *testing.T) {
	m, _ := newTestManager(t)
	open := &raft.LogEntry{Index: 1, Term: 1, Kind: raft.EntryOpenSession, Payload: mustJSON(t, &raft.OpenSessionRequest{Name: "c"})}
	applySync(t, m, open, true, 0)

	close_ := &raft.LogEntry{Index: 2, Term: 1, Kind: raft.EntryCloseSession, Payload: mustJSON(t, &raft.CloseSessionRequest{Session: 1})}
	applySync(t, m, close_, true, 0)

	_, _, ok := m.SessionProgress(1)
	require.False(t, ok)
}

func TestQueryGatesOnMinIndex(t *testing.T) {
	m, _ := newTestManager(t)
	open := &raft.LogEntry{Index: 1, Term: 1, Kind: raft.EntryOpenSession, Payload: mustJSON(t, &raft.OpenSessionRequest{Name: "c"})}
	applySync(t, m, open, true, 0)

	_, err := m.Query(context.Background(), &raft.QueryRequest{Session: 1, MinIndex: 5})
	require.Error(t, err)

	res, err := m.Query(context.Background(), &raft.QueryRequest{Session: 1, MinIndex: 1, Payload: []byte("q")})
	require.NoError(t, err)
	require.Equal(t, []byte("q"), res.Result)
}

func TestExpireClosesStaleSession(t *testing.T) {
	m, exec := newTestManager(t)
	open := &raft.LogEntry{Index: 1, Term: 1, Kind: raft.EntryOpenSession, Payload: mustJSON(t, &raft.OpenSessionRequest{Name: "c", Timeout: 10})}
	applySync(t, m, open, true, 0)

	m.Expire(1000)
	exec.PostSync(func() {}) // barrier: wait for the Expire closure to run

	_, _, ok := m.SessionProgress(1)
	require.False(t, ok)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
