package raft

import "github.com/zhipwang/atomix/pkg/metrics"

// MetricsSnapshot implements metrics.Source, giving the collector a
// primitive-typed view of this server's observable state without
// pkg/metrics needing to import pkg/raft.
func (sc *ServerContext) MetricsSnapshot() metrics.Snapshot {
	counts := make(map[string]int)
	for _, m := range sc.Configuration().Members {
		counts[string(m.Role)]++
	}
	return metrics.Snapshot{
		Term:         uint64(sc.Term()),
		IsLeader:     sc.RoleName() == RoleLeaderName,
		CommitIndex:  uint64(sc.CommitIndex()),
		LastLogIndex: uint64(sc.Log.LastIndex()),
		MemberCounts: counts,
	}
}
