package metrics

import "time"

// Snapshot is the subset of a raft server's state Collector samples on
// an interval, expressed in primitive types so this package never
// imports pkg/raft (pkg/raft imports this package to push per-event
// metrics, so the dependency can only run one way).
type Snapshot struct {
	Term         uint64
	IsLeader     bool
	CommitIndex  uint64
	LastLogIndex uint64
	MemberCounts map[string]int
}

// Source is implemented by *raft.ServerContext.
type Source interface {
	MetricsSnapshot() Snapshot
}

// Collector periodically samples a Source's observable state (term,
// leadership, log/commit position, member roster) into the package's
// Prometheus gauges. Replication and session metrics are pushed at the
// source (appender.go, membership.go, pkg/raft/session/manager.go)
// since they're one-shot events rather than state to sample; this
// collector only covers the things that are cheapest to read as a
// snapshot.
type Collector struct {
	source Source
	stopCh chan struct{}
}

func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.source.MetricsSnapshot()

	CurrentTerm.Set(float64(snap.Term))
	if snap.IsLeader {
		IsLeader.Set(1)
	} else {
		IsLeader.Set(0)
	}
	LastLogIndex.Set(float64(snap.LastLogIndex))
	CommitIndex.Set(float64(snap.CommitIndex))

	for role, count := range snap.MemberCounts {
		MembersTotal.WithLabelValues(role).Set(float64(count))
	}
}
