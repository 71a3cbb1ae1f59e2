/*
Package metrics defines and registers the Prometheus metrics exposed by
a raftd node: term/leadership, log/commit position, member roster,
session counts, and command/query latency. Metrics are pushed at the
source (pkg/raft/session, appender loop) or sampled by Collector, and
exposed over HTTP via Handler() for a Prometheus server to scrape.

# Metrics

Gauges:

  - raft_is_leader: 1 if this node is the current leader, else 0
  - raft_current_term: this node's current term
  - raft_members_total{role}: configuration members by role
  - raft_last_log_index: index of the last local log entry
  - raft_commit_index: highest committed log index
  - raft_applied_index: highest log index applied to the state machine
  - raft_sessions_open_total: currently open client sessions

Counters:

  - raft_commands_applied_total: commands applied to the state machine

Histograms:

  - raft_command_latency_seconds: time to apply a committed command
  - raft_query_latency_seconds{consistency}: time to service a read

# Usage

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.CommandLatency)

Collector polls a *raft.ServerContext on an interval for the metrics
that are cheapest to sample as state (term, leadership, log/commit
position, member roster) rather than push as one-shot events.
*/
package metrics
