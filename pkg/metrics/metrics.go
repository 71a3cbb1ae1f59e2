package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Role/term metrics
	IsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_is_leader",
			Help: "Whether this node is the current Raft leader (1 = leader, 0 = not)",
		},
	)

	CurrentTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_current_term",
			Help: "The node's current term",
		},
	)

	MembersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raft_members_total",
			Help: "Total number of configuration members by role",
		},
		[]string{"role"},
	)

	// Log/commit metrics
	LastLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_last_log_index",
			Help: "Index of the last entry in the local log",
		},
	)

	CommitIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_commit_index",
			Help: "Highest committed log index",
		},
	)

	AppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_applied_index",
			Help: "Highest log index applied to the state machine",
		},
	)

	// Session/command metrics
	SessionsOpenTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_sessions_open_total",
			Help: "Total number of currently open client sessions",
		},
	)

	CommandsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raft_commands_applied_total",
			Help: "Total number of commands applied to the state machine",
		},
	)

	CommandLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raft_command_latency_seconds",
			Help:    "Time to apply a command to the state machine",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raft_query_latency_seconds",
			Help:    "Time to service a read, by consistency mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"consistency"},
	)

	EventBacklogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_event_backlog_size",
			Help: "Total number of unacknowledged published events across all sessions",
		},
	)

	// Election metrics
	ElectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raft_elections_total",
			Help: "Total number of elections this node has started",
		},
	)

	// Replication metrics
	AppendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raft_append_latency_seconds",
			Help:    "AppendEntries round-trip latency to a member",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"member"},
	)

	AppendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raft_append_failures_total",
			Help: "Total number of failed AppendEntries RPCs by member",
		},
		[]string{"member"},
	)

	SnapshotTransfersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raft_snapshot_transfers_total",
			Help: "Total number of snapshot transfers sent to members",
		},
	)

	// Membership metrics
	MembershipChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raft_membership_changes_total",
			Help: "Total number of committed configuration changes by kind",
		},
		[]string{"kind"},
	)

	PromotionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raft_promotions_total",
			Help: "Total number of learner promotions by target role",
		},
		[]string{"to_role"},
	)
)

func init() {
	prometheus.MustRegister(
		IsLeader,
		CurrentTerm,
		MembersTotal,
		LastLogIndex,
		CommitIndex,
		AppliedIndex,
		SessionsOpenTotal,
		CommandsAppliedTotal,
		CommandLatency,
		QueryLatency,
		EventBacklogSize,
		ElectionsTotal,
		AppendLatency,
		AppendFailuresTotal,
		SnapshotTransfersTotal,
		MembershipChangesTotal,
		PromotionsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
