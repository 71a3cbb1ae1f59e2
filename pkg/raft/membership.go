package raft

import (
	"context"
	"time"

	"github.com/zhipwang/atomix/pkg/metrics"
)

// DefaultPromotionLagThreshold is the default maximum difference between a
// learner's match index and the leader's last log index under which
// the learner is eligible for promotion (SPEC_FULL.md §9, resolving
// the RESERVE->PASSIVE->ACTIVE Open Question as index-based rather
// than time-based).
const DefaultPromotionLagThreshold = 100

// membershipCoordinator owns the single-uncommitted-configuration
// rule and the RESERVE -> PASSIVE -> ACTIVE promotion pipeline
// (spec.md §4.7). It only runs while its server is LEADER; leaderRole
// owns its lifetime.
type membershipCoordinator struct {
	ctx               *ServerContext
	promotionLag      Index
	stop              chan struct{}
	done              chan struct{}
}

func newMembershipCoordinator(ctx *ServerContext) *membershipCoordinator {
	m := &membershipCoordinator{
		ctx:          ctx,
		promotionLag: DefaultPromotionLagThreshold,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go m.monitor()
	return m
}

func (m *membershipCoordinator) Stop() {
	close(m.stop)
	<-m.done
}

func (m *membershipCoordinator) monitor() {
	defer close(m.done)
	ticker := time.NewTicker(m.ctx.Timeouts.HeartbeatInterval * 10)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.checkPromotions()
		}
	}
}

// checkPromotions advances any learner whose match index has closed
// to within promotionLag of the leader's last log index one step up
// the RESERVE -> PASSIVE -> ACTIVE ladder.
func (m *membershipCoordinator) checkPromotions() {
	ctx := m.ctx
	if ctx.RoleName() != RoleLeaderName {
		return
	}
	if m.hasUncommittedConfiguration() {
		return
	}
	cfg := ctx.Configuration()
	lastIndex := ctx.Log.LastIndex()
	states := ctx.MemberStateSnapshots()

	for _, mem := range cfg.Members {
		if mem.Role == RoleActive || mem.Role == RoleInactive {
			continue
		}
		state, ok := states[mem.ID]
		if !ok {
			continue
		}
		lag := lastIndex - state.MatchIndex
		if lag > m.promotionLag {
			continue
		}
		next := mem
		switch mem.Role {
		case RoleReserve:
			next.Role = RolePassive
		case RolePassive:
			next.Role = RoleActive
		}
		if next.Role == mem.Role {
			continue
		}
		updated := cfg.WithMember(next, lastIndex+1, cfg.Time+1)
		m.appendConfiguration(updated)
		metrics.PromotionsTotal.WithLabelValues(string(next.Role)).Inc()
		return // one promotion per pass keeps to one uncommitted config
	}
}

func (m *membershipCoordinator) hasUncommittedConfiguration() bool {
	cfg := m.ctx.Configuration()
	return cfg.Index > m.ctx.CommitIndex()
}

// appendConfiguration appends a CONFIGURATION entry for the given
// configuration, puts it in force at once (before it commits), and
// blocks until the entry has been committed and applied.
func (m *membershipCoordinator) appendConfiguration(cfg Configuration) *MembershipResponse {
	ctx := m.ctx
	payload := encodeConfiguration(cfg)
	entry := &LogEntry{Index: ctx.Log.LastIndex() + 1, Term: ctx.Term(), Kind: EntryConfiguration, Payload: payload}
	if err := ctx.Log.Writer().Append(entry); err != nil {
		return &MembershipResponse{Status: StatusError, Error: ErrProtocolError, Message: err.Error()}
	}
	if err := ctx.SetConfiguration(cfg); err != nil {
		return &MembershipResponse{Status: StatusError, Error: ErrProtocolError, Message: err.Error()}
	}
	if cur, ok := ctx.Role().(*leaderRole); ok {
		cur.wakeAll()
		ctx.ResetMemberStates(cfg.Members, ctx.Log.LastIndex()+1)
		for _, mem := range cfg.Members {
			if mem.ID == ctx.Local {
				continue
			}
			cur.mu.Lock()
			_, exists := cur.appenders[mem.ID]
			cur.mu.Unlock()
			if !exists {
				state := ctx.MemberStateFor(mem.ID, ctx.Log.LastIndex()+1)
				a := newAppender(ctx, mem, state)
				cur.mu.Lock()
				cur.appenders[mem.ID] = a
				cur.mu.Unlock()
			}
		}
	}
	if _, err := ctx.Sessions.Await(context.Background(), entry.Index); err != nil {
		return &MembershipResponse{Status: StatusError, Error: ErrProtocolError, Message: err.Error()}
	}
	return &MembershipResponse{Status: StatusOK, Configuration: cfg}
}

func (m *membershipCoordinator) Join(req *JoinRequest) *MembershipResponse {
	ctx := m.ctx
	if m.hasUncommittedConfiguration() {
		return &MembershipResponse{Status: StatusError, Error: ErrConfigurationError, Message: "configuration change already in progress"}
	}
	cfg := ctx.Configuration()
	if _, exists := cfg.Member(req.Member.ID); exists {
		return &MembershipResponse{Status: StatusError, Error: ErrConfigurationError, Message: "member already present"}
	}
	incoming := req.Member
	incoming.Role = RoleReserve // every new member starts at the bottom of the promotion ladder (§4.7)
	updated := cfg.WithMember(incoming, ctx.Log.LastIndex()+1, cfg.Time+1)
	metrics.MembershipChangesTotal.WithLabelValues("join").Inc()
	return m.appendConfiguration(updated)
}

func (m *membershipCoordinator) Leave(req *LeaveRequest) *MembershipResponse {
	ctx := m.ctx
	if m.hasUncommittedConfiguration() {
		return &MembershipResponse{Status: StatusError, Error: ErrConfigurationError, Message: "configuration change already in progress"}
	}
	cfg := ctx.Configuration()
	if _, exists := cfg.Member(req.Member); !exists {
		return &MembershipResponse{Status: StatusError, Error: ErrConfigurationError, Message: "member not present"}
	}
	updated := cfg.WithoutMember(req.Member, ctx.Log.LastIndex()+1, cfg.Time+1)
	metrics.MembershipChangesTotal.WithLabelValues("leave").Inc()
	resp := m.appendConfiguration(updated)
	if resp.Status == StatusOK && req.Member == ctx.Local {
		// A leader that has removed itself must step down once the
		// change is committed (spec.md §4.7 "leader step-down-on-self-leave").
		ctx.ProtocolExecutor.Post(func() {
			if ctx.RoleName() == RoleLeaderName {
				ctx.Transition(newInactiveRole(ctx))
			}
		})
	}
	return resp
}

func (m *membershipCoordinator) Reconfigure(req *ReconfigureRequest) *MembershipResponse {
	ctx := m.ctx
	if m.hasUncommittedConfiguration() {
		return &MembershipResponse{Status: StatusError, Error: ErrConfigurationError, Message: "configuration change already in progress"}
	}
	cfg := ctx.Configuration()
	updated := Configuration{Index: ctx.Log.LastIndex() + 1, Time: cfg.Time + 1, Members: req.Members}
	metrics.MembershipChangesTotal.WithLabelValues("reconfigure").Inc()
	return m.appendConfiguration(updated)
}
