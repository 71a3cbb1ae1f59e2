package raft

// inactiveRole is the placeholder role a server starts in before it
// has joined a configuration (spec.md §4.2 INACTIVE: "the member is
// not yet, or no longer, part of any configuration"). It answers
// everything with the shared fallback; a Join response or a
// configuration loaded from storage is what moves a server out of it.
type inactiveRole struct {
	roleBase
}

var _ Role = (*inactiveRole)(nil)

func newInactiveRole(ctx *ServerContext) *inactiveRole {
	return &inactiveRole{roleBase: newRoleBase(ctx, RoleInactiveName)}
}
