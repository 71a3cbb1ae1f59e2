package raft

// PersistedMetadata is the small, frequently-rewritten durable record
// a server keeps outside its log: current term, the vote cast this
// term, and the last known configuration (spec.md §3, §6). Each field
// is write-ordered before the protocol action it backs (a vote is
// persisted before the grant is sent; a term advance is persisted
// before it is externalized).
type PersistedMetadata struct {
	CurrentTerm      Term
	VotedFor         MemberID
	LastConfiguration Configuration
}

// MetaStore is the durable metadata contract (spec.md §6), an external
// collaborator; see pkg/raftstore for a bbolt-backed implementation.
// A successful store call must return only after the value is stable
// against a process crash.
type MetaStore interface {
	LoadTerm() (Term, error)
	StoreTerm(Term) error
	LoadVote() (MemberID, error)
	StoreVote(MemberID) error
	LoadConfiguration() (Configuration, bool, error)
	StoreConfiguration(Configuration) error
	Close() error
	Delete() error
}
