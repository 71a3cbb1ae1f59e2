/*
Package log provides structured logging for atomix using zerolog.

The log package wraps zerolog to give every component a JSON- or
console-formatted logger with level filtering, timestamps, and a
handful of child-logger constructors for the fields that recur across
this module's packages.

# Initialization

Init must run once at process startup, normally from a CLI's
cobra.OnInitialize hook (see cmd/raftd), before any package logs:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Until Init runs, log.Logger is zerolog's zero value, which has no
output writer: events logged before Init (rare, and generally a
startup-ordering bug) are not written anywhere.

# Child loggers

WithComponent, WithNodeID, WithTerm, and WithRole each return a derived
zerolog.Logger with one additional field set, for call sites that want
a logger scoped to a subsystem, node, Raft term, or role without
repeating that field on every log line:

	logger := log.WithNodeID(cfg.NodeID).With().Str("component", "raft").Logger()

pkg/raft itself never logs through the package-level log.Logger
directly — ServerContext carries an explicit zerolog.Logger field
(passed in by whatever constructs it, normally one of these child
loggers) so the core consensus engine has no hidden dependency on
global logging state and can be embedded in a process that configures
logging however it likes.

# Levels

DebugLevel, InfoLevel, WarnLevel, and ErrorLevel map directly onto
zerolog's levels; an unrecognized Level falls back to InfoLevel rather
than erroring, since a bad config value shouldn't prevent a node from
starting.
*/
package log
