package graph

// Reserved names.
const (
	// InterruptKey is the versions_seen entry that records the channel
	// versions observed when the run last paused before a step.
	InterruptKey = "__interrupt__"
	// InterruptAfterKey is the same record for pauses after a step.
	InterruptAfterKey = "__interrupt_after__"
	// End is the routing key that selects no node.
	End = "__end__"
	// InterruptAll in an interrupt node set matches every node.
	InterruptAll = "*"
)

// Channel conventions for static edges.
const (
	ChannelBranchPrefix = "branch:to:"
)

// Checkpoint Metadata.Source enumeration values
const (
	SourceInput     = "input"
	SourceLoop      = "loop"
	SourceInterrupt = "interrupt"
	SourceUpdate    = "update"
)

// Task kinds.
const (
	TaskKindPull = "pull"
	TaskKindPush = "push"
)

const (
	CheckpointVersion     = 1
	DefaultRecursionLimit = 25

	defaultStreamBufferSize = 256
)
