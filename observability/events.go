package observability

// Event types emitted by the runtime layers. Data keys are listed per type.
const (
	// EventStoreSend fires on every Send. Data: "action".
	EventStoreSend EventType = "store.send"

	// EventActionDrop fires when an action addressed to an inactive, absent,
	// ephemeral, or ignored case is dropped. Data: "case", "reason".
	EventActionDrop EventType = "action.drop"

	// EventCaseActivate fires when a composite transitions to a new case.
	// Data: "case", "identity".
	EventCaseActivate EventType = "case.activate"

	// EventCaseRetire fires when a case's sub-state is torn down and its
	// identity retired. Data: "case", "identity".
	EventCaseRetire EventType = "case.retire"

	// EventStaleWriteback fires when a write-back through a stale case scope
	// is discarded. Data: "case", "identity".
	EventStaleWriteback EventType = "writeback.stale"

	// EventEffectLaunch fires when an effect starts. Data: "owner", "label".
	EventEffectLaunch EventType = "effect.launch"

	// EventEffectCancel fires when an in-flight effect is cancelled.
	// Data: "owner", "label", "reason".
	EventEffectCancel EventType = "effect.cancel"

	// EventFieldChange fires after a tracked field's value is installed.
	// Data: "identity", "field", "old", "new".
	EventFieldChange EventType = "field.change"
)

// Drop reasons carried in EventActionDrop data.
const (
	DropReasonInactive  = "case_inactive"
	DropReasonUnknown   = "case_unknown"
	DropReasonEphemeral = "case_ephemeral"
	DropReasonIgnored   = "case_ignored"
	DropReasonUnhandled = "unhandled"
)
