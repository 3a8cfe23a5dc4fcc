package events

// Event is a lifecycle notification published on the Bus
type Event interface {
	EventType() string
}

// Event type names
const (
	TypeInvalidationStarted  = "tokens_invalidation_started"
	TypeInvalidationFinished = "tokens_invalidation_finished"
	TypeWipeStarted          = "remote_wipe_started"
	TypeWipeFinished         = "remote_wipe_finished"
)

// InvalidationStarted is published before a bulk revocation of all of
// a user's tokens begins.
type InvalidationStarted struct {
	UID string
}

func (InvalidationStarted) EventType() string { return TypeInvalidationStarted }

// InvalidationFinished is published after a bulk revocation completes
type InvalidationFinished struct {
	UID string
}

func (InvalidationFinished) EventType() string { return TypeInvalidationFinished }

// WipeStarted is published when a device acknowledges a wipe request
type WipeStarted struct {
	UID     string
	TokenID string
}

func (WipeStarted) EventType() string { return TypeWipeStarted }

// WipeFinished is published when a device reports a completed wipe
type WipeFinished struct {
	UID     string
	TokenID string
}

func (WipeFinished) EventType() string { return TypeWipeFinished }
