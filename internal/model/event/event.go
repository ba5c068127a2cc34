package event

import "time"

// Type names a change in the conversation store.
type Type string

const (
	ConversationSaved   Type = "conversation.saved"
	ConversationRenamed Type = "conversation.renamed"
	ConversationDeleted Type = "conversation.deleted"
)

// Event is pushed to subscribers whenever the stored conversation list changes.
type Event struct {
	Type Type      `json:"type"`
	ID   string    `json:"id"`
	Name string    `json:"name,omitempty"`
	At   time.Time `json:"at"`
}

// Publisher fans events out to subscribers.
type Publisher interface {
	Publish(Event)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
