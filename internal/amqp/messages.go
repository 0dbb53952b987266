package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// EntryAction is the kind of committed change an EntryEvent carries.
type EntryAction string

const (
	ActionUpsert EntryAction = "upsert"
	ActionDelete EntryAction = "delete"
)

// EntryEvent describes one committed change to the entry store. Upserts
// carry the full transaction so consumers never read back from the store.
type EntryEvent struct {
	Action    EntryAction       `json:"action"`
	EntryID   string            `json:"entryId"`
	Entry     *core.Transaction `json:"entry,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewUpsertEvent(t core.Transaction) EntryEvent {
	return EntryEvent{Action: ActionUpsert, EntryID: t.ID, Entry: &t, Timestamp: time.Now().UTC()}
}

func NewDeleteEvent(id string) EntryEvent {
	return EntryEvent{Action: ActionDelete, EntryID: id, Timestamp: time.Now().UTC()}
}

// ToJSON converts the message to JSON bytes
func (e EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EntryEventFromJSON decodes and sanity-checks a message body.
func EntryEventFromJSON(data []byte) (EntryEvent, error) {
	var e EntryEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return EntryEvent{}, err
	}
	if e.EntryID == "" {
		return EntryEvent{}, fmt.Errorf("entry event without id")
	}
	switch e.Action {
	case ActionDelete:
	case ActionUpsert:
		if e.Entry == nil {
			return EntryEvent{}, fmt.Errorf("upsert event %s without entry", e.EntryID)
		}
	default:
		return EntryEvent{}, fmt.Errorf("unknown entry action %q", e.Action)
	}
	return e, nil
}
