package stock

import (
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	KindRecordUpdated  Kind = "record-updated"
	KindRecordCreated  Kind = "record-created"
	KindRecordDeleted  Kind = "record-deleted"
	KindFullResync     Kind = "full-resync"
	KindArrivalApplied Kind = "arrival-applied"
	KindImportApplied  Kind = "import-applied"

	// keep-alive, never surfaced as sync events
	KindPing Kind = "ping"
	KindPong Kind = "pong"
)

var syncKinds = map[Kind]bool{
	KindRecordUpdated:  true,
	KindRecordCreated:  true,
	KindRecordDeleted:  true,
	KindFullResync:     true,
	KindArrivalApplied: true,
	KindImportApplied:  true,
}

// IsSync reports whether k is one of the broadcastable mutation kinds.
func (k Kind) IsSync() bool { return syncKinds[k] }

// Event is the wire envelope relayed between clients.
// Timestamp is for display/audit only, never for ordering.
type Event struct {
	Type      Kind            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// ---- payloads ----

type DeletedPayload struct {
	ID string `json:"id"`
}

type ImportPayload struct {
	Count int `json:"count"`
}

func newEvent(kind Kind, payload any, now time.Time) Event {
	b, err := json.Marshal(payload)
	if err != nil {
		// payloads are plain structs; this only fires on programmer error
		panic(fmt.Sprintf("stock: marshal %s payload: %v", kind, err))
	}
	return Event{Type: kind, Payload: b, Timestamp: now.UTC().Format(time.RFC3339Nano)}
}

func RecordCreated(r Record, now time.Time) Event { return newEvent(KindRecordCreated, r, now) }
func RecordUpdated(r Record, now time.Time) Event { return newEvent(KindRecordUpdated, r, now) }

func RecordDeleted(id string, now time.Time) Event {
	return newEvent(KindRecordDeleted, DeletedPayload{ID: id}, now)
}

func FullResync(records []Record, now time.Time) Event {
	if records == nil {
		records = []Record{}
	}
	return newEvent(KindFullResync, records, now)
}

func ArrivalApplied(records []Record, now time.Time) Event {
	return newEvent(KindArrivalApplied, records, now)
}

func ImportApplied(count int, now time.Time) Event {
	return newEvent(KindImportApplied, ImportPayload{Count: count}, now)
}

// Ping and Pong are the keep-alive frames.
func Ping() Event { return Event{Type: KindPing} }
func Pong() Event { return Event{Type: KindPong} }

// Decode parses one wire frame. Keep-alive frames decode fine; callers check Type.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return ev, nil
}

// RecordID returns the id a single-record event refers to, or "".
func (ev Event) RecordID() string {
	switch ev.Type {
	case KindRecordCreated, KindRecordUpdated, KindRecordDeleted:
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err == nil {
			return p.ID
		}
	}
	return ""
}

// Records unwraps payloads that carry records (single or list).
func (ev Event) Records() ([]Record, error) {
	switch ev.Type {
	case KindRecordCreated, KindRecordUpdated:
		var r Record
		if err := json.Unmarshal(ev.Payload, &r); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return []Record{r}, nil
	case KindFullResync, KindArrivalApplied:
		var rs []Record
		if err := json.Unmarshal(ev.Payload, &rs); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return rs, nil
	}
	return nil, nil
}
