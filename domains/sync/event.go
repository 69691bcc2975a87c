// Package sync defines the change-event taxonomy shared by the server-side
// emitter and the client-side invalidation router. An event is produced
// exactly once per committed mutation and consumed idempotently: routing the
// same event twice only re-marks already-stale entries.
package sync

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies one event type on the wire, formatted as
// "<resource>:<action>" (e.g. "project:updated").
type Kind string

const (
	KindProjectCreated Kind = "project:created"
	KindProjectUpdated Kind = "project:updated"
	KindProjectDeleted Kind = "project:deleted"

	KindCommentCreated Kind = "comment:created"
	KindCommentDeleted Kind = "comment:deleted"

	KindNoteCreated Kind = "note:created"
	KindNoteUpdated Kind = "note:updated"
	KindNoteDeleted Kind = "note:deleted"

	KindNpsCreated Kind = "nps:created"

	// KindPing / KindPong are the app-level heartbeat, never routed.
	KindPing Kind = "ping"
	KindPong Kind = "pong"
)

// Kinds lists every routable event kind, used to build the router table
// exhaustively.
var Kinds = []Kind{
	KindProjectCreated, KindProjectUpdated, KindProjectDeleted,
	KindCommentCreated, KindCommentDeleted,
	KindNoteCreated, KindNoteUpdated, KindNoteDeleted,
	KindNpsCreated,
}

// Resource returns the resource part of the kind ("project" for
// "project:updated").
func (k Kind) Resource() string {
	if i := strings.IndexByte(string(k), ':'); i > 0 {
		return string(k)[:i]
	}
	return string(k)
}

// ChangeEvent is a typed notification of one committed server-side mutation.
// Payload carries at least the affected resource id; child resources also
// carry their parent project id so routers can scope invalidation.
type ChangeEvent struct {
	Kind    Kind    `json:"kind"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	ID string `json:"id"`
	// ProjectID is set for project-scoped child resources (comments, notes,
	// NPS responses). Empty for project events, where ID is the project.
	ProjectID string `json:"project_id,omitempty"`
	// Data is the resource body after the mutation (nil for deletes).
	Data any `json:"data,omitempty"`
}

// Envelope is the wire form carried over the websocket. Payload is kept raw
// on the receiving side so one malformed event cannot poison the decode of
// subsequent frames.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode converts a ChangeEvent to its wire envelope.
func (e ChangeEvent) Encode() (Envelope, error) {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", e.Kind, err)
	}
	return Envelope{Event: string(e.Kind), Payload: raw}, nil
}

// Decode parses an envelope back into a ChangeEvent. It validates that the
// payload carries the identifiers the kind requires; routers drop events
// that fail here without stopping their queue.
func Decode(env Envelope) (ChangeEvent, error) {
	kind := Kind(env.Event)
	var p Payload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ChangeEvent{}, fmt.Errorf("decode %s payload: %w", kind, err)
		}
	}
	if p.ID == "" {
		return ChangeEvent{}, fmt.Errorf("event %s missing resource id", kind)
	}
	switch kind.Resource() {
	case "comment", "note", "nps":
		if p.ProjectID == "" {
			return ChangeEvent{}, fmt.Errorf("event %s missing project id", kind)
		}
	}
	return ChangeEvent{Kind: kind, Payload: p}, nil
}

// Emitter publishes change events to every connected session. Publish must
// only be called after the underlying mutation is durably committed.
// Fire-and-forget: with no connected sessions the event is dropped, and the
// clients' revalidation loop plus reconnect reconciliation cover the gap.
type Emitter interface {
	Publish(event ChangeEvent)
}

// NopEmitter discards events; used in tests and one-off tooling.
type NopEmitter struct{}

func (NopEmitter) Publish(ChangeEvent) {}
