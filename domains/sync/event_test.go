package sync

import (
	"encoding/json"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	event := ChangeEvent{
		Kind: KindCommentCreated,
		Payload: Payload{
			ID:        "c1",
			ProjectID: "p1",
			Data:      map[string]any{"body": "looks good"},
		},
	}

	env, err := event.Encode()
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	if env.Event != "comment:created" {
		t.Fatalf("Event = %q, want comment:created", env.Event)
	}

	decoded, err := Decode(env)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if decoded.Kind != KindCommentCreated {
		t.Errorf("Kind = %q, want %q", decoded.Kind, KindCommentCreated)
	}
	if decoded.Payload.ID != "c1" || decoded.Payload.ProjectID != "p1" {
		t.Errorf("Payload = %+v", decoded.Payload)
	}
}

func TestDecode_RejectsMissingResourceID(t *testing.T) {
	env := Envelope{Event: string(KindProjectUpdated), Payload: json.RawMessage(`{}`)}
	if _, err := Decode(env); err == nil {
		t.Fatal("Decode() should reject a payload without id")
	}
}

func TestDecode_RejectsChildEventWithoutProjectID(t *testing.T) {
	for _, kind := range []Kind{KindCommentCreated, KindNoteUpdated, KindNpsCreated} {
		env := Envelope{Event: string(kind), Payload: json.RawMessage(`{"id":"x1"}`)}
		if _, err := Decode(env); err == nil {
			t.Errorf("Decode(%s) should require project_id", kind)
		}
	}

	// Project events carry the project as the resource id itself.
	env := Envelope{Event: string(KindProjectDeleted), Payload: json.RawMessage(`{"id":"p1"}`)}
	if _, err := Decode(env); err != nil {
		t.Errorf("Decode(project:deleted) unexpected error: %v", err)
	}
}

func TestDecode_RejectsMalformedPayload(t *testing.T) {
	env := Envelope{Event: string(KindProjectCreated), Payload: json.RawMessage(`not-json`)}
	if _, err := Decode(env); err == nil {
		t.Fatal("Decode() should reject malformed JSON")
	}
}

func TestKindResource(t *testing.T) {
	cases := map[Kind]string{
		KindProjectCreated: "project",
		KindCommentDeleted: "comment",
		KindNoteUpdated:    "note",
		KindNpsCreated:     "nps",
		KindPing:           "ping",
	}
	for kind, want := range cases {
		if got := kind.Resource(); got != want {
			t.Errorf("%s.Resource() = %q, want %q", kind, got, want)
		}
	}
}

func TestKinds_AllDecodable(t *testing.T) {
	for _, kind := range Kinds {
		payload := `{"id":"x1","project_id":"p1"}`
		env := Envelope{Event: string(kind), Payload: json.RawMessage(payload)}
		if _, err := Decode(env); err != nil {
			t.Errorf("Decode(%s) unexpected error: %v", kind, err)
		}
	}
}
