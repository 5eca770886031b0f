// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatevent

import (
	"testing"
)

func TestDecodeVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   string
		data    string
		kind    Kind
		session string
		check   func(t *testing.T, event Event)
	}{
		{
			name:    "start",
			event:   "start",
			data:    `{"session_id":"s1"}`,
			kind:    KindStart,
			session: "s1",
		},
		{
			name:    "user echo",
			event:   "user_message",
			data:    `{"message":{"content":"hi","session_id":"s2"}}`,
			kind:    KindUserEcho,
			session: "s2",
			check: func(t *testing.T, event Event) {
				if content := event.(UserEcho).Content; content != "hi" {
					t.Errorf("Content = %q, want hi", content)
				}
			},
		},
		{
			name:  "responding",
			event: "responding",
			data:  `{"delta":"Hel","run_id":"r1"}`,
			kind:  KindResponding,
			check: func(t *testing.T, event Event) {
				responding := event.(Responding)
				if responding.Delta != "Hel" {
					t.Errorf("Delta = %q, want Hel", responding.Delta)
				}
				if responding.RunID != "r1" {
					t.Errorf("RunID = %q, want r1", responding.RunID)
				}
			},
		},
		{
			name:  "empty delta",
			event: "responding",
			data:  `{"delta":""}`,
			kind:  KindResponding,
			check: func(t *testing.T, event Event) {
				if delta := event.(Responding).Delta; delta != "" {
					t.Errorf("Delta = %q, want empty", delta)
				}
			},
		},
		{
			name:    "end",
			event:   "end",
			data:    `{"agent_message":{"content":"Hello, world","id":"r9"},"session_id":"s1"}`,
			kind:    KindEnd,
			session: "s1",
			check: func(t *testing.T, event Event) {
				end := event.(End)
				if end.FinalContent != "Hello, world" {
					t.Errorf("FinalContent = %q", end.FinalContent)
				}
				if end.RunID != "r9" {
					t.Errorf("RunID = %q, want agent_message.id fallback r9", end.RunID)
				}
			},
		},
		{
			name:  "end without agent message",
			event: "end",
			data:  `{}`,
			kind:  KindEnd,
			check: func(t *testing.T, event Event) {
				if final := event.(End).FinalContent; final != "" {
					t.Errorf("FinalContent = %q, want empty", final)
				}
			},
		},
		{
			name:  "error",
			event: "error",
			data:  `{"error":"model overloaded"}`,
			kind:  KindError,
			check: func(t *testing.T, event Event) {
				if message := event.(Error).Message; message != "model overloaded" {
					t.Errorf("Message = %q", message)
				}
			},
		},
		{
			name:  "structured error",
			event: "error",
			data:  `{"error":{"code":429}}`,
			kind:  KindError,
			check: func(t *testing.T, event Event) {
				if message := event.(Error).Message; message != `{"code":429}` {
					t.Errorf("Message = %q, want JSON text", message)
				}
			},
		},
		{
			name:  "error without text",
			event: "error",
			data:  `{}`,
			kind:  KindError,
			check: func(t *testing.T, event Event) {
				if message := event.(Error).Message; message != unknownErrorMessage {
					t.Errorf("Message = %q, want %q", message, unknownErrorMessage)
				}
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			event, ok := Decode(test.event, test.data)
			if !ok {
				t.Fatalf("Decode(%q) not recognized", test.event)
			}
			if event.Kind() != test.kind {
				t.Errorf("Kind = %q, want %q", event.Kind(), test.kind)
			}
			if session := event.Metadata().SessionID; session != test.session {
				t.Errorf("SessionID = %q, want %q", session, test.session)
			}
			if test.check != nil {
				test.check(t, event)
			}
		})
	}
}

func TestDecodeUnknownEventDropped(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"ping", "", "Responding", "message"} {
		if event, ok := Decode(name, `{"delta":"x"}`); ok {
			t.Errorf("Decode(%q) = %#v, want dropped", name, event)
		}
	}
}

func TestDecodeMalformedDataFallsBackToDelta(t *testing.T) {
	t.Parallel()

	event, ok := Decode("responding", "not-json")
	if !ok {
		t.Fatal("malformed responding frame was dropped")
	}
	responding, isResponding := event.(Responding)
	if !isResponding {
		t.Fatalf("event = %T, want Responding", event)
	}
	if responding.Delta != "not-json" {
		t.Errorf("Delta = %q, want raw text", responding.Delta)
	}
	if responding.Raw != nil {
		t.Errorf("Raw = %s, want nil for non-JSON payload", responding.Raw)
	}

	// A JSON scalar is not an object either.
	event, _ = Decode("responding", `"quoted"`)
	if delta := event.(Responding).Delta; delta != `"quoted"` {
		t.Errorf("scalar Delta = %q, want raw text", delta)
	}

	// A malformed error frame keeps its text as the message.
	event, _ = Decode("error", "gateway timeout")
	if message := event.(Error).Message; message != "gateway timeout" {
		t.Errorf("malformed error Message = %q", message)
	}
}

func TestDecodeSideChannel(t *testing.T) {
	t.Parallel()

	data := `{
		"delta": "x",
		"extra_data": {"reasoning_steps": [{"title": "search", "confidence": 0.8}], "references": [{"name": "doc.md"}]},
		"images": [{"url": "https://example.test/a.png"}],
		"videos": null,
		"audio": "not-a-list",
		"response_audio": {"transcript": "hel", "id": "a1"}
	}`
	event, ok := Decode("responding", data)
	if !ok {
		t.Fatal("not recognized")
	}
	meta := event.Metadata()

	if meta.ExtraData == nil || len(meta.ExtraData.ReasoningSteps) != 1 || meta.ExtraData.ReasoningSteps[0].Title != "search" {
		t.Errorf("ExtraData = %#v", meta.ExtraData)
	}
	if meta.ExtraData != nil && (len(meta.ExtraData.References) != 1 || meta.ExtraData.References[0].Name != "doc.md") {
		t.Errorf("References = %#v", meta.ExtraData.References)
	}
	if len(meta.Images) != 1 || meta.Images[0].URL != "https://example.test/a.png" {
		t.Errorf("Images = %#v", meta.Images)
	}
	if meta.Videos != nil {
		t.Errorf("Videos = %#v, want nil for null", meta.Videos)
	}
	if meta.Audio != nil {
		t.Errorf("Audio = %#v, want nil for wrong shape", meta.Audio)
	}
	if meta.ResponseAudio == nil || meta.ResponseAudio.Transcript != "hel" {
		t.Errorf("ResponseAudio = %#v", meta.ResponseAudio)
	}
	if !meta.HasSideChannel() {
		t.Error("HasSideChannel = false")
	}
	if delta := event.(Responding).Delta; delta != "x" {
		t.Errorf("Delta = %q, want x despite bad sibling fields", delta)
	}
}

func TestKindIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[Kind]bool{
		KindStart:      false,
		KindUserEcho:   false,
		KindResponding: false,
		KindEnd:        true,
		KindError:      true,
	}
	for kind, want := range terminal {
		if got := kind.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", kind, got, want)
		}
	}
}
