// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatevent

import (
	"bytes"
	"encoding/json"

	"github.com/bytedance/sonic"
)

// unknownErrorMessage replaces an error event that carried no text.
const unknownErrorMessage = "unknown error"

// payload is a JSON object decoded field by field. Keeping the values
// raw lets one malformed field degrade to "absent" instead of failing
// the whole event.
type payload struct {
	fields map[string]json.RawMessage
	// text is the original frame data.
	text  string
	valid bool
}

// Decode turns one frame into an event. It returns false for event
// names the client does not understand; such frames are dropped.
//
// Data that is not a JSON object is treated as {"delta": data}, so a
// malformed "responding" frame still contributes its raw text.
// Decode is pure: all accumulation happens in the stream controller.
func Decode(name, data string) (Event, bool) {
	kind := Kind(name)
	switch kind {
	case KindStart, KindUserEcho, KindResponding, KindEnd, KindError:
	default:
		return nil, false
	}

	body := parsePayload(data)
	meta := body.meta()

	switch kind {
	case KindStart:
		return Start{Meta: meta}, true

	case KindUserEcho:
		message := body.object("message")
		return UserEcho{Meta: meta, Content: message.stringField("content")}, true

	case KindResponding:
		return Responding{Meta: meta, Delta: body.stringField("delta")}, true

	case KindEnd:
		message := body.object("agent_message")
		return End{Meta: meta, FinalContent: message.stringField("content")}, true

	default:
		text := body.stringField("error")
		if text == "" && !body.valid {
			text = body.text
		}
		if text == "" {
			text = unknownErrorMessage
		}
		return Error{Meta: meta, Message: text}, true
	}
}

func parsePayload(data string) payload {
	var fields map[string]json.RawMessage
	if err := sonic.ConfigStd.UnmarshalFromString(data, &fields); err != nil || fields == nil {
		return payload{
			fields: map[string]json.RawMessage{"delta": mustMarshalString(data)},
			text:   data,
		}
	}
	return payload{fields: fields, text: data, valid: true}
}

// meta extracts the shared fields. session_id and run_id fall back to
// the nested message objects some backend versions use.
func (body payload) meta() Meta {
	meta := Meta{}
	if body.valid {
		meta.Raw = json.RawMessage(body.text)
	}

	message := body.object("message")
	agentMessage := body.object("agent_message")

	meta.SessionID = firstNonEmpty(
		body.stringField("session_id"),
		message.stringField("session_id"),
		agentMessage.stringField("session_id"),
	)
	meta.RunID = firstNonEmpty(
		body.stringField("run_id"),
		message.stringField("run_id"),
		agentMessage.stringField("run_id"),
		agentMessage.stringField("id"),
	)

	var extra ExtraData
	if body.decode("extra_data", &extra) {
		meta.ExtraData = &extra
	}
	var images, videos, audio []Media
	if body.decode("images", &images) {
		meta.Images = images
	}
	if body.decode("videos", &videos) {
		meta.Videos = videos
	}
	if body.decode("audio", &audio) {
		meta.Audio = audio
	}
	var responseAudio ResponseAudio
	if body.decode("response_audio", &responseAudio) {
		meta.ResponseAudio = &responseAudio
	}
	return meta
}

// object returns the named field as a nested payload. Missing or
// non-object fields yield an empty payload whose lookups all miss.
func (body payload) object(name string) payload {
	raw, ok := body.fields[name]
	if !ok || isNull(raw) {
		return payload{}
	}
	var fields map[string]json.RawMessage
	if err := sonic.ConfigStd.Unmarshal(raw, &fields); err != nil || fields == nil {
		return payload{}
	}
	return payload{fields: fields, valid: true}
}

// stringField returns the named field as text. JSON strings are unquoted;
// any other non-null value is returned as its JSON encoding so nothing
// the backend sent is silently lost.
func (body payload) stringField(name string) string {
	raw, ok := body.fields[name]
	if !ok || isNull(raw) {
		return ""
	}
	var text string
	if err := sonic.ConfigStd.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(bytes.TrimSpace(raw))
}

// decode unmarshals the named field into target. Returns false when
// the field is absent, null, or has the wrong shape.
func (body payload) decode(name string, target any) bool {
	raw, ok := body.fields[name]
	if !ok || isNull(raw) {
		return false
	}
	return sonic.ConfigStd.Unmarshal(raw, target) == nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func mustMarshalString(text string) json.RawMessage {
	encoded, err := sonic.ConfigStd.Marshal(text)
	if err != nil {
		// Marshaling a Go string cannot fail.
		panic(err)
	}
	return encoded
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
