// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/bureau-foundation/agentchat/lib/chatevent"
)

// Session is one entry of the session list.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionDetail is a session with its message history.
type SessionDetail struct {
	Session
	Messages []HistoryMessage
}

// HistoryMessage is one stored turn.
type HistoryMessage struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
	ExtraData *chatevent.ExtraData
	Images    []chatevent.Media
	Videos    []chatevent.Media
	Audio     []chatevent.Media
}

// wireSession accepts the field spellings the backend has used over
// time.
type wireSession struct {
	SessionID   string            `json:"session_id"`
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	SessionName string            `json:"session_name"`
	CreatedAt   timestamp         `json:"created_at"`
	UpdatedAt   timestamp         `json:"updated_at"`
	Messages    []wireHistoryItem `json:"messages"`
}

type wireHistoryItem struct {
	ID        string               `json:"id"`
	Role      string               `json:"role"`
	Content   string               `json:"content"`
	CreatedAt timestamp            `json:"created_at"`
	ExtraData *chatevent.ExtraData `json:"extra_data"`
	Images    []chatevent.Media    `json:"images"`
	Videos    []chatevent.Media    `json:"videos"`
	Audio     []chatevent.Media    `json:"audio"`
}

func (wire wireSession) toSession() Session {
	session := Session{
		ID:        wire.SessionID,
		Title:     wire.Title,
		CreatedAt: time.Time(wire.CreatedAt),
		UpdatedAt: time.Time(wire.UpdatedAt),
	}
	if session.ID == "" {
		session.ID = wire.ID
	}
	if session.Title == "" {
		session.Title = wire.SessionName
	}
	return session
}

// ListSessions returns the caller's sessions, most recently updated
// first.
func (client *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var raw json.RawMessage
	if err := client.getJSON(ctx, endpointSessions, &raw); err != nil {
		return nil, err
	}
	wire, err := decodeSessionList(raw)
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(wire))
	for _, entry := range wire {
		sessions = append(sessions, entry.toSession())
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// decodeSessionList accepts a bare array or an object wrapping one in
// "sessions" or "data".
func decodeSessionList(raw json.RawMessage) ([]wireSession, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []wireSession
		if err := sonic.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("backend: decoding session list: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Sessions []wireSession `json:"sessions"`
		Data     []wireSession `json:"data"`
	}
	if err := sonic.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("backend: decoding session list: %w", err)
	}
	if envelope.Sessions != nil {
		return envelope.Sessions, nil
	}
	return envelope.Data, nil
}

// GetSession returns one session with its history in stored order.
func (client *Client) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("backend: session id is required")
	}
	var wire wireSession
	if err := client.getJSON(ctx, sessionPath(id), &wire); err != nil {
		return nil, err
	}

	detail := &SessionDetail{Session: wire.toSession()}
	if detail.ID == "" {
		detail.ID = id
	}
	for _, item := range wire.Messages {
		detail.Messages = append(detail.Messages, HistoryMessage{
			ID:        item.ID,
			Role:      strings.ToLower(item.Role),
			Content:   item.Content,
			CreatedAt: time.Time(item.CreatedAt),
			ExtraData: item.ExtraData,
			Images:    item.Images,
			Videos:    item.Videos,
			Audio:     item.Audio,
		})
	}
	return detail, nil
}

// DeleteSession removes a session. Deleting a session that does not
// exist returns an error matching ErrNotFound.
func (client *Client) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("backend: session id is required")
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, client.base+sessionPath(id), nil)
	if err != nil {
		return fmt.Errorf("backend: creating request: %w", err)
	}
	response, err := client.do(request)
	if err != nil {
		return err
	}
	response.Body.Close()
	client.logger.Info("session deleted", "session_id", id)
	return nil
}

// timestamp decodes RFC 3339 strings, unix seconds, or unix
// milliseconds. Anything else decodes to the zero time.
type timestamp time.Time

func (value *timestamp) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		return nil
	}
	if number, err := strconv.ParseFloat(text, 64); err == nil {
		seconds := number
		// Values past year 33658 in seconds are milliseconds.
		if number > 1e12 {
			seconds = number / 1000
		}
		whole := int64(seconds)
		*value = timestamp(time.Unix(whole, int64((seconds-float64(whole))*1e9)).UTC())
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, text); err == nil {
			*value = timestamp(parsed)
			return nil
		}
	}
	return nil
}
