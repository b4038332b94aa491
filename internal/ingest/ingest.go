// Package ingest accepts monitoring events over HTTP and NATS and hands
// them to the relay pool.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"hiprelay/internal/event"
)

// maxEventBytes bounds a single inbound event payload.
const maxEventBytes = 64 << 10

var ErrBadEvent = errors.New("bad event")

// Submitter queues events for dispatch. *relay.Pool implements it.
type Submitter interface {
	SubmitAlert(ctx context.Context, ev event.Alert) error
	SubmitGroupEvent(ctx context.Context, ev event.Group) error
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, maxEventBytes+1))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadEvent, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrBadEvent)
	}
	return nil
}

// decodeAlert parses an alert; projectID, when set, overrides the payload.
func decodeAlert(raw io.Reader, projectID string) (event.Alert, error) {
	var ev event.Alert
	if err := decodeStrict(raw, &ev); err != nil {
		return event.Alert{}, err
	}
	if projectID != "" {
		ev.ProjectID = projectID
	}
	ev.ProjectID = strings.TrimSpace(ev.ProjectID)
	if ev.ProjectID == "" {
		return event.Alert{}, fmt.Errorf("%w: project_id is required", ErrBadEvent)
	}
	return ev, nil
}

// decodeGroup parses a group event; projectID, when set, overrides the payload.
func decodeGroup(raw io.Reader, projectID string) (event.Group, error) {
	var ev event.Group
	if err := decodeStrict(raw, &ev); err != nil {
		return event.Group{}, err
	}
	if projectID != "" {
		ev.ProjectID = projectID
	}
	ev.ProjectID = strings.TrimSpace(ev.ProjectID)
	if ev.ProjectID == "" {
		return event.Group{}, fmt.Errorf("%w: project_id is required", ErrBadEvent)
	}
	if strings.TrimSpace(ev.GroupID.String()) == "" {
		return event.Group{}, fmt.Errorf("%w: group_id is required", ErrBadEvent)
	}
	return ev, nil
}

func decodeBytes(b []byte, projectID string, group bool) (any, error) {
	if len(b) > maxEventBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrBadEvent, maxEventBytes)
	}
	if group {
		return decodeGroup(bytes.NewReader(b), projectID)
	}
	return decodeAlert(bytes.NewReader(b), projectID)
}
