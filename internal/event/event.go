// Package event holds the inbound event shapes delivered by the monitoring host.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Alert is a project-wide notification not tied to an error group.
type Alert struct {
	ProjectID   string `json:"project_id,omitempty"`
	ProjectName string `json:"project_name"`
	Message     string `json:"message"`
	URL         string `json:"url"`
}

// Group is a grouped error event. GroupID is the dedup key.
type Group struct {
	ProjectID   string `json:"project_id,omitempty"`
	GroupID     ID     `json:"group_id"`
	ProjectName string `json:"project_name"`
	Level       string `json:"level"`
	Summary     string `json:"summary"`
	URL         string `json:"url"`
}

// ID accepts both JSON strings and numbers ("42" and 42 decode the same).
type ID string

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}
