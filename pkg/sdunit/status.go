package sdunit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnsupported = errors.New("sdunit: unsupported OS (linux only)")

// Status is a snapshot of one systemd unit.
type Status struct {
	Unit        string
	Active      string // active, inactive, failed, ...
	SubState    string // running, dead, ...
	LoadState   string // loaded, not-found, ...
	Description string
	MainPID     uint32
	ActiveSince time.Time // ActiveEnterTimestamp
	StateChange time.Time // StateChangeTimestamp
}

// Found reports whether systemd knows the unit.
func (s Status) Found() bool { return s.LoadState != "" && s.LoadState != "not-found" }

// Running reports an active unit.
func (s Status) Running() bool { return s.Active == "active" }

// Uptime is the time since the unit became active, or zero when it is not running.
func (s Status) Uptime(now time.Time) time.Duration {
	if !s.Running() || s.ActiveSince.IsZero() || now.Before(s.ActiveSince) {
		return 0
	}
	return now.Sub(s.ActiveSince)
}

func (s Status) String() string {
	if !s.Found() {
		return fmt.Sprintf("%s: not found", s.Unit)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (%s)", s.Unit, s.Active, s.SubState)
	if s.MainPID > 0 {
		fmt.Fprintf(&b, " pid=%d", s.MainPID)
	}
	if up := s.Uptime(time.Now()); up > 0 {
		fmt.Fprintf(&b, " up=%s", up.Truncate(time.Second))
	} else if !s.StateChange.IsZero() {
		fmt.Fprintf(&b, " since=%s", s.StateChange.Format(time.RFC3339))
	}
	return b.String()
}

// UnitName appends ".service" when name has no unit suffix.
func UnitName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		switch name[i+1:] {
		case "service", "socket", "timer", "target", "path", "mount":
			return name
		}
	}
	return name + ".service"
}

func notFound(unit string) Status {
	return Status{Unit: unit, Active: "unknown", SubState: "not-found", LoadState: "not-found"}
}

func fromProps(unit string, props map[string]any) Status {
	st := Status{
		Unit:        unit,
		Active:      stringProp(props, "ActiveState"),
		SubState:    stringProp(props, "SubState"),
		LoadState:   stringProp(props, "LoadState"),
		Description: stringProp(props, "Description"),
		ActiveSince: timestampProp(props, "ActiveEnterTimestamp"),
		StateChange: timestampProp(props, "StateChangeTimestamp"),
	}
	if pid, ok := props["MainPID"].(uint32); ok {
		st.MainPID = pid
	}
	if st.LoadState == "not-found" {
		return notFound(unit)
	}
	return st
}

// timestampProp reads a systemd timestamp (microseconds since the epoch).
func timestampProp(props map[string]any, key string) time.Time {
	if ts, ok := props[key].(uint64); ok && ts > 0 {
		return time.UnixMicro(int64(ts))
	}
	return time.Time{}
}

func stringProp(props map[string]any, key string) string {
	v, _ := props[key].(string)
	return v
}

func isNoSuchUnitErr(err error) bool {
	if err == nil {
		return false
	}
	// systemd returns org.freedesktop.systemd1.NoSuchUnit for missing units.
	es := err.Error()
	return strings.Contains(es, "NoSuchUnit") || strings.Contains(es, "not-found")
}
