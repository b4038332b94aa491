package config

import (
	"os"
	"strings"
	"time"

	"hiprelay/internal/project"
)

// expandEnv resolves ${VAR} references; values without them pass through.
func expandEnv(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "${") {
		return s
	}
	return strings.TrimSpace(os.Expand(s, os.Getenv))
}

// Project converts raw settings into a project.Config. defaultTimeout is
// used when the project sets none. Defaults for the remaining fields are
// left to project.Config.WithDefaults.
func (p ProjectConfig) Project(defaultTimeout time.Duration) project.Config {
	out := project.Config{
		Token:              expandEnv(p.Token),
		Room:               expandEnv(p.Room),
		Notify:             p.Notify,
		IncludeProjectName: p.IncludeProjectName,
		Endpoint:           strings.TrimSpace(p.Endpoint),
		Timeout:            defaultTimeout,
	}
	// Validate rejects out-of-range values before a config is committed.
	if d, err := secondsDuration("delay", p.Delay); err == nil {
		out.Delay = d
	}
	if p.Timeout > 0 {
		out.Timeout = time.Duration(p.Timeout) * time.Second
	}
	return out
}

// Resolve returns the effective settings of projectID within cfg.
func (c *Config) Resolve(projectID string) (project.Config, error) {
	if c == nil {
		return project.Config{}, project.ErrNotConfigured
	}
	p, ok := c.Projects[projectID]
	if !ok {
		return project.Config{}, project.ErrNotConfigured
	}
	def, err := ParseDurationOrDefault("relay.default_timeout", c.Relay.DefaultTimeout, project.DefaultTimeout)
	if err != nil {
		def = project.DefaultTimeout
	}
	out := p.Project(def)
	if !out.Configured() {
		return project.Config{}, project.ErrNotConfigured
	}
	return out.WithDefaults(), nil
}

// AuthTokens returns the resolved tokens of every configured project.
func (c *Config) AuthTokens() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Projects))
	for id := range c.Projects {
		if p, err := c.Resolve(id); err == nil {
			out = append(out, p.Token)
		}
	}
	return out
}

// Live resolves projects against the manager's current snapshot, so hot
// reloads take effect on the next event without any restart.
type Live struct {
	m *ConfigManager
}

var _ project.Resolver = (*Live)(nil)

func NewLive(m *ConfigManager) *Live { return &Live{m: m} }

func (l *Live) Resolve(projectID string) (project.Config, error) {
	if l == nil || l.m == nil {
		return project.Config{}, project.ErrNotConfigured
	}
	return l.m.Get().Resolve(projectID)
}
