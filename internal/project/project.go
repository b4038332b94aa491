// Package project resolves per-project relay settings.
package project

import (
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	DefaultEndpoint = "https://api.hipchat.com/v1/rooms/message"
	DefaultDelay    = 3600 * time.Second
	DefaultTimeout  = 3 * time.Second

	// MinDelay is enforced when configuration is loaded.
	MinDelay = 60 * time.Second
)

// ErrNotConfigured means the project has no token or room; callers skip silently.
var ErrNotConfigured = errors.New("project not configured")

// Config is an immutable snapshot of one project's settings.
type Config struct {
	Token              string
	Room               string
	Notify             bool
	IncludeProjectName bool
	Endpoint           string
	Delay              time.Duration
	Timeout            time.Duration
}

// Configured reports whether both token and room are set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.Room) != ""
}

// WithDefaults fills optional fields that were left empty.
func (c Config) WithDefaults() Config {
	c.Token = strings.TrimSpace(c.Token)
	c.Room = strings.TrimSpace(c.Room)
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Resolver looks up project settings. It must be a pure read.
type Resolver interface {
	Resolve(projectID string) (Config, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(projectID string) (Config, error)

func (f ResolverFunc) Resolve(projectID string) (Config, error) { return f(projectID) }

// Static is an in-memory Resolver. Unknown projects are not configured.
type Static struct {
	mu       sync.RWMutex
	projects map[string]Config
}

func NewStatic(projects map[string]Config) *Static {
	s := &Static{projects: map[string]Config{}}
	for id, c := range projects {
		s.projects[id] = c
	}
	return s
}

// Set replaces the settings of one project.
func (s *Static) Set(projectID string, c Config) {
	s.mu.Lock()
	s.projects[projectID] = c
	s.mu.Unlock()
}

func (s *Static) Resolve(projectID string) (Config, error) {
	s.mu.RLock()
	c, ok := s.projects[projectID]
	s.mu.RUnlock()
	return finish(c, ok)
}

func finish(c Config, ok bool) (Config, error) {
	if !ok || !c.Configured() {
		return Config{}, ErrNotConfigured
	}
	return c.WithDefaults(), nil
}
