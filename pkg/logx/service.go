package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultFilePath is used when file logging is enabled without a path.
const DefaultFilePath = "./hiprelay.log"

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the process log sinks. Loggers derived from it pick up
// level and sink changes made by Apply.
type Service struct {
	mu       sync.Mutex
	cfg      Config
	console  io.Writer
	file     *os.File
	filePath string

	root atomic.Pointer[zerolog.Logger]
}

// NewService builds the sinks for cfg and returns the Service with its root
// Logger. A file that cannot be opened falls back to the console and is
// reported on stderr.
func NewService(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{console: consoleWriter(os.Stdout)}
	zl := build(s.console, cfg.Level)
	s.root.Store(&zl)
	if err := s.Apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "logx: %v\n", err)
	}
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Apply swaps level and sinks at runtime. The log file is kept open when its
// path is unchanged. If the new file cannot be opened the previous file, if
// any, stays in use and the error is returned.
func (s *Service) Apply(cfg Config) error {
	return s.apply(cfg, false)
}

// Reopen closes and reopens the log file, for use after rotation.
func (s *Service) Reopen() error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return s.apply(cfg, true)
}

func (s *Service) apply(cfg Config, reopen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var openErr error
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = DefaultFilePath
		}
		if reopen || s.file == nil || path != s.filePath {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				openErr = fmt.Errorf("open log file %q: %w", path, err)
			} else {
				s.closeFile()
				s.file, s.filePath = f, path
			}
		}
	} else {
		s.closeFile()
	}
	s.cfg = cfg

	sinks := make([]io.Writer, 0, 2)
	if cfg.Console {
		sinks = append(sinks, s.console)
	}
	if s.file != nil {
		sinks = append(sinks, zerolog.SyncWriter(s.file))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, s.console)
	}
	zl := build(zerolog.MultiLevelWriter(sinks...), cfg.Level)
	s.root.Store(&zl)
	return openErr
}

func (s *Service) closeFile() {
	if s.file != nil {
		_ = s.file.Close()
		s.file, s.filePath = nil, ""
	}
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.filePath = nil, ""
	return err
}
