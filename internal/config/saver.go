package config

import (
	"fmt"
	"strings"
	"sync"
)

// Saver guards the mutable channel list of a loaded configuration and writes
// it back to disk on change.
type Saver struct {
	mu  sync.Mutex
	cfg Config
}

// NewSaver wraps cfg for concurrent channel list updates.
func NewSaver(cfg Config) *Saver {
	return &Saver{cfg: cfg}
}

// Channels returns a copy of the configured channel list.
func (s *Saver) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cfg.Connection.Channels))
	copy(out, s.cfg.Connection.Channels)
	return out
}

// AddChannel records name if it is not yet present and persists the file.
func (s *Saver) AddChannel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cfg.Connection.Channels {
		if strings.EqualFold(c, name) {
			return nil
		}
	}
	s.cfg.Connection.Channels = append(s.cfg.Connection.Channels, name)
	return s.writeLocked()
}

// RemoveChannel drops every entry equal to name and persists the file.
func (s *Saver) RemoveChannel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.cfg.Connection.Channels[:0]
	for _, c := range s.cfg.Connection.Channels {
		if !strings.EqualFold(c, name) {
			kept = append(kept, c)
		}
	}
	s.cfg.Connection.Channels = kept
	return s.writeLocked()
}

func (s *Saver) writeLocked() error {
	if s.cfg.Path == "" {
		return fmt.Errorf("config has no backing file")
	}
	return s.cfg.Write(s.cfg.Path)
}
