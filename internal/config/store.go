package config

import (
	"fmt"
	"sync"
)

// ///////////////////////////////////////////////
// Store
// ///////////////////////////////////////////////

// Store owns the mutable runtime copy of the configuration. Command handlers
// are the only writers; the monitor loop reads a snapshot each cycle, so a
// value is stale for at most one poll interval. Every mutation is persisted
// to disk before the mutator returns.
type Store struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewStore wraps cfg in a Store that persists mutations to path.
func NewStore(cfg *Config, path string) *Store {
	return &Store{cfg: cfg, path: path}
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s.cfg
	cp.State.FallbackGlobs = append([]string(nil), s.cfg.State.FallbackGlobs...)
	return cp
}

// SetEnabled updates the enabled flag and persists the config.
func (s *Store) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg.Enabled
	s.cfg.Enabled = enabled
	if err := s.cfg.Save(s.path); err != nil {
		s.cfg.Enabled = prev
		return fmt.Errorf("persist enabled=%t: %w", enabled, err)
	}
	return nil
}

// SetThreshold updates the warning threshold and persists the config.
// The value must already be within [MinThresholdHours, MaxThresholdHours];
// out-of-range input is rejected.
func (s *Store) SetThreshold(hours float64) error {
	if hours < MinThresholdHours || hours > MaxThresholdHours {
		return fmt.Errorf("threshold %g out of range [%g, %g]",
			hours, MinThresholdHours, MaxThresholdHours)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg.ThresholdHours
	s.cfg.ThresholdHours = hours
	if err := s.cfg.Save(s.path); err != nil {
		s.cfg.ThresholdHours = prev
		return fmt.Errorf("persist threshold=%g: %w", hours, err)
	}
	return nil
}
