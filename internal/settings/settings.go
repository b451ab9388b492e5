// Package settings holds the three user-facing auto-block options. Values are
// read on every voice event, so edits take effect without a restart.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/keshon/voice-autoblock/datastore"

	"github.com/rs/zerolog/log"
)

const storeKey = "autoblock"

var ErrInvalidSetting = errors.New("invalid setting")

// Values is the persisted form of the settings.
type Values struct {
	TargetServerID string `json:"targetServerId"`
	BotID          string `json:"botId"`
	Enabled        bool   `json:"enabled"`
}

// Patch carries a partial update; nil fields are left alone.
type Patch struct {
	TargetServerID *string `json:"targetServerId,omitempty"`
	BotID          *string `json:"botId,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
}

type Settings struct {
	ds *datastore.DataStore

	mu  sync.RWMutex
	cur Values
}

// Open loads the settings from ds, seeding defaults on first run.
func Open(ds *datastore.DataStore, defaults Values) (*Settings, error) {
	if err := validate(defaults); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	s := &Settings{ds: ds, cur: defaults}

	var stored Values
	ok, err := ds.Get(storeKey, &stored)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		if err := s.persist(defaults); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := validate(stored); err != nil {
		return nil, fmt.Errorf("stored settings: %w", err)
	}
	s.cur = stored
	return s, nil
}

func (s *Settings) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Enabled
}

func (s *Settings) TargetServerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.TargetServerID
}

func (s *Settings) BotID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.BotID
}

// Snapshot returns a copy of the current values.
func (s *Settings) Snapshot() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update applies p, validates the result and persists it.
func (s *Settings) Update(p Patch) (Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	if p.TargetServerID != nil {
		next.TargetServerID = *p.TargetServerID
	}
	if p.BotID != nil {
		next.BotID = *p.BotID
	}
	if p.Enabled != nil {
		next.Enabled = *p.Enabled
	}
	if err := validate(next); err != nil {
		return s.cur, err
	}
	if err := s.persist(next); err != nil {
		return s.cur, err
	}
	s.cur = next
	return next, nil
}

// Reload re-reads the settings file. Invalid edits are rejected and the
// previous values stay in effect.
func (s *Settings) Reload() error {
	changed, v, err := s.reload()
	if err != nil {
		return err
	}
	if changed {
		log.Info().
			Str("target_server", v.TargetServerID).
			Str("bot", v.BotID).
			Bool("enabled", v.Enabled).
			Msg("Settings reloaded")
	}
	return nil
}

// reload holds mu from the file read through the apply; a concurrent
// Update lands either before or after it.
func (s *Settings) reload() (bool, Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ds.Reload(); err != nil {
		return false, s.cur, err
	}

	var stored Values
	ok, err := s.ds.Get(storeKey, &stored)
	if err != nil {
		return false, s.cur, err
	}
	if !ok {
		return false, s.cur, nil
	}
	if err := validate(stored); err != nil {
		return false, s.cur, err
	}

	changed := stored != s.cur
	s.cur = stored
	return changed, stored, nil
}

func (s *Settings) persist(v Values) error {
	if err := s.ds.Set(storeKey, v); err != nil {
		return fmt.Errorf("store settings: %w", err)
	}
	if err := s.ds.Save(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func validate(v Values) error {
	if !isSnowflake(v.TargetServerID) {
		return fmt.Errorf("%w: targetServerId %q is not a Discord id", ErrInvalidSetting, v.TargetServerID)
	}
	if !isSnowflake(v.BotID) {
		return fmt.Errorf("%w: botId %q is not a Discord id", ErrInvalidSetting, v.BotID)
	}
	return nil
}

func isSnowflake(id string) bool {
	if id == "" {
		return false
	}
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}
