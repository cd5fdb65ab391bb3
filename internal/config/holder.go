package config

import (
	"fmt"
	"sync/atomic"
)

// Snapshot is one validated config together with its parsed transfer
// settings. Snapshots are never modified after publication.
type Snapshot struct {
	Config   *Config
	Transfer TransferSettings
}

// Holder publishes the live config of a long-running bot. Readers take a
// snapshot per operation, so a relay run keeps the limits it started with
// even if the file is reloaded halfway through.
type Holder struct {
	cur  atomic.Pointer[Snapshot]
	path string
}

// NewHolder wraps cfg, read from path. path may be empty when the config did
// not come from a file; Watch then has nothing to watch.
func NewHolder(cfg *Config, path string) (*Holder, error) {
	h := &Holder{path: path}
	if err := h.Update(cfg); err != nil {
		return nil, err
	}

	return h, nil
}

// Snapshot returns the current snapshot.
func (h *Holder) Snapshot() *Snapshot {
	return h.cur.Load()
}

// Config returns the current config.
func (h *Holder) Config() *Config {
	return h.cur.Load().Config
}

// Transfer returns the current parsed transfer settings.
func (h *Holder) Transfer() TransferSettings {
	return h.cur.Load().Transfer
}

// Path is the file the config was loaded from.
func (h *Holder) Path() string {
	return h.path
}

// Update publishes cfg. A config whose transfer section does not parse is
// rejected and the previous snapshot stays live.
func (h *Holder) Update(cfg *Config) error {
	settings, err := cfg.Transfer.Parse()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	h.cur.Store(&Snapshot{Config: cfg, Transfer: settings})

	return nil
}
