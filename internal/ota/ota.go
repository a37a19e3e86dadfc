package ota

import (
	"errors"
	"fmt"

	"github.com/open-edge-platform/ota-agent/internal/flash"
	"github.com/open-edge-platform/ota-agent/internal/manifest"
	"github.com/open-edge-platform/ota-agent/internal/swap"
	"github.com/open-edge-platform/ota-agent/internal/utils/logger"
)

// Outcome is the terminal result of one update attempt.
type Outcome int

const (
	// Failed: the manifest was unreadable or a download exhausted its
	// retry budget.
	Failed Outcome = iota
	// AlreadyCurrent: the server had no manifest for this device.
	AlreadyCurrent
	// Applied: the full update sequence completed.
	Applied
)

func (o Outcome) String() string {
	switch o {
	case Failed:
		return "failed"
	case AlreadyCurrent:
		return "already-current"
	case Applied:
		return "applied"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// stageAttempts is the fixed per-file retry budget.
const stageAttempts = 5

// ErrRetriesExhausted marks an update aborted because one file failed
// staging stageAttempts times in a row.
var ErrRetriesExhausted = errors.New("download retries exhausted")

// ManifestSource yields the manifest for one update attempt. A nil
// manifest with no error means the device is already current.
type ManifestSource interface {
	Fetch(fwtype, token string) (*manifest.Manifest, error)
}

// FirmwareFlasher streams a firmware image into a flash session and
// returns the digest of what was written.
type FirmwareFlasher interface {
	FetchFirmware(rawURL string, session flash.Session) (string, error)
}

// Orchestrator sequences one update attempt: manifest, staging,
// backups, commits, deletions, firmware. The ordering is a correctness
// invariant: no backup is taken before every payload of the batch is
// verified on disk, so an aborted attempt always leaves the previous
// files live.
type Orchestrator struct {
	Manifests ManifestSource
	Swap      *swap.Manager
	Firmware  FirmwareFlasher
	// NewSession opens the flash write session for a firmware entry.
	NewSession func() flash.Session
}

// Update runs one attempt. A non-nil custom manifest skips the fetch.
// The returned error carries the cause whenever the outcome is Failed.
func (o *Orchestrator) Update(custom *manifest.Manifest, fwtype, token string) (Outcome, error) {
	log := logger.Logger()

	m := custom
	if m == nil {
		var err error
		m, err = o.Manifests.Fetch(fwtype, token)
		if err != nil {
			log.Errorf("error reading the manifest, aborting: %v", err)
			return Failed, err
		}
	}
	if m == nil {
		log.Infof("already on the latest version")
		return AlreadyCurrent, nil
	}

	files := m.Files()
	if len(files) > 0 {
		// Download and verify everything before any live file moves.
		for _, f := range files {
			if err := o.stageWithRetry(toEntry(f)); err != nil {
				log.Errorf("aborting update: %v", err)
				return Failed, err
			}
		}

		// Only entries replacing an existing file have something to
		// back up.
		for _, f := range m.Update {
			if err := o.Swap.Backup(toEntry(f)); err != nil {
				log.Errorf("aborting update: %v", err)
				return Failed, err
			}
		}

		for _, f := range files {
			if err := o.Swap.Commit(toEntry(f)); err != nil {
				log.Errorf("aborting update: %v", err)
				return Failed, err
			}
		}
	}

	// Deletions are renames to a recoverable backup name, doubling as
	// rollback material.
	for _, path := range m.Delete {
		if err := o.Swap.DeleteWithBackup(path); err != nil {
			log.Errorf("aborting update: %v", err)
			return Failed, err
		}
	}

	if m.Firmware != nil {
		digest, err := o.Firmware.FetchFirmware(m.Firmware.URL, o.NewSession())
		if err != nil {
			log.Errorf("aborting update: %v", err)
			return Failed, err
		}
		// The manifest format declares no firmware hash, so the digest
		// can only be recorded, not checked.
		log.Infof("flashed firmware from %s, unverified sha1 %s", m.Firmware.URL, digest)
	}

	return Applied, nil
}

func (o *Orchestrator) stageWithRetry(e swap.Entry) error {
	log := logger.Logger()

	var lastErr error
	for attempt := 1; attempt <= stageAttempts; attempt++ {
		lastErr = o.Swap.Stage(e)
		if lastErr == nil {
			return nil
		}
		log.Warnf("error downloading %s (attempt %d/%d): %v", e.URL, attempt, stageAttempts, lastErr)
	}
	return fmt.Errorf("%w for %s: %w", ErrRetriesExhausted, e.URL, lastErr)
}

func toEntry(f manifest.FileEntry) swap.Entry {
	return swap.Entry{URL: f.URL, DstPath: f.DstPath, Hash: f.Hash}
}
