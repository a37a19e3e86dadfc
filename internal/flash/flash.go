package flash

import (
	"fmt"
	"os"
)

// Session is the three-call lifecycle the firmware flashing primitive
// exposes: Start opens the write session against the target OTA slot,
// Write appends image bytes, Finish commits the slot. The hardware
// implementation lives outside this module; the agent only drives the
// lifecycle.
type Session interface {
	Start() error
	Write(p []byte) (int, error)
	Finish() error
}

// FileSession is a Session that writes the image to a slot file. It is
// used off-device and in tests, where no flash primitive exists.
type FileSession struct {
	Path string

	f *os.File
}

var _ Session = (*FileSession)(nil)

// Start truncates and opens the slot file.
func (s *FileSession) Start() error {
	if s.f != nil {
		return fmt.Errorf("flash session already started")
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("opening firmware slot %s: %w", s.Path, err)
	}
	s.f = f
	return nil
}

// Write appends image bytes to the slot file.
func (s *FileSession) Write(p []byte) (int, error) {
	if s.f == nil {
		return 0, fmt.Errorf("flash session not started")
	}
	return s.f.Write(p)
}

// Finish syncs and closes the slot file. The session cannot be reused
// afterwards.
func (s *FileSession) Finish() error {
	if s.f == nil {
		return fmt.Errorf("flash session not started")
	}
	defer func() { s.f = nil }()
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return fmt.Errorf("syncing firmware slot %s: %w", s.Path, err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("closing firmware slot %s: %w", s.Path, err)
	}
	return nil
}
