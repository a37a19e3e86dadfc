package swap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Suffixes of the on-disk artifacts the swap choreography owns. A
// manifest destination path never carries one of these.
const (
	SuffixStaged    = ".new"
	SuffixBackup    = ".bak"
	SuffixDeleteBak = ".bak_del"
)

// Downloader fetches a URL into a destination path and returns the
// lowercase hex digest of what was written.
type Downloader interface {
	FetchFile(rawURL, destPath string) (string, error)
}

// Entry is one file replacement: where to fetch it, where it lives,
// and the digest it must hash to.
type Entry struct {
	URL     string
	DstPath string
	Hash    string
}

// IntegrityError reports a staged download whose digest does not match
// the manifest's declared hash.
type IntegrityError struct {
	Path string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("staged %s: digest %s does not match expected %s", e.Path, e.Got, e.Want)
}

// FilesystemError reports a rename or remove that failed on existing
// state. It is fatal: the persisted filesystem is not in the shape the
// protocol expects.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// Manager implements the backup/rename choreography for replacing and
// deleting persisted files. Every operation tolerates stale leftovers
// from a previously failed attempt.
type Manager struct {
	// Root prefixes relative delete paths. Defaults to "/".
	Root string
	DL   Downloader
}

func (m *Manager) root() string {
	if m.Root == "" {
		return "/"
	}
	return m.Root
}

// Stage downloads the entry to its ".new" path and verifies the
// digest. The live file is untouched; a failed or mismatched download
// leaves at worst a ".new" leftover that the next attempt removes.
func (m *Manager) Stage(e Entry) error {
	if strings.HasSuffix(e.DstPath, SuffixStaged) || strings.HasSuffix(e.DstPath, SuffixBackup) {
		return &FilesystemError{Op: "staging", Path: e.DstPath, Err: errReservedSuffix}
	}

	newPath := e.DstPath + SuffixStaged
	if err := removeStale(newPath); err != nil {
		return err
	}

	digest, err := m.DL.FetchFile(e.URL, newPath)
	if err != nil {
		return err
	}
	if digest != e.Hash {
		return &IntegrityError{Path: newPath, Want: e.Hash, Got: digest}
	}
	return nil
}

// Backup moves the live file aside to its ".bak" path. Callers only
// invoke it once every entry of the batch has staged successfully, so
// a failure here never coexists with missing new payloads.
func (m *Manager) Backup(e Entry) error {
	bakPath := e.DstPath + SuffixBackup
	if err := removeStale(bakPath); err != nil {
		return err
	}
	if err := os.Rename(e.DstPath, bakPath); err != nil {
		return &FilesystemError{Op: "backing up", Path: e.DstPath, Err: err}
	}
	return nil
}

// Commit renames the verified ".new" file into its live location.
func (m *Manager) Commit(e Entry) error {
	if err := os.Rename(e.DstPath+SuffixStaged, e.DstPath); err != nil {
		return &FilesystemError{Op: "committing", Path: e.DstPath, Err: err}
	}
	return nil
}

// DeleteWithBackup retires a file by renaming it to its ".bak_del"
// path. Nothing is physically deleted; the content stays recoverable
// for a manual rollback.
func (m *Manager) DeleteWithBackup(path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.root(), path)
	}
	bakPath := path + SuffixDeleteBak
	if err := removeStale(bakPath); err != nil {
		return err
	}
	if err := os.Rename(path, bakPath); err != nil {
		return &FilesystemError{Op: "retiring", Path: path, Err: err}
	}
	return nil
}

var errReservedSuffix = errors.New("destination path uses a reserved suffix")

func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &FilesystemError{Op: "removing stale", Path: path, Err: err}
	}
	return nil
}
