package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/installer/pkg/errdefs"
)

// FileJournal is a Journal persisted to a single file. Execution is
// sequential, so the mutex only guards against misuse from tests and tools.
type FileJournal struct {
	path string

	mu      sync.Mutex
	sets    entrySets
	created bool
}

// CreateOrRead opens the journal at path. An existing file is parsed
// according to its version byte; a missing file is created empty.
func CreateOrRead(path string) (*FileJournal, error) {
	if path == "" {
		return nil, errdefs.NewJournalError("journal path is required", nil)
	}

	j := &FileJournal{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		sets, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal %s: %w", path, err)
		}
		j.sets = sets
		j.created = true
		log.Debug().Str("path", path).Int("entries", sets.len()).Msg("Loaded uninstall journal")
	case errors.Is(err, os.ErrNotExist):
		j.sets = newEntrySets()
		if err := j.write(); err != nil {
			return nil, err
		}
		j.created = true
		log.Debug().Str("path", path).Msg("Created uninstall journal")
	default:
		return nil, errdefs.NewJournalError("failed to open journal "+path, err)
	}

	return j, nil
}

// Path returns the backing file path.
func (j *FileJournal) Path() string {
	return j.path
}

// AddEntry implements Journal.
func (j *FileJournal) AddEntry(kind Kind, value string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.sets.add(kind, value) {
		return
	}
	log.Trace().Str("kind", string(kind)).Str("value", value).Msg("Journal entry recorded")
}

// ReadEntries implements Journal.
func (j *FileJournal) ReadEntries(kind Kind) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sets.sorted(kind)
}

// Len returns the total number of recorded entries.
func (j *FileJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sets.len()
}

// Entries returns a snapshot of every kind.
func (j *FileJournal) Entries() map[Kind][]string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make(map[Kind][]string, len(Kinds))
	for _, k := range Kinds {
		out[k] = j.sets.sorted(k)
	}
	return out
}

// Flush rewrites the backing file with the full current state.
func (j *FileJournal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.created {
		if _, err := os.Stat(j.path); errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", j.path).Msg("Uninstall journal disappeared, recreating it")
		}
	}
	return j.write()
}

// write must be called with mu held (or before j is shared).
func (j *FileJournal) write() error {
	data, err := encode(j.sets)
	if err != nil {
		return errdefs.NewJournalError("failed to encode journal", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return errdefs.NewJournalError("failed to create journal directory", err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return errdefs.NewJournalError("failed to write journal "+j.path, err)
	}
	return nil
}
