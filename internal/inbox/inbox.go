// Package inbox manages the shared directory used as a one-way,
// durable handoff channel between the producer and consumer processes.
// Files are written atomically (temp file + rename) so a consumer
// polling the directory never observes a half-written entry.
package inbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/shuttle/internal/record"
)

// ErrNoContainer means the shared container directory could not be
// resolved. This is an environment misconfiguration, not a transient
// condition; an empty or freshly created directory is not an error.
var ErrNoContainer = errors.New("inbox: shared container unavailable")

// ErrNotFound is returned when a named entry or payload does not exist.
var ErrNotFound = errors.New("inbox: entry not found")

const (
	recordPrefix  = "pkg-"
	recordExt     = ".json"
	payloadPrefix = "image-"
	payloadExt    = ".jpg"
	quarantineExt = ".bad"
)

// Store provides write access for the producer and read/remove access
// for the consumer over one shared directory.
type Store struct {
	dir string
}

// Open resolves the shared container directory, creating it lazily.
// An empty dir means the container mechanism is not configured at all.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrNoContainer
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoContainer, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the resolved container directory.
func (s *Store) Dir() string {
	return s.dir
}

// WriteRecord serializes rec and writes it under a fresh unique entry
// name. Returns the entry ID. The payload a record references must
// already be on disk when this is called.
func (s *Store) WriteRecord(rec record.Record) (string, error) {
	data, err := record.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("writing record: %w", err)
	}
	id := recordPrefix + uuid.New().String()
	if err := s.writeAtomic(id+recordExt, data); err != nil {
		return "", fmt.Errorf("writing record %s: %w", id, err)
	}
	return id, nil
}

// SavePayload writes payload bytes under the suggested filename, or a
// generated unique name when none is given or the suggestion collides.
// Only the bare filename is returned: the two processes may mount the
// container under different absolute paths.
func (s *Store) SavePayload(data []byte, suggestedName string) (string, error) {
	name := sanitizeName(suggestedName)
	if name == "" || s.exists(name) {
		ext := payloadExt
		if e := filepath.Ext(name); e != "" {
			ext = e
		}
		name = payloadPrefix + uuid.New().String() + ext
	}
	if err := s.writeAtomic(name, data); err != nil {
		return "", fmt.Errorf("writing payload %s: %w", name, err)
	}
	return name, nil
}

// Entry identifies one pending record in the inbox.
type Entry struct {
	ID   string
	Path string
}

// List returns the pending record entries sorted by name. Payload files
// are not listed; they are reachable only through the record that
// references them.
func (s *Store) List() ([]Entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing inbox: %w", err)
	}
	var entries []Entry
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || !strings.HasPrefix(name, recordPrefix) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		entries = append(entries, Entry{
			ID:   strings.TrimSuffix(name, recordExt),
			Path: filepath.Join(s.dir, name),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// ReadRecord parses the record stored under the given entry ID.
func (s *Store) ReadRecord(id string) (record.Record, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+recordExt))
	if errors.Is(err, os.ErrNotExist) {
		return record.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("reading record %s: %w", id, err)
	}
	rec, err := record.Unmarshal(data)
	if err != nil {
		return record.Record{}, fmt.Errorf("record %s: %w", id, err)
	}
	return rec, nil
}

// ReadPayload returns the bytes of a payload file referenced by a
// record's imagePath.
func (s *Store) ReadPayload(name string) ([]byte, error) {
	if sanitizeName(name) != name || name == "" {
		return nil, fmt.Errorf("reading payload: %q is not a bare filename", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading payload %s: %w", name, err)
	}
	return data, nil
}

// Remove deletes a consumed record entry and, when given, its payload.
// Only the consumer calls this; the producer never mutates an entry
// after writing it.
func (s *Store) Remove(id string, payloadName string) error {
	if err := os.Remove(filepath.Join(s.dir, id+recordExt)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing record %s: %w", id, err)
	}
	if payloadName != "" && sanitizeName(payloadName) == payloadName {
		if err := os.Remove(filepath.Join(s.dir, payloadName)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing payload %s: %w", payloadName, err)
		}
	}
	return nil
}

// Quarantine renames a malformed entry out of the record namespace so
// the importer stops re-reading it while keeping the bytes around for
// inspection.
func (s *Store) Quarantine(id string) error {
	from := filepath.Join(s.dir, id+recordExt)
	to := from + quarantineExt
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("quarantining %s: %w", id, err)
	}
	return nil
}

// writeAtomic writes data to name via a temp file in the same directory
// followed by a rename, so concurrent readers see whole files only.
func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Store) exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// sanitizeName reduces a caller suggestion to a safe bare filename.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		return ""
	}
	if strings.HasPrefix(name, recordPrefix) {
		// Payloads must never shadow the record namespace.
		return ""
	}
	return name
}
