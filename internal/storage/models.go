package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("not found")

// Item is an imported inbox record in the application's primary store.
// ImagePath names a file under the consumer's payload directory, not
// the shared container the record arrived through.
type Item struct {
	ID         string
	Title      string
	Subtitle   string
	Text       string
	URL        string
	ImagePath  string
	CreatedAt  time.Time // stamped by the producer at record finalization
	ImportedAt time.Time // stamped by the importer
}
