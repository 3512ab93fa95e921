// Package aggregate turns an unordered set of offered attachments plus
// an optional caption into exactly one normalized record. Every matched
// attachment resolves concurrently; the merge is serialized under a
// mutex and written so the outcome does not depend on arrival order
// beyond the documented first-wins / append rules.
package aggregate

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/shuttle/internal/attachment"
	"github.com/kalambet/shuttle/internal/record"
)

// photoSubtitle is the hint recorded when an image attachment supplies
// the subtitle.
const photoSubtitle = "from photo library"

// PayloadSaver persists image bytes before the record referencing them
// is written. Satisfied by *inbox.Store.
type PayloadSaver interface {
	SavePayload(data []byte, suggestedName string) (string, error)
}

// Aggregator fans out attachment resolution and merges the results.
type Aggregator struct {
	payloads PayloadSaver
	logger   *slog.Logger
}

// New creates an Aggregator that stores image payloads through payloads.
func New(payloads PayloadSaver) *Aggregator {
	return &Aggregator{payloads: payloads, logger: slog.Default()}
}

// accumulator holds the in-progress record fields. All mutation happens
// under the aggregation mutex; a non-empty caption pre-seeds Title and
// Text, and the first-wins checks below then keep it from being
// overwritten.
type accumulator struct {
	rec record.Record
}

// Aggregate resolves every offered item concurrently and merges the
// results into one finalized record. Individual resolution failures are
// absorbed: the field they would have populated stays unset. The only
// synchronization point is the join; Aggregate returns only after every
// issued resolution has completed.
func (a *Aggregator) Aggregate(ctx context.Context, caption string, items []attachment.Provider) record.Record {
	acc := &accumulator{}
	caption = strings.TrimSpace(caption)
	if caption != "" {
		acc.rec.Title = caption
		acc.rec.Text = caption
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, item := range items {
		kind := attachment.Classify(item)
		if kind == attachment.KindUnsupported {
			a.logger.Debug("skipping unsupported attachment")
			continue
		}
		item := item
		g.Go(func() error {
			v, err := item.Resolve(ctx, kind)
			if err != nil {
				// Absorbed: a failed attachment shrinks the record, it
				// never fails the session.
				a.logger.Warn("attachment resolution failed", "kind", kind.String(), "error", err)
				return nil
			}
			a.merge(acc, &mu, v)
			return nil
		})
	}
	g.Wait()

	acc.rec.Finalize(time.Now())
	return acc.rec
}

func (a *Aggregator) merge(acc *accumulator, mu *sync.Mutex, v attachment.Value) {
	switch v.Kind {
	case attachment.KindLink:
		mu.Lock()
		defer mu.Unlock()
		if acc.rec.URL == "" {
			acc.rec.URL = v.URL.String()
		}
		if acc.rec.Subtitle == "" {
			acc.rec.Subtitle = v.URL.Host
		}
		if acc.rec.Title == "" {
			acc.rec.Title = titleFromURL(v.URL)
		}

	case attachment.KindText:
		mu.Lock()
		defer mu.Unlock()
		if acc.rec.Text == "" {
			acc.rec.Text = v.Text
		} else {
			acc.rec.Text += "\n" + v.Text
		}
		if acc.rec.Title == "" {
			acc.rec.Title = record.TitleFromText(v.Text)
		}

	case attachment.KindImage:
		if a.payloads == nil {
			a.logger.Warn("no payload store, dropping image attachment")
			return
		}
		// Payload bytes hit disk before the record that will reference
		// them, keeping the consumer's imagePath always resolvable.
		name, err := a.payloads.SavePayload(v.Image, v.Filename)
		if err != nil {
			a.logger.Warn("saving image payload failed", "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		// Deliberate last-image-wins: a single payload per record.
		acc.rec.ImagePath = name
		if acc.rec.Subtitle == "" {
			acc.rec.Subtitle = photoSubtitle
		}
	}
}

// titleFromURL derives a title from the link's last path segment, with
// each hyphen- or underscore-separated word capitalized. Returns empty
// when the URL has no usable path.
func titleFromURL(u *url.URL) string {
	segment := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if dot := strings.LastIndex(segment, "."); dot > 0 {
		segment = segment[:dot]
	}
	if segment == "" {
		return ""
	}

	capitalize := func(w string) string {
		r := []rune(w)
		if len(r) == 0 {
			return w
		}
		return strings.ToUpper(string(r[0])) + string(r[1:])
	}
	for _, sep := range []string{"-", "_"} {
		parts := strings.Split(segment, sep)
		for i, p := range parts {
			parts[i] = capitalize(p)
		}
		segment = strings.Join(parts, sep)
	}
	return segment
}
