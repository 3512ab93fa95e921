// Package attachment models one piece of content offered to a sharing
// session. Each provider is classified into exactly one kind and
// resolved at most once; resolution is a blocking, context-aware call
// that callers run off the hot path (the aggregator fans providers out
// onto their own goroutines).
package attachment

import (
	"context"
	"errors"
	"net/url"
)

// Kind identifies the single capability a provider resolves to.
type Kind int

const (
	KindUnsupported Kind = iota
	KindLink
	KindText
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindLink:
		return "link"
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return "unsupported"
	}
}

// classifyOrder is the capability probe order: first match wins, so an
// item conforming to several kinds resolves only the highest-priority
// one.
var classifyOrder = []Kind{KindLink, KindText, KindImage}

// ErrNoContent is returned by Resolve when the provider holds nothing
// usable for the requested kind. Absorbed by the aggregator.
var ErrNoContent = errors.New("attachment: no content for requested kind")

// Value is the typed result of a resolution. Exactly one of the payload
// fields is populated, selected by Kind.
type Value struct {
	Kind     Kind
	URL      *url.URL // KindLink
	Text     string   // KindText
	Image    []byte   // KindImage
	Filename string   // KindImage: suggested payload filename, may be empty
}

// Provider is a transient handle to one offered item.
type Provider interface {
	// Conforms reports whether the item can resolve the given kind.
	Conforms(kind Kind) bool
	// Resolve produces the typed value for the given kind. It completes
	// exactly once per provider; a second call is undefined.
	Resolve(ctx context.Context, kind Kind) (Value, error)
}

// Classify returns the single kind the provider will be resolved as,
// probing link, then text, then image. Items matching nothing are
// reported as KindUnsupported and skipped by the caller.
func Classify(p Provider) Kind {
	for _, k := range classifyOrder {
		if p.Conforms(k) {
			return k
		}
	}
	return KindUnsupported
}
