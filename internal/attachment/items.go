package attachment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// LinkItem offers an absolute URL.
type LinkItem struct {
	Raw string
}

func (l *LinkItem) Conforms(kind Kind) bool {
	return kind == KindLink
}

func (l *LinkItem) Resolve(ctx context.Context, kind Kind) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}
	if kind != KindLink {
		return Value{}, ErrNoContent
	}
	u, err := url.Parse(strings.TrimSpace(l.Raw))
	if err != nil {
		return Value{}, fmt.Errorf("parsing link: %w", err)
	}
	if !u.IsAbs() {
		return Value{}, fmt.Errorf("parsing link: %q is not absolute", l.Raw)
	}
	return Value{Kind: KindLink, URL: u}, nil
}

// TextItem offers plain shared text.
type TextItem struct {
	Text string
}

func (t *TextItem) Conforms(kind Kind) bool {
	return kind == KindText
}

func (t *TextItem) Resolve(ctx context.Context, kind Kind) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}
	if kind != KindText || t.Text == "" {
		return Value{}, ErrNoContent
	}
	return Value{Kind: KindText, Text: t.Text}, nil
}
