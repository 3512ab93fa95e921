package attachment

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// FileItem offers a file's bytes. Images resolve as image payloads;
// HTML and PDF files resolve as extracted plain text so documents can
// be shared without the consumer learning their formats.
type FileItem struct {
	Name        string
	ContentType string // sniffed from Data when empty
	Data        []byte
}

func (f *FileItem) contentType() string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return http.DetectContentType(f.Data)
}

func (f *FileItem) Conforms(kind Kind) bool {
	ct := f.contentType()
	switch kind {
	case KindImage:
		return strings.HasPrefix(ct, "image/")
	case KindText:
		return strings.HasPrefix(ct, "text/") || ct == "application/pdf" ||
			strings.HasPrefix(ct, "application/pdf;")
	default:
		return false
	}
}

func (f *FileItem) Resolve(ctx context.Context, kind Kind) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}
	if len(f.Data) == 0 || !f.Conforms(kind) {
		return Value{}, ErrNoContent
	}

	ct := f.contentType()
	switch kind {
	case KindImage:
		return Value{Kind: KindImage, Image: f.Data, Filename: f.Name}, nil
	case KindText:
		var text string
		var err error
		switch {
		case strings.HasPrefix(ct, "text/html"):
			text, err = extractHTMLText(f.Data)
		case strings.HasPrefix(ct, "application/pdf"):
			text, err = extractPDFText(f.Data)
		default:
			text = string(f.Data)
		}
		if err != nil {
			return Value{}, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return Value{}, ErrNoContent
		}
		return Value{Kind: KindText, Text: text}, nil
	default:
		return Value{}, ErrNoContent
	}
}

// extractHTMLText strips markup and returns the visible text content.
func extractHTMLText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String(), nil
}

// extractPDFText returns the concatenated plain text of a PDF document.
func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
