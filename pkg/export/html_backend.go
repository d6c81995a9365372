package export

import (
	"context"
	"fmt"
)

// HTMLBackend hands back the document markup for browser printing.
type HTMLBackend struct{}

// NewHTMLBackend constructs an HTMLBackend.
func NewHTMLBackend() *HTMLBackend {
	return &HTMLBackend{}
}

// Render returns the stored markup, producing it when the document has none.
func (b *HTMLBackend) Render(ctx context.Context, doc *Document, _ PageOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	if len(doc.Markup) > 0 {
		return doc.Markup, nil
	}
	return RenderMarkup(doc)
}

func (b *HTMLBackend) ContentType() string { return "text/html; charset=utf-8" }

func (b *HTMLBackend) Extension() string { return "html" }
