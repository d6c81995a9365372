package export

import (
	"bytes"
	"context"
	"image/png"
	"time"
)

// SlotsPerPage is the number of labels laid out on one printed page (2x2 grid).
const SlotsPerPage = 4

// Header is repeated on every page of a label document.
type Header struct {
	ShipmentCode string
	ClientName   string
	Destination  string
	PageIndex    int
	PageCount    int
	GeneratedAt  time.Time
}

// Entry is one printable carton label.
type Entry struct {
	CodeID         int64
	Code           string
	ArticleRef     string
	Description    string
	CartonSequence int
	CartonTotal    int
	Image          []byte
	Placeholder    bool
}

// DecodableImage reports whether raw carries a PNG header the renderers can embed.
func DecodableImage(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	_, err := png.DecodeConfig(bytes.NewReader(raw))
	return err == nil
}

// Slot is a grid cell; a nil Entry is an intentionally blank cell.
type Slot struct {
	Entry *Entry
}

// Page holds exactly SlotsPerPage slots.
type Page struct {
	Header Header
	Slots  []Slot
}

// Document is a paginated label sheet plus its markup rendition.
type Document struct {
	Title       string
	GeneratedAt time.Time
	Pages       []Page
	Markup      []byte
}

// Entries counts the non-blank slots across all pages.
func (d *Document) Entries() int {
	count := 0
	for _, page := range d.Pages {
		for _, slot := range page.Slots {
			if slot.Entry != nil {
				count++
			}
		}
	}
	return count
}

// CodeIDs lists the code identifiers printed in the document, in layout order.
func (d *Document) CodeIDs() []int64 {
	ids := make([]int64, 0, len(d.Pages)*SlotsPerPage)
	for _, page := range d.Pages {
		for _, slot := range page.Slots {
			if slot.Entry != nil {
				ids = append(ids, slot.Entry.CodeID)
			}
		}
	}
	return ids
}

// PageOptions are physical layout settings handed to a backend.
type PageOptions struct {
	Format   string
	MarginMM float64
}

// Backend turns an assembled document into bytes of a concrete format.
type Backend interface {
	Render(ctx context.Context, doc *Document, opts PageOptions) ([]byte, error)
	ContentType() string
	Extension() string
}

// Paginate splits entries into pages of SlotsPerPage, padding the last page with blank slots.
// Header page index and count are filled in per page.
func Paginate(entries []Entry, header Header) []Page {
	if len(entries) == 0 {
		return nil
	}
	pageCount := (len(entries) + SlotsPerPage - 1) / SlotsPerPage
	pages := make([]Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		h := header
		h.PageIndex = i + 1
		h.PageCount = pageCount

		slots := make([]Slot, SlotsPerPage)
		for j := 0; j < SlotsPerPage; j++ {
			idx := i*SlotsPerPage + j
			if idx < len(entries) {
				entry := entries[idx]
				slots[j] = Slot{Entry: &entry}
			}
		}
		pages = append(pages, Page{Header: h, Slots: slots})
	}
	return pages
}
