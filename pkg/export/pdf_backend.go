package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfHeaderHeight = 14.0
	pdfCaptionLines = 3
	pdfLineHeight   = 4.5
)

// PDFBackend draws label pages in a 2x2 grid with gofpdf.
type PDFBackend struct{}

// NewPDFBackend constructs a PDFBackend.
func NewPDFBackend() *PDFBackend {
	return &PDFBackend{}
}

// Render lays out every page of doc and returns the PDF bytes.
func (b *PDFBackend) Render(ctx context.Context, doc *Document, opts PageOptions) ([]byte, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, fmt.Errorf("pdf requires at least one page")
	}
	format := opts.Format
	if format == "" {
		format = "A4"
	}
	margin := opts.MarginMM
	if margin <= 0 {
		margin = 10
	}

	pdf := gofpdf.New("P", "mm", format, "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(doc.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	cellW := (pageW - 2*margin) / 2
	cellH := (pageH - 2*margin - pdfHeaderHeight) / 2

	for pageIdx, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf.AddPage()
		drawPageHeader(pdf, tr, page.Header, margin, pageW)

		for slotIdx, slot := range page.Slots {
			if slot.Entry == nil {
				continue
			}
			col := float64(slotIdx % 2)
			row := float64(slotIdx / 2)
			x := margin + col*cellW
			y := margin + pdfHeaderHeight + row*cellH
			drawLabel(pdf, tr, slot.Entry, fmt.Sprintf("qr-%d-%d", pageIdx, slotIdx), x, y, cellW, cellH)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *PDFBackend) ContentType() string { return "application/pdf" }

func (b *PDFBackend) Extension() string { return "pdf" }

func drawPageHeader(pdf *gofpdf.Fpdf, tr func(string) string, h Header, margin, pageW float64) {
	pdf.SetXY(margin, margin)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(pageW-2*margin, 6, tr(fmt.Sprintf("%s - %s - %s", h.ShipmentCode, h.ClientName, h.Destination)), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat((pageW-2*margin)/2, 5, tr(h.GeneratedAt.Format("2006-01-02 15:04")), "", 0, "L", false, 0, "")
	pdf.CellFormat((pageW-2*margin)/2, 5, tr(fmt.Sprintf("Página %d de %d", h.PageIndex, h.PageCount)), "", 1, "R", false, 0, "")
}

func drawLabel(pdf *gofpdf.Fpdf, tr func(string) string, entry *Entry, imageName string, x, y, w, h float64) {
	pad := 3.0
	pdf.SetDrawColor(34, 34, 34)
	pdf.Rect(x+1, y+1, w-2, h-2, "D")

	side := h - 2*pad - pdfCaptionLines*pdfLineHeight - 2
	if side > w-2*pad {
		side = w - 2*pad
	}
	imgX := x + (w-side)/2
	imgY := y + pad

	if entry.Placeholder || !DecodableImage(entry.Image) {
		pdf.SetDrawColor(136, 136, 136)
		pdf.SetDashPattern([]float64{2, 1}, 0)
		pdf.Rect(imgX, imgY, side, side, "D")
		pdf.SetDashPattern([]float64{}, 0)
		pdf.SetFont("Arial", "I", 9)
		pdf.SetXY(imgX, imgY+side/2-3)
		pdf.CellFormat(side, 6, tr("QR no disponible"), "", 0, "C", false, 0, "")
	} else {
		opt := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(entry.Image))
		pdf.ImageOptions(imageName, imgX, imgY, side, side, false, opt, 0, "")
	}

	pdf.SetXY(x+pad, imgY+side+2)
	pdf.SetFont("Courier", "", 7)
	pdf.CellFormat(w-2*pad, pdfLineHeight, entry.Code, "", 2, "C", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(w-2*pad, pdfLineHeight, tr(fmt.Sprintf("%s %s", entry.ArticleRef, entry.Description)), "", 2, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(w-2*pad, pdfLineHeight, tr(fmt.Sprintf("Caja %d de %d", entry.CartonSequence, entry.CartonTotal)), "", 2, "C", false, 0, "")
}
