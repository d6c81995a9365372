package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/export"
)

type stubCodeReader struct {
	details []models.QRDetail
	err     error
}

func (s *stubCodeReader) FindCodesByShipmentCode(ctx context.Context, shipmentCode string) ([]models.QRDetail, error) {
	return s.details, s.err
}

type stubImages map[string][]byte

func (s stubImages) ReadFile(name string) ([]byte, error) {
	raw, ok := s[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return raw, nil
}

type recordingBackend struct {
	ext   string
	calls int
	last  *export.Document
	err   error
}

func (b *recordingBackend) Render(ctx context.Context, doc *export.Document, opts export.PageOptions) ([]byte, error) {
	b.calls++
	b.last = doc
	if b.err != nil {
		return nil, b.err
	}
	return []byte("rendered:" + doc.Title), nil
}

func (b *recordingBackend) ContentType() string { return "application/octet-stream" }
func (b *recordingBackend) Extension() string   { return b.ext }

func labelPNG(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewGray(image.Rect(0, 0, 21, 21))))
	return buf.Bytes()
}

func sampleDetails(n int) []models.QRDetail {
	details := make([]models.QRDetail, 0, n)
	for i := 1; i <= n; i++ {
		image := fmt.Sprintf("%s/code-%d.png", exampleShipment, i)
		details = append(details, models.QRDetail{
			QRCode: models.QRCode{
				ID:          int64(100 + i),
				Code:        fmt.Sprintf("QR_%s_17_%d_1755648000000_abc%03d", exampleShipment, i, i),
				State:       models.QRStateGenerated,
				GeneratedAt: time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
				ImagePath:   &image,
			},
			CartonSequence: i,
			CartonTotal:    n,
			ArticleID:      17,
			ArticleRef:     "CH-200",
			DescriptionES:  "Silla",
			ShipmentCode:   exampleShipment,
			ClientName:     "Muebles Lopez",
			Destination:    "Valencia",
		})
	}
	return details
}

func TestDocumentServiceAssemblePaginatesFourPerPage(t *testing.T) {
	images := stubImages{}
	raw := labelPNG(t)
	for i := 1; i <= 10; i++ {
		images[fmt.Sprintf("%s/code-%d.png", exampleShipment, i)] = raw
	}
	svc := NewDocumentService(&stubCodeReader{details: sampleDetails(10)}, images, nil, nil, export.PageOptions{}, nil, nil)

	doc, err := svc.Assemble(context.Background(), exampleShipment)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)

	filled := []int{4, 4, 2}
	for i, page := range doc.Pages {
		require.Len(t, page.Slots, export.SlotsPerPage)
		count := 0
		for _, slot := range page.Slots {
			if slot.Entry != nil {
				count++
				assert.False(t, slot.Entry.Placeholder)
			}
		}
		assert.Equal(t, filled[i], count)
		assert.Equal(t, i+1, page.Header.PageIndex)
		assert.Equal(t, 3, page.Header.PageCount)
		assert.Equal(t, "Muebles Lopez", page.Header.ClientName)
	}
	assert.Nil(t, doc.Pages[2].Slots[2].Entry)
	assert.Nil(t, doc.Pages[2].Slots[3].Entry)
	assert.Equal(t, 10, doc.Entries())
	assert.Equal(t, int64(101), doc.CodeIDs()[0])
	assert.Contains(t, string(doc.Markup), "Página 3 de 3")
}

func TestDocumentServicePlaceholderForMissingImage(t *testing.T) {
	details := sampleDetails(2)
	details[1].ImagePath = nil
	images := stubImages{fmt.Sprintf("%s/code-1.png", exampleShipment): labelPNG(t)}
	svc := NewDocumentService(&stubCodeReader{details: details}, images, nil, nil, export.PageOptions{}, nil, nil)

	doc, err := svc.Assemble(context.Background(), exampleShipment)
	require.NoError(t, err)
	assert.False(t, doc.Pages[0].Slots[0].Entry.Placeholder)
	assert.True(t, doc.Pages[0].Slots[1].Entry.Placeholder)
	assert.Empty(t, doc.Pages[0].Slots[1].Entry.Image)
	assert.Contains(t, string(doc.Markup), "QR no disponible")
}

func TestDocumentServiceCorruptImageStillRendersPDF(t *testing.T) {
	details := sampleDetails(3)
	images := stubImages{
		fmt.Sprintf("%s/code-1.png", exampleShipment): []byte("not a png at all"),
		fmt.Sprintf("%s/code-2.png", exampleShipment): labelPNG(t),
		fmt.Sprintf("%s/code-3.png", exampleShipment): {0x89, 'P', 'N', 'G'},
	}
	svc := NewDocumentService(&stubCodeReader{details: details}, images, []export.Backend{export.NewPDFBackend()}, nil, export.PageOptions{}, nil, nil)

	payload, doc, err := svc.Render(context.Background(), exampleShipment, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
	slots := doc.Pages[0].Slots
	assert.True(t, slots[0].Entry.Placeholder)
	assert.Empty(t, slots[0].Entry.Image)
	assert.False(t, slots[1].Entry.Placeholder)
	assert.True(t, slots[2].Entry.Placeholder)
}

func TestDocumentServiceRenderWithoutCodesSkipsBackend(t *testing.T) {
	backend := &recordingBackend{ext: "pdf"}
	svc := NewDocumentService(&stubCodeReader{}, stubImages{}, []export.Backend{backend}, nil, export.PageOptions{}, nil, nil)

	_, _, err := svc.Render(context.Background(), exampleShipment, "pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNothingToRender))
	assert.Zero(t, backend.calls)
}

func TestDocumentServiceRenderSelectsBackend(t *testing.T) {
	pdf := &recordingBackend{ext: "pdf"}
	html := &recordingBackend{ext: "html"}
	metrics := NewMetricsService()
	svc := NewDocumentService(&stubCodeReader{details: sampleDetails(3)}, stubImages{}, []export.Backend{pdf, html}, nil, export.PageOptions{}, metrics, nil)

	payload, doc, err := svc.Render(context.Background(), exampleShipment, "html")
	require.NoError(t, err)
	assert.Equal(t, "rendered:Etiquetas "+exampleShipment, string(payload))
	assert.Equal(t, 1, html.calls)
	assert.Zero(t, pdf.calls)
	assert.Len(t, doc.Pages, 1)

	_, _, err = svc.Render(context.Background(), exampleShipment, "docx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	pdf.err = errors.New("renderer crashed")
	_, _, err = svc.Render(context.Background(), exampleShipment, "pdf")
	assert.True(t, errors.Is(err, appErrors.ErrRender))
	assert.Equal(t, 502, appErrors.FromError(err).Status)
}

func TestDocumentServiceManifest(t *testing.T) {
	details := sampleDetails(2)
	scanner := "dock-1"
	scanned := time.Date(2025, 8, 21, 9, 30, 0, 0, time.UTC)
	details[0].ScannedAt = &scanned
	details[0].ScannedBy = &scanner
	svc := NewDocumentService(&stubCodeReader{details: details}, nil, nil, nil, export.PageOptions{}, nil, nil)

	payload, count, err := svc.Manifest(context.Background(), exampleShipment)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "codigo_qr,estado,articulo_id"))
	assert.Contains(t, lines[1], "2025-08-21T09:30:00Z")
	assert.Contains(t, lines[1], "dock-1")

	_, _, err = svc.Manifest(context.Background(), "  ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
