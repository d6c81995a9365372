package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/export"
)

type documentCodeReader interface {
	FindCodesByShipmentCode(ctx context.Context, shipmentCode string) ([]models.QRDetail, error)
}

type imageReader interface {
	ReadFile(name string) ([]byte, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

var manifestHeaders = []string{
	"codigo_qr", "estado", "articulo_id", "referencia", "descripcion",
	"caja", "total_cajas", "fecha_generacion", "fecha_impresion", "fecha_escaneo", "escaneado_por",
}

// DocumentService assembles printable label documents for a shipment and hands
// them to a rendering backend.
type DocumentService struct {
	codes    documentCodeReader
	images   imageReader
	backends map[string]export.Backend
	csv      datasetRenderer
	opts     export.PageOptions
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewDocumentService wires the assembler. Backends are keyed by their extension.
func NewDocumentService(codes documentCodeReader, images imageReader, backends []export.Backend, csv datasetRenderer, opts export.PageOptions, metrics *MetricsService, logger *zap.Logger) *DocumentService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := make(map[string]export.Backend, len(backends))
	for _, b := range backends {
		registry[b.Extension()] = b
	}
	return &DocumentService{
		codes:    codes,
		images:   images,
		backends: registry,
		csv:      csv,
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Backend returns the backend registered for format.
func (s *DocumentService) Backend(format string) (export.Backend, bool) {
	b, ok := s.backends[format]
	return b, ok
}

// Assemble loads every code of the shipment and lays them out four per page.
// Labels whose raster is missing or unreadable get a placeholder.
func (s *DocumentService) Assemble(ctx context.Context, shipmentCode string) (*export.Document, error) {
	details, err := s.load(ctx, shipmentCode)
	if err != nil {
		return nil, err
	}

	entries := make([]export.Entry, 0, len(details))
	for _, d := range details {
		entry := export.Entry{
			CodeID:         d.ID,
			Code:           d.Code,
			ArticleRef:     d.ArticleRef,
			Description:    d.DescriptionES,
			CartonSequence: d.CartonSequence,
			CartonTotal:    d.CartonTotal,
		}
		entry.Image, entry.Placeholder = s.loadImage(d)
		entries = append(entries, entry)
	}

	generated := s.now()
	first := details[0]
	header := export.Header{
		ShipmentCode: first.ShipmentCode,
		ClientName:   first.ClientName,
		Destination:  first.Destination,
		GeneratedAt:  generated,
	}
	doc := &export.Document{
		Title:       "Etiquetas " + first.ShipmentCode,
		GeneratedAt: generated,
		Pages:       export.Paginate(entries, header),
	}
	markup, err := export.RenderMarkup(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRender.Code, appErrors.ErrRender.Status, "failed to build label markup")
	}
	doc.Markup = markup
	return doc, nil
}

// Render assembles the shipment and renders it through the backend for format.
func (s *DocumentService) Render(ctx context.Context, shipmentCode, format string) ([]byte, *export.Document, error) {
	backend, ok := s.Backend(format)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported document format %q", format))
	}
	doc, err := s.Assemble(ctx, shipmentCode)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	payload, err := backend.Render(ctx, doc, s.opts)
	if err != nil {
		s.metrics.ObserveDocumentRender(format, "error", time.Since(start))
		s.logger.Error("document render failed", zap.String("shipment", shipmentCode), zap.String("format", format), zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrRender.Code, appErrors.ErrRender.Status, "document rendering failed")
	}
	s.metrics.ObserveDocumentRender(format, "ok", time.Since(start))
	return payload, doc, nil
}

// Manifest renders the shipment's codes as a CSV table.
func (s *DocumentService) Manifest(ctx context.Context, shipmentCode string) ([]byte, int, error) {
	details, err := s.load(ctx, shipmentCode)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]map[string]string, 0, len(details))
	for _, d := range details {
		rows = append(rows, map[string]string{
			"codigo_qr":        d.Code,
			"estado":           string(d.State),
			"articulo_id":      strconv.FormatInt(d.ArticleID, 10),
			"referencia":       d.ArticleRef,
			"descripcion":      d.DescriptionES,
			"caja":             strconv.Itoa(d.CartonSequence),
			"total_cajas":      strconv.Itoa(d.CartonTotal),
			"fecha_generacion": d.GeneratedAt.Format(time.RFC3339),
			"fecha_impresion":  formatOptionalTime(d.PrintedAt),
			"fecha_escaneo":    formatOptionalTime(d.ScannedAt),
			"escaneado_por":    derefString(d.ScannedBy),
		})
	}
	payload, err := s.csv.Render(export.Dataset{Headers: manifestHeaders, Rows: rows})
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrRender.Code, appErrors.ErrRender.Status, "manifest rendering failed")
	}
	return payload, len(details), nil
}

func (s *DocumentService) load(ctx context.Context, shipmentCode string) ([]models.QRDetail, error) {
	shipmentCode = strings.TrimSpace(shipmentCode)
	if shipmentCode == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "shipment code is required")
	}
	details, err := s.codes.FindCodesByShipmentCode(ctx, shipmentCode)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load shipment codes")
	}
	if len(details) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNothingToRender, fmt.Sprintf("shipment %s has no issued codes", shipmentCode))
	}
	return details, nil
}

func (s *DocumentService) loadImage(d models.QRDetail) ([]byte, bool) {
	if d.ImagePath == nil || *d.ImagePath == "" || s.images == nil {
		return nil, true
	}
	raw, err := s.images.ReadFile(*d.ImagePath)
	if err != nil || len(raw) == 0 {
		s.logger.Debug("label image unavailable, using placeholder", zap.String("code", d.Code), zap.Error(err))
		return nil, true
	}
	if !export.DecodableImage(raw) {
		s.logger.Warn("label image is not a valid png, using placeholder", zap.String("code", d.Code), zap.String("path", *d.ImagePath))
		return nil, true
	}
	return raw, false
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
