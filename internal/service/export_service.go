package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	dto "github.com/noah-isme/packing-qr-api/internal/dto"
	"github.com/noah-isme/packing-qr-api/pkg/export"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/storage"
)

type documentBuilder interface {
	Render(ctx context.Context, shipmentCode, format string) ([]byte, *export.Document, error)
	Manifest(ctx context.Context, shipmentCode string) ([]byte, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type printMarker interface {
	MarkPrinted(ctx context.Context, ids []int64) (int64, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders shipment documents, stores them and issues signed download links.
type ExportService struct {
	documents documentBuilder
	printed   printMarker
	storage   fileStorage
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(documents documentBuilder, printed printMarker, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		documents: documents,
		printed:   printed,
		storage:   files,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders, stores and signs a document for the shipment. Printable
// formats stamp the print time on every code they contain.
func (s *ExportService) Generate(ctx context.Context, shipmentCode string, format dto.ExportFormat) (*dto.ExportResult, error) {
	if format == "" {
		format = dto.ExportFormatPDF
	}
	result := &dto.ExportResult{ShipmentCode: shipmentCode, Format: format}

	var (
		payload []byte
		doc     *export.Document
		err     error
	)
	if format == dto.ExportFormatCSV {
		payload, result.Labels, err = s.documents.Manifest(ctx, shipmentCode)
	} else {
		payload, doc, err = s.documents.Render(ctx, shipmentCode, string(format))
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(shipmentCode, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to store document")
	}
	token, expiresAt, err := s.signer.Generate(shipmentCode, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	result.RelativePath = relPath
	result.Token = token
	result.URL = fmt.Sprintf("%s/export/%s", prefix, token)
	result.ExpiresAt = expiresAt

	if doc != nil {
		result.Pages = len(doc.Pages)
		result.Labels = doc.Entries()
		changed, err := s.printed.MarkPrinted(ctx, doc.CodeIDs())
		if err != nil {
			s.logger.Warn("document stored but print stamp failed", zap.String("shipment", shipmentCode), zap.Error(err))
		}
		result.Printed = changed
	}
	return result, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (shipmentCode, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open opens a stored document.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes stored documents older than the result TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

// RunCleanup deletes expired documents every interval until ctx ends.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup()
			if err != nil {
				s.logger.Warn("document cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("expired documents removed", zap.Int("count", len(removed)))
			}
		}
	}
}

func (s *ExportService) buildFilename(shipmentCode string, format dto.ExportFormat) string {
	kind := "labels"
	if format == dto.ExportFormatCSV {
		kind = "manifest"
	}
	return fmt.Sprintf("%s/%s_%s_%s.%s", shipmentCode, kind, shipmentCode, s.now().Format("20060102T150405.000"), format)
}
