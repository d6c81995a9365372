package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	dto "github.com/noah-isme/packing-qr-api/internal/dto"
	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/qrcode"
)

type packingShipmentReader interface {
	FindByCode(ctx context.Context, code string) (*models.Shipment, error)
}

type packingArticleLister interface {
	ListByShipment(ctx context.Context, shipmentID int64) ([]models.Article, error)
}

type codeImageWriter interface {
	RenderToFile(ctx context.Context, payload, destPath string, opts qrcode.ImageOptions) error
}

type imagePathResolver interface {
	Path(filename string) string
}

type auditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type notificationPublisher interface {
	Publish(n Notification)
}

type shipmentExporter interface {
	Generate(ctx context.Context, shipmentCode string, format dto.ExportFormat) (*dto.ExportResult, error)
}

// PackingConfig tunes orchestration.
type PackingConfig struct {
	Image    qrcode.ImageOptions
	StatsTTL time.Duration
}

// PackingService sequences issuance, image rendering, document export and scans,
// recording audit entries and notifications around each.
type PackingService struct {
	issuer    CodeIssuer
	shipments packingShipmentReader
	articles  packingArticleLister
	images    codeImageWriter
	imageDir  imagePathResolver
	exports   shipmentExporter
	audit     auditRecorder
	notifier  notificationPublisher
	cache     *CacheService
	metrics   *MetricsService
	cfg       PackingConfig
	logger    *zap.Logger
}

// NewPackingService wires the orchestrator.
func NewPackingService(
	issuer CodeIssuer,
	shipments packingShipmentReader,
	articles packingArticleLister,
	images codeImageWriter,
	imageDir imagePathResolver,
	exports shipmentExporter,
	audit auditRecorder,
	notifier notificationPublisher,
	cache *CacheService,
	metrics *MetricsService,
	cfg PackingConfig,
	logger *zap.Logger,
) *PackingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Image.Width <= 0 {
		cfg.Image = qrcode.DefaultImageOptions()
	}
	return &PackingService{
		issuer:    issuer,
		shipments: shipments,
		articles:  articles,
		images:    images,
		imageDir:  imageDir,
		exports:   exports,
		audit:     audit,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// IssueArticle issues codes for an article and renders one raster per code.
// Image failures are reported in the result and never undo the issuance.
func (s *PackingService) IssueArticle(ctx context.Context, articleID int64, force bool, actor string) (*dto.OperationResult, error) {
	res, err := s.issuer.IssueForArticle(ctx, IssueRequest{ArticleID: articleID, ForceRegenerate: force})
	if err != nil {
		return nil, err
	}

	failures := 0
	for i := range res.Codes {
		if !s.renderImage(ctx, res.ShipmentCode, &res.Codes[i]) {
			failures++
		}
	}
	s.metrics.RecordImageFailures(failures)

	s.invalidateStats(ctx)
	s.emitAudit(ctx, actor, models.AuditActionQRIssue, "article", strconv.FormatInt(articleID, 10), map[string]interface{}{
		"shipment": res.ShipmentCode,
		"issued":   len(res.Codes),
		"replaced": res.Replaced,
		"force":    force,
	})
	s.notify(Notification{Kind: NotificationCodesIssued, ShipmentCode: res.ShipmentCode, ArticleID: articleID, Count: len(res.Codes), Actor: actor})

	message := fmt.Sprintf("issued %d codes", len(res.Codes))
	if failures > 0 {
		message = fmt.Sprintf("%s; %d of %d images failed", message, failures, len(res.Codes))
	}
	return &dto.OperationResult{
		Success: true,
		Message: message,
		Data: dto.IssueArticleData{
			ArticleID:     res.ArticleID,
			ShipmentCode:  res.ShipmentCode,
			Codes:         res.Codes,
			Replaced:      res.Replaced,
			ImageFailures: failures,
		},
	}, nil
}

// IssueShipment issues every article of a shipment, each in its own transaction.
func (s *PackingService) IssueShipment(ctx context.Context, shipmentCode string, force bool, actor string) (*dto.OperationResult, error) {
	shipment, err := s.shipments.FindByCode(ctx, shipmentCode)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load shipment")
	}
	if shipment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("shipment %s not found", shipmentCode))
	}
	articles, err := s.articles.ListByShipment(ctx, shipment.ID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list articles")
	}
	if len(articles) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shipment %s has no articles", shipmentCode))
	}

	data := dto.IssueShipmentData{ShipmentCode: shipment.Code, Articles: make([]dto.ArticleIssueOutcome, 0, len(articles))}
	for _, article := range articles {
		outcome := dto.ArticleIssueOutcome{ArticleID: article.ID, Reference: article.Reference}
		result, err := s.IssueArticle(ctx, article.ID, force, actor)
		var conflict *IssuanceConflictError
		switch {
		case err == nil:
			if issued, ok := result.Data.(dto.IssueArticleData); ok {
				outcome.Issued = len(issued.Codes)
			}
			data.Issued += outcome.Issued
		case errors.As(err, &conflict):
			outcome.Conflict = true
			outcome.Error = conflict.Error()
			data.Conflicts++
		default:
			outcome.Error = err.Error()
			data.Failures++
		}
		data.Articles = append(data.Articles, outcome)
	}

	return &dto.OperationResult{
		Success: data.Failures == 0,
		Data:    data,
		Message: fmt.Sprintf("issued %d codes across %d articles (%d conflicts, %d failures)", data.Issued, len(articles), data.Conflicts, data.Failures),
	}, nil
}

// RegenerateCode replaces a single code and renders its new raster.
func (s *PackingService) RegenerateCode(ctx context.Context, id int64, actor string) (*dto.OperationResult, error) {
	code, err := s.issuer.RegenerateCode(ctx, id)
	if err != nil {
		return nil, err
	}
	parsed, _ := qrcode.Parse(code.Code)
	imageOK := s.renderImage(ctx, parsed.ShipmentCode, code)
	if !imageOK {
		s.metrics.RecordImageFailures(1)
	}

	s.invalidateStats(ctx)
	s.emitAudit(ctx, actor, models.AuditActionQRRegenerate, "qr_code", strconv.FormatInt(id, 10), map[string]interface{}{
		"code": code.Code,
	})
	s.notify(Notification{Kind: NotificationCodeRegenerated, ShipmentCode: parsed.ShipmentCode, ArticleID: parsed.ArticleID, Count: 1, Actor: actor})

	message := "code regenerated"
	if !imageOK {
		message += "; image failed"
	}
	return &dto.OperationResult{Success: true, Data: code, Message: message}, nil
}

// ExportShipment renders, stores and links a label document for the shipment.
func (s *PackingService) ExportShipment(ctx context.Context, shipmentCode string, format dto.ExportFormat, actor string) (*dto.OperationResult, error) {
	result, err := s.exports.Generate(ctx, shipmentCode, format)
	if err != nil {
		return nil, err
	}
	if result.Printed > 0 {
		s.invalidateStats(ctx)
	}
	s.emitAudit(ctx, actor, models.AuditActionExport, "shipment", shipmentCode, map[string]interface{}{
		"format": result.Format,
		"labels": result.Labels,
		"pages":  result.Pages,
	})
	s.notify(Notification{Kind: NotificationDocumentExported, ShipmentCode: shipmentCode, Count: result.Labels, URL: result.URL, Actor: actor})
	return &dto.OperationResult{
		Success: true,
		Data:    result,
		Message: fmt.Sprintf("exported %d labels as %s", result.Labels, result.Format),
	}, nil
}

// ScanCode records a scan. The authenticated actor stands in for a missing scanner identity.
func (s *PackingService) ScanCode(ctx context.Context, req dto.ScanCodeRequest, actor string) (*dto.OperationResult, error) {
	scannedBy := req.ScannedBy
	if scannedBy == nil && actor != "" {
		scannedBy = &actor
	}
	detail, err := s.issuer.RecordScan(ctx, ScanRequest{Code: req.Code, ScannedBy: scannedBy})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.emitAudit(ctx, actor, models.AuditActionQRScan, "qr_code", strconv.FormatInt(detail.ID, 10), map[string]interface{}{
		"code":       detail.Code,
		"scanned_by": derefString(scannedBy),
	})
	return &dto.OperationResult{
		Success: true,
		Data:    detail,
		Message: fmt.Sprintf("carton %d of %d scanned", detail.CartonSequence, detail.CartonTotal),
	}, nil
}

// Verify reports whether a string is a well-formed, known code.
func (s *PackingService) Verify(ctx context.Context, code string) (*dto.CodeVerification, error) {
	out := &dto.CodeVerification{Code: code}
	parsed, ok := qrcode.Parse(code)
	if !ok {
		return out, nil
	}
	out.Valid = true
	out.Regenerated = parsed.Regenerated
	issued := parsed.IssuedAt()
	out.IssuedAt = &issued

	detail, err := s.issuer.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return out, nil
		}
		return nil, err
	}
	out.Known = true
	out.Detail = detail
	return out, nil
}

// Stats returns per-state counts, served from cache when possible. cached
// reports whether the cache answered.
func (s *PackingService) Stats(ctx context.Context, filter models.QRStatsFilter) (stats *models.QRStats, cached bool, err error) {
	key := statsCacheKey(filter)
	var hit models.QRStats
	if s.cache.Get(ctx, key, &hit) {
		return &hit, true, nil
	}
	stats, err = s.issuer.Stats(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, key, stats, s.cfg.StatsTTL)
	return stats, false, nil
}

// Duplicates lists code strings held by more than one row.
func (s *PackingService) Duplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	return s.issuer.FindDuplicates(ctx)
}

// CodesForArticle lists an article's codes.
func (s *PackingService) CodesForArticle(ctx context.Context, articleID int64) ([]models.QRCode, error) {
	return s.issuer.CodesForArticle(ctx, articleID)
}

func (s *PackingService) renderImage(ctx context.Context, shipmentCode string, code *models.QRCode) bool {
	name := fmt.Sprintf("%s/%s.png", shipmentCode, code.Code)
	dest := s.imageDir.Path(name)
	if dest == "" {
		s.logger.Warn("image path rejected", zap.String("name", name))
		return false
	}
	if err := s.images.RenderToFile(ctx, code.Code, dest, s.cfg.Image); err != nil {
		s.logger.Warn("code image render failed", zap.String("code", code.Code), zap.Error(err))
		return false
	}
	meta := models.QRRenderingMeta{ImagePath: name, Format: "png", Size: s.cfg.Image.Width}
	if err := s.issuer.AttachRendering(ctx, code.ID, meta); err != nil {
		s.logger.Warn("code image metadata not stored", zap.String("code", code.Code), zap.Error(err))
		return false
	}
	code.ImagePath = &name
	code.Format = meta.Format
	code.Size = meta.Size
	return true
}

func (s *PackingService) invalidateStats(ctx context.Context) {
	s.cache.Invalidate(ctx, "stats:*")
}

func (s *PackingService) notify(n Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(n)
}

func (s *PackingService) emitAudit(ctx context.Context, actor, action, resource, resourceID string, payload map[string]interface{}) {
	writeAudit(ctx, s.audit, s.logger, actor, action, resource, resourceID, payload)
}

func statsCacheKey(filter models.QRStatsFilter) string {
	shipment := filter.ShipmentCode
	if shipment == "" {
		shipment = "_all"
	}
	return fmt.Sprintf("stats:%s:%d", shipment, filter.ArticleID)
}
