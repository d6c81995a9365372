package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
)

// InstrumentedIssuer logs and meters every engine call.
type InstrumentedIssuer struct {
	next    CodeIssuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewInstrumentedIssuer decorates next.
func NewInstrumentedIssuer(next CodeIssuer, metrics *MetricsService, logger *zap.Logger) *InstrumentedIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedIssuer{next: next, metrics: metrics, logger: logger.Named("issuer")}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var conflict *IssuanceConflictError
	if errors.As(err, &conflict) || errors.Is(err, appErrors.ErrConflict) {
		return "conflict"
	}
	if errors.Is(err, appErrors.ErrNotFound) {
		return "not_found"
	}
	if errors.Is(err, appErrors.ErrValidation) {
		return "invalid"
	}
	return "error"
}

func (i *InstrumentedIssuer) finish(op string, start time.Time, err error, fields ...zap.Field) {
	outcome := outcomeOf(err)
	elapsed := time.Since(start)
	i.metrics.ObserveEngineOperation(op, outcome, elapsed)
	fields = append(fields, zap.String("op", op), zap.String("outcome", outcome), zap.Duration("elapsed", elapsed))
	switch outcome {
	case "ok":
		i.logger.Debug("engine call", fields...)
	case "error":
		i.logger.Error("engine call failed", append(fields, zap.Error(err))...)
	default:
		i.logger.Info("engine call rejected", append(fields, zap.Error(err))...)
	}
}

func (i *InstrumentedIssuer) IssueForArticle(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	start := time.Now()
	res, err := i.next.IssueForArticle(ctx, req)
	issued := 0
	if res != nil {
		issued = len(res.Codes)
	}
	switch outcomeOf(err) {
	case "ok":
		i.metrics.RecordIssuance("issued", issued)
	case "conflict":
		i.metrics.RecordIssuance("conflict", 0)
	default:
		i.metrics.RecordIssuance("error", 0)
	}
	i.finish("issue", start, err,
		zap.Int64("article_id", req.ArticleID),
		zap.Bool("force", req.ForceRegenerate),
		zap.Int("issued", issued))
	return res, err
}

func (i *InstrumentedIssuer) RegenerateCode(ctx context.Context, id int64) (*models.QRCode, error) {
	start := time.Now()
	code, err := i.next.RegenerateCode(ctx, id)
	i.finish("regenerate", start, err, zap.Int64("code_id", id))
	return code, err
}

func (i *InstrumentedIssuer) RecordScan(ctx context.Context, req ScanRequest) (*models.QRDetail, error) {
	start := time.Now()
	detail, err := i.next.RecordScan(ctx, req)
	i.metrics.RecordScan(outcomeOf(err))
	i.finish("scan", start, err, zap.String("code", req.Code))
	return detail, err
}

func (i *InstrumentedIssuer) Lookup(ctx context.Context, code string) (*models.QRDetail, error) {
	start := time.Now()
	detail, err := i.next.Lookup(ctx, code)
	i.finish("lookup", start, err, zap.String("code", code))
	return detail, err
}

func (i *InstrumentedIssuer) CodesForArticle(ctx context.Context, articleID int64) ([]models.QRCode, error) {
	start := time.Now()
	codes, err := i.next.CodesForArticle(ctx, articleID)
	i.finish("codes_for_article", start, err, zap.Int64("article_id", articleID))
	return codes, err
}

func (i *InstrumentedIssuer) FindDuplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	start := time.Now()
	groups, err := i.next.FindDuplicates(ctx)
	i.finish("duplicates", start, err, zap.Int("groups", len(groups)))
	if len(groups) > 0 {
		i.logger.Warn("duplicate codes present", zap.Int("groups", len(groups)))
	}
	return groups, err
}

func (i *InstrumentedIssuer) Stats(ctx context.Context, filter models.QRStatsFilter) (*models.QRStats, error) {
	start := time.Now()
	stats, err := i.next.Stats(ctx, filter)
	i.finish("stats", start, err, zap.String("shipment", filter.ShipmentCode), zap.Int64("article_id", filter.ArticleID))
	return stats, err
}

func (i *InstrumentedIssuer) MarkPrinted(ctx context.Context, ids []int64) (int64, error) {
	start := time.Now()
	changed, err := i.next.MarkPrinted(ctx, ids)
	i.finish("mark_printed", start, err, zap.Int("requested", len(ids)), zap.Int64("changed", changed))
	return changed, err
}

func (i *InstrumentedIssuer) AttachRendering(ctx context.Context, id int64, meta models.QRRenderingMeta) error {
	start := time.Now()
	err := i.next.AttachRendering(ctx, id, meta)
	i.finish("attach_rendering", start, err, zap.Int64("code_id", id))
	return err
}
