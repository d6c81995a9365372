package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/packing-qr-api/internal/models"
	"github.com/noah-isme/packing-qr-api/internal/repository"
	"github.com/noah-isme/packing-qr-api/pkg/database"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/qrcode"
)

type txRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type issuanceArticleStore interface {
	FindWithShipment(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ArticleContext, error)
	LockForIssuance(ctx context.Context, exec sqlx.ExtContext, id int64) (bool, error)
}

type issuanceCartonStore interface {
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, articleID int64, total int, contents string) ([]models.Carton, error)
	LockByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.Carton, error)
}

type qrCodeStore interface {
	FindCodesByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.QRCode, error)
	FindByID(ctx context.Context, id int64) (*models.QRCode, error)
	FindCodeByValue(ctx context.Context, value string) (*models.QRCode, error)
	FindDetailByValue(ctx context.Context, value string) (*models.QRDetail, error)
	DeleteCodesByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) (int64, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, code *models.QRCode) error
	UpdateCode(ctx context.Context, id int64, value string, state models.QRState, at time.Time) error
	MarkScanned(ctx context.Context, id int64, at time.Time, by *string) error
	MarkPrinted(ctx context.Context, ids []int64, at time.Time) (int64, error)
	UpdateRendering(ctx context.Context, id int64, meta models.QRRenderingMeta) error
	FindDuplicates(ctx context.Context) ([]models.DuplicateGroup, error)
	Stats(ctx context.Context, filter models.QRStatsFilter) (*models.QRStats, error)
}

// CodeIssuer is the issuance engine surface used by orchestration and handlers.
type CodeIssuer interface {
	IssueForArticle(ctx context.Context, req IssueRequest) (*IssueResult, error)
	RegenerateCode(ctx context.Context, id int64) (*models.QRCode, error)
	RecordScan(ctx context.Context, req ScanRequest) (*models.QRDetail, error)
	Lookup(ctx context.Context, code string) (*models.QRDetail, error)
	CodesForArticle(ctx context.Context, articleID int64) ([]models.QRCode, error)
	FindDuplicates(ctx context.Context) ([]models.DuplicateGroup, error)
	Stats(ctx context.Context, filter models.QRStatsFilter) (*models.QRStats, error)
	MarkPrinted(ctx context.Context, ids []int64) (int64, error)
	AttachRendering(ctx context.Context, id int64, meta models.QRRenderingMeta) error
}

// IssueRequest asks for one code per carton of an article.
type IssueRequest struct {
	ArticleID       int64 `validate:"required,gt=0"`
	ForceRegenerate bool
}

// IssueResult carries the freshly inserted codes ordered by carton sequence.
type IssueResult struct {
	ArticleID      int64
	ShipmentCode   string
	Codes          []models.QRCode
	Replaced       int64
	CartonsCreated int
}

// ScanRequest is a scanned label string plus the scanning identity.
type ScanRequest struct {
	Code      string `validate:"required"`
	ScannedBy *string
}

// IssuanceConflictError reports an article that already has codes.
type IssuanceConflictError struct {
	ArticleID int64
	Existing  []models.QRCode
}

func (e *IssuanceConflictError) Error() string {
	return fmt.Sprintf("article %d already has %d codes", e.ArticleID, len(e.Existing))
}

// Unwrap exposes the conflict as a typed HTTP-aware error.
func (e *IssuanceConflictError) Unwrap() error {
	return appErrors.Clone(appErrors.ErrConflict, "codes already issued for article; force regeneration to replace them")
}

const regenerateAttempts = 3

// QRServiceConfig sets the raster metadata recorded on fresh rows.
type QRServiceConfig struct {
	Format string
	Size   int
}

// QRService is the issuance engine. It is the only writer of code rows.
type QRService struct {
	tx        txRunner
	articles  issuanceArticleStore
	cartons   issuanceCartonStore
	codes     qrCodeStore
	generator *qrcode.Generator
	cfg       QRServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewQRService wires the engine.
func NewQRService(
	tx txRunner,
	articles issuanceArticleStore,
	cartons issuanceCartonStore,
	codes qrCodeStore,
	generator *qrcode.Generator,
	cfg QRServiceConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *QRService {
	if generator == nil {
		generator = qrcode.NewGenerator()
	}
	if cfg.Format == "" {
		cfg.Format = "png"
	}
	if cfg.Size <= 0 {
		cfg.Size = qrcode.DefaultImageOptions().Width
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QRService{
		tx:        tx,
		articles:  articles,
		cartons:   cartons,
		codes:     codes,
		generator: generator,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IssueForArticle creates the article's cartons when missing and binds one fresh
// code to each of them inside a single transaction.
func (s *QRService) IssueForArticle(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issuance request")
	}

	article, err := s.articles.FindWithShipment(ctx, nil, req.ArticleID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load article")
	}
	if article == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("article %d not found", req.ArticleID))
	}
	if article.CartonCount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("article %d declares no cartons", article.ID))
	}
	if !qrcode.ValidShipmentCode(article.ShipmentCode) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shipment code %q cannot be embedded in a code", article.ShipmentCode))
	}

	result := &IssueResult{ArticleID: article.ID, ShipmentCode: article.ShipmentCode}
	err = s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		locked, err := s.articles.LockForIssuance(ctx, exec, article.ID)
		if err != nil {
			return err
		}
		if !locked {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("article %d not found", article.ID))
		}

		cartons, err := s.cartons.LockByArticle(ctx, exec, article.ID)
		if err != nil {
			return err
		}
		if len(cartons) == 0 {
			cartons, err = s.cartons.BulkCreate(ctx, exec, article.ID, article.CartonCount, cartonContents(article))
			if err != nil {
				return err
			}
			result.CartonsCreated = len(cartons)
		} else if !models.ContiguousCartons(cartons, article.CartonCount) {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("cartons of article %d are not numbered 1..%d", article.ID, article.CartonCount))
		}

		existing, err := s.codes.FindCodesByArticle(ctx, exec, article.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			if !req.ForceRegenerate {
				return &IssuanceConflictError{ArticleID: article.ID, Existing: existing}
			}
			if result.Replaced, err = s.codes.DeleteCodesByArticle(ctx, exec, article.ID); err != nil {
				return err
			}
		}

		codes := make([]models.QRCode, 0, len(cartons))
		for _, carton := range cartons {
			value, err := s.generator.Generate(article.ShipmentCode, article.ID, carton.Sequence, false)
			if err != nil {
				return fmt.Errorf("generate code for carton %d: %w", carton.Sequence, err)
			}
			row := models.QRCode{
				CartonID:    carton.ID,
				Code:        value,
				State:       models.QRStateGenerated,
				GeneratedAt: s.now(),
				Format:      s.cfg.Format,
				Size:        s.cfg.Size,
			}
			if err := s.codes.Insert(ctx, exec, &row); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "code collision while issuing")
				}
				return err
			}
			codes = append(codes, row)
		}
		result.Codes = codes
		return nil
	})
	if err != nil {
		return nil, normaliseStoreError(err, "failed to issue codes")
	}
	return result, nil
}

// RegenerateCode replaces one row's code with an RGN code keeping its identifiers.
func (s *QRService) RegenerateCode(ctx context.Context, id int64) (*models.QRCode, error) {
	row, err := s.codes.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load code")
	}
	if row == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("code %d not found", id))
	}

	value, err := s.unusedRegeneration(ctx, row.Code)
	if err != nil {
		return nil, err
	}
	at := s.now()
	if err := s.codes.UpdateCode(ctx, id, value, models.QRStateRegenerated, at); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("code %d not found", id))
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "code collision while regenerating")
		}
		return nil, appErrors.Storage(err, "failed to regenerate code")
	}

	updated := *row
	updated.Code = value
	updated.State = models.QRStateRegenerated
	updated.GeneratedAt = at
	updated.PrintedAt = nil
	updated.ScannedAt = nil
	updated.ScannedBy = nil
	updated.ImagePath = nil
	return &updated, nil
}

// unusedRegeneration draws RGN codes for previous until one is not stored yet.
func (s *QRService) unusedRegeneration(ctx context.Context, previous string) (string, error) {
	for attempt := 0; attempt < regenerateAttempts; attempt++ {
		value, _, err := s.generator.Regenerate(previous)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "stored code is malformed")
		}
		taken, err := s.codes.FindCodeByValue(ctx, value)
		if err != nil {
			return "", appErrors.Storage(err, "failed to check code uniqueness")
		}
		if taken == nil {
			return value, nil
		}
		s.logger.Warn("regenerated code collided, drawing again", zap.String("code", value), zap.Int("attempt", attempt+1))
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "code collision while regenerating")
}

// RecordScan checks a scanned string against the stored hierarchy and marks it scanned.
// Repeated scans only move the timestamp.
func (s *QRService) RecordScan(ctx context.Context, req ScanRequest) (*models.QRDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scan request")
	}
	detail, err := s.Lookup(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	parsed, _ := qrcode.Parse(detail.Code)
	if parsed.ShipmentCode != detail.ShipmentCode || parsed.ArticleID != detail.ArticleID || parsed.CartonSeq != detail.CartonSequence {
		s.logger.Warn("scanned code disagrees with stored hierarchy",
			zap.String("code", detail.Code),
			zap.String("shipment", detail.ShipmentCode),
			zap.Int64("article_id", detail.ArticleID),
			zap.Int("carton", detail.CartonSequence))
		return nil, appErrors.Clone(appErrors.ErrValidation, "code identifiers do not match its carton")
	}

	at := s.now()
	if err := s.codes.MarkScanned(ctx, detail.ID, at, req.ScannedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "code not found")
		}
		return nil, appErrors.Storage(err, "failed to record scan")
	}
	detail.State = models.QRStateScanned
	detail.ScannedAt = &at
	if req.ScannedBy != nil {
		detail.ScannedBy = req.ScannedBy
	}
	return detail, nil
}

// Lookup resolves a code string to its carton, article and shipment.
func (s *QRService) Lookup(ctx context.Context, code string) (*models.QRDetail, error) {
	code = strings.TrimSpace(code)
	if !qrcode.Valid(code) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code does not follow the label grammar")
	}
	if _, ok := qrcode.Parse(code); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code identifiers out of range")
	}
	detail, err := s.codes.FindDetailByValue(ctx, code)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load code")
	}
	if detail == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "code not found")
	}
	return detail, nil
}

// CodesForArticle lists an article's codes ordered by carton.
func (s *QRService) CodesForArticle(ctx context.Context, articleID int64) ([]models.QRCode, error) {
	codes, err := s.codes.FindCodesByArticle(ctx, nil, articleID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list codes")
	}
	return codes, nil
}

// FindDuplicates reports code strings held by more than one row.
func (s *QRService) FindDuplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	groups, err := s.codes.FindDuplicates(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to scan duplicates")
	}
	return groups, nil
}

// Stats counts codes per state.
func (s *QRService) Stats(ctx context.Context, filter models.QRStatsFilter) (*models.QRStats, error) {
	stats, err := s.codes.Stats(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to compute stats")
	}
	return stats, nil
}

// MarkPrinted stamps the print time on the given codes.
func (s *QRService) MarkPrinted(ctx context.Context, ids []int64) (int64, error) {
	changed, err := s.codes.MarkPrinted(ctx, ids, s.now())
	if err != nil {
		return 0, appErrors.Storage(err, "failed to mark codes printed")
	}
	return changed, nil
}

// AttachRendering records the raster produced for a code.
func (s *QRService) AttachRendering(ctx context.Context, id int64, meta models.QRRenderingMeta) error {
	if err := s.codes.UpdateRendering(ctx, id, meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("code %d not found", id))
		}
		return appErrors.Storage(err, "failed to store rendering metadata")
	}
	return nil
}

func cartonContents(article *models.ArticleContext) string {
	return strings.TrimSpace(article.Reference + " " + article.DescriptionES)
}

// normaliseStoreError keeps typed errors intact and classifies the rest as storage failures.
func normaliseStoreError(err error, message string) error {
	var conflict *IssuanceConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Storage(err, message)
}
