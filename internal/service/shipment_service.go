package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	dto "github.com/noah-isme/packing-qr-api/internal/dto"
	"github.com/noah-isme/packing-qr-api/internal/models"
	"github.com/noah-isme/packing-qr-api/internal/repository"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/qrcode"
)

type shipmentStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, shipment *models.Shipment) error
	FindByCode(ctx context.Context, code string) (*models.Shipment, error)
	List(ctx context.Context, filter models.ShipmentFilter) ([]models.Shipment, int, error)
	UpdateCorrections(ctx context.Context, id int64, endDate *time.Time, destination *string) error
}

type articleStore interface {
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, shipmentID int64, articles []models.Article) error
	FindByID(ctx context.Context, id int64) (*models.Article, error)
	ListByShipment(ctx context.Context, shipmentID int64) ([]models.Article, error)
	UpdateImage(ctx context.Context, id int64, url *string) error
	Delete(ctx context.Context, id int64) error
}

type cartonStore interface {
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, articleID int64, total int, contents string) ([]models.Carton, error)
	FindByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.Carton, error)
}

// ShipmentService registers shipments from parsed packing lists and manages
// their editable fields.
type ShipmentService struct {
	tx        txRunner
	shipments shipmentStore
	articles  articleStore
	cartons   cartonStore
	audit     auditRecorder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewShipmentService constructs a ShipmentService.
func NewShipmentService(tx txRunner, shipments shipmentStore, articles articleStore, cartons cartonStore, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ShipmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShipmentService{
		tx:        tx,
		shipments: shipments,
		articles:  articles,
		cartons:   cartons,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// Intake stores a shipment, its articles and one carton per declared unit atomically.
func (s *ShipmentService) Intake(ctx context.Context, req dto.IntakeRequest, actor string) (*dto.IntakeResult, error) {
	req.Code = strings.TrimSpace(req.Code)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intake payload")
	}
	if !qrcode.ValidShipmentCode(req.Code) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "shipment code may only contain letters, digits and '-'")
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}

	shipment := models.Shipment{
		Code:        req.Code,
		ClientID:    req.ClientID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Destination: req.Destination,
		SourceFile:  req.SourceFile,
	}
	articles := make([]models.Article, 0, len(req.Articles))
	for _, a := range req.Articles {
		articles = append(articles, models.Article{
			Reference:     a.Reference,
			DescriptionES: a.DescriptionES,
			DescriptionEN: a.DescriptionEN,
			UnitPrice:     a.UnitPrice,
			Material:      a.Material,
			Brand:         a.Brand,
			LengthCM:      a.LengthCM,
			WidthCM:       a.WidthCM,
			HeightCM:      a.HeightCM,
			VolumeCBM:     a.VolumeCBM,
			WeightKG:      a.WeightKG,
			CartonCount:   a.CartonCount,
			ImageURL:      a.ImageURL,
		})
	}

	cartons := 0
	err := s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.shipments.Create(ctx, exec, &shipment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("shipment %s already exists", shipment.Code))
			}
			return err
		}
		if err := s.articles.BulkCreate(ctx, exec, shipment.ID, articles); err != nil {
			return err
		}
		for _, article := range articles {
			created, err := s.cartons.BulkCreate(ctx, exec, article.ID, article.CartonCount, strings.TrimSpace(article.Reference+" "+article.DescriptionES))
			if err != nil {
				return err
			}
			cartons += len(created)
		}
		return nil
	})
	if err != nil {
		return nil, normaliseStoreError(err, "failed to store shipment")
	}

	s.cache.Invalidate(ctx, "stats:*")
	s.emitAudit(ctx, actor, models.AuditActionIntake, "shipment", shipment.Code, map[string]interface{}{
		"articles": len(articles),
		"cartons":  cartons,
	})
	return &dto.IntakeResult{Shipment: shipment, Articles: articles, Cartons: cartons}, nil
}

// Get returns a shipment with its articles.
func (s *ShipmentService) Get(ctx context.Context, code string) (*dto.ShipmentDetail, error) {
	shipment, err := s.shipments.FindByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load shipment")
	}
	if shipment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("shipment %s not found", code))
	}
	articles, err := s.articles.ListByShipment(ctx, shipment.ID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list articles")
	}
	return &dto.ShipmentDetail{Shipment: *shipment, Articles: articles}, nil
}

// List pages through shipments.
func (s *ShipmentService) List(ctx context.Context, filter models.ShipmentFilter) ([]models.Shipment, *models.Pagination, error) {
	shipments, total, err := s.shipments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list shipments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return shipments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Correct amends the end date and destination of a shipment. Identity fields are immutable.
func (s *ShipmentService) Correct(ctx context.Context, code string, req dto.ShipmentCorrectionRequest, actor string) (*models.Shipment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid correction payload")
	}
	if req.EndDate == nil && req.Destination == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to correct")
	}
	current, err := s.shipments.FindByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load shipment")
	}
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("shipment %s not found", code))
	}
	if req.EndDate != nil && req.EndDate.Before(current.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	if err := s.shipments.UpdateCorrections(ctx, current.ID, req.EndDate, req.Destination); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("shipment %s not found", code))
		}
		return nil, appErrors.Storage(err, "failed to correct shipment")
	}
	if req.EndDate != nil {
		current.EndDate = req.EndDate
	}
	if req.Destination != nil {
		current.Destination = *req.Destination
	}
	s.emitAudit(ctx, actor, models.AuditActionCorrect, "shipment", current.Code, map[string]interface{}{
		"end_date":    req.EndDate,
		"destination": req.Destination,
	})
	return current, nil
}

// Cartons lists an article's cartons in sequence order.
func (s *ShipmentService) Cartons(ctx context.Context, articleID int64) ([]models.Carton, error) {
	article, err := s.articles.FindByID(ctx, articleID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load article")
	}
	if article == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("article %d not found", articleID))
	}
	cartons, err := s.cartons.FindByArticle(ctx, nil, articleID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list cartons")
	}
	if cartons == nil {
		cartons = []models.Carton{}
	}
	return cartons, nil
}

// UpdateArticleImage sets or clears an article's product image reference.
func (s *ShipmentService) UpdateArticleImage(ctx context.Context, id int64, req dto.ArticleImageRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid image payload")
	}
	if err := s.articles.UpdateImage(ctx, id, req.ImageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("article %d not found", id))
		}
		return appErrors.Storage(err, "failed to update article image")
	}
	return nil
}

// DeleteArticle removes an article together with its cartons and codes.
func (s *ShipmentService) DeleteArticle(ctx context.Context, id int64, actor string) error {
	if err := s.articles.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("article %d not found", id))
		}
		return appErrors.Storage(err, "failed to delete article")
	}
	s.cache.Invalidate(ctx, "stats:*")
	s.emitAudit(ctx, actor, models.AuditActionArticleDrop, "article", strconv.FormatInt(id, 10), nil)
	return nil
}

func (s *ShipmentService) emitAudit(ctx context.Context, actor, action, resource, resourceID string, payload map[string]interface{}) {
	writeAudit(ctx, s.audit, s.logger, actor, action, resource, resourceID, payload)
}
