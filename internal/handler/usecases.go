package handler

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/packing-qr-api/internal/dto"
	"github.com/noah-isme/packing-qr-api/internal/middleware"
	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
)

// PackingUseCase is the orchestration surface used by the packing endpoints.
type PackingUseCase interface {
	IssueArticle(ctx context.Context, articleID int64, force bool, actor string) (*dto.OperationResult, error)
	IssueShipment(ctx context.Context, shipmentCode string, force bool, actor string) (*dto.OperationResult, error)
	RegenerateCode(ctx context.Context, id int64, actor string) (*dto.OperationResult, error)
	ExportShipment(ctx context.Context, shipmentCode string, format dto.ExportFormat, actor string) (*dto.OperationResult, error)
	ScanCode(ctx context.Context, req dto.ScanCodeRequest, actor string) (*dto.OperationResult, error)
	Verify(ctx context.Context, code string) (*dto.CodeVerification, error)
	Stats(ctx context.Context, filter models.QRStatsFilter) (*models.QRStats, bool, error)
	Duplicates(ctx context.Context) ([]models.DuplicateGroup, error)
	CodesForArticle(ctx context.Context, articleID int64) ([]models.QRCode, error)
}

// ShipmentUseCase covers shipment registration and corrections.
type ShipmentUseCase interface {
	Intake(ctx context.Context, req dto.IntakeRequest, actor string) (*dto.IntakeResult, error)
	Get(ctx context.Context, code string) (*dto.ShipmentDetail, error)
	List(ctx context.Context, filter models.ShipmentFilter) ([]models.Shipment, *models.Pagination, error)
	Correct(ctx context.Context, code string, req dto.ShipmentCorrectionRequest, actor string) (*models.Shipment, error)
	Cartons(ctx context.Context, articleID int64) ([]models.Carton, error)
	UpdateArticleImage(ctx context.Context, id int64, req dto.ArticleImageRequest) error
	DeleteArticle(ctx context.Context, id int64, actor string) error
}

// DocumentDownloads resolves signed download tokens to stored files.
type DocumentDownloads interface {
	ParseToken(token string, allowExpired bool) (shipmentCode, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
	}
	return id, nil
}

func shipmentParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("code"))
}

func actorOf(c *gin.Context) string {
	return middleware.Actor(c)
}
