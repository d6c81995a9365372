package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

// OperationResult is the outcome envelope of an orchestrated packing operation.
type OperationResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// IssueCodesRequest asks for codes on every carton of an article.
type IssueCodesRequest struct {
	ForceRegenerate bool `json:"force_regenerate"`
}

// IssueArticleData describes a completed article issuance.
type IssueArticleData struct {
	ArticleID     int64           `json:"article_id"`
	ShipmentCode  string          `json:"shipment_code"`
	Codes         []models.QRCode `json:"codes"`
	Replaced      int64           `json:"replaced"`
	ImageFailures int             `json:"image_failures"`
}

// ArticleIssueOutcome is one article's line in a shipment-wide issuance.
type ArticleIssueOutcome struct {
	ArticleID int64  `json:"article_id"`
	Reference string `json:"reference"`
	Issued    int    `json:"issued"`
	Conflict  bool   `json:"conflict,omitempty"`
	Error     string `json:"error,omitempty"`
}

// IssueShipmentData aggregates issuance across a shipment.
type IssueShipmentData struct {
	ShipmentCode string                `json:"shipment_code"`
	Articles     []ArticleIssueOutcome `json:"articles"`
	Issued       int                   `json:"issued"`
	Conflicts    int                   `json:"conflicts"`
	Failures     int                   `json:"failures"`
}

// ScanCodeRequest records a scan of a printed label.
type ScanCodeRequest struct {
	Code      string  `json:"code" validate:"required,max=128"`
	ScannedBy *string `json:"scanned_by,omitempty" validate:"omitempty,max=100"`
}

// ExportFormat selects the document rendition.
type ExportFormat string

const (
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatHTML ExportFormat = "html"
	ExportFormatCSV  ExportFormat = "csv"
)

// ExportRequest asks for a printable document of a shipment's labels.
type ExportRequest struct {
	Format ExportFormat `json:"format" validate:"omitempty,oneof=pdf html csv"`
}

// ExportResult points to a stored document through a signed link.
type ExportResult struct {
	ShipmentCode string       `json:"shipment_code"`
	Format       ExportFormat `json:"format"`
	RelativePath string       `json:"-"`
	Token        string       `json:"token"`
	URL          string       `json:"url"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Pages        int          `json:"pages"`
	Labels       int          `json:"labels"`
	Printed      int64        `json:"printed"`
}

// IntakeArticle is one parsed packing-list line.
type IntakeArticle struct {
	Reference     string          `json:"reference" validate:"required,max=100"`
	DescriptionES string          `json:"description_es" validate:"max=500"`
	DescriptionEN string          `json:"description_en" validate:"max=500"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Material      string          `json:"material" validate:"max=100"`
	Brand         string          `json:"brand" validate:"max=100"`
	LengthCM      decimal.Decimal `json:"length_cm"`
	WidthCM       decimal.Decimal `json:"width_cm"`
	HeightCM      decimal.Decimal `json:"height_cm"`
	VolumeCBM     decimal.Decimal `json:"volume_cbm"`
	WeightKG      decimal.Decimal `json:"weight_kg"`
	CartonCount   int             `json:"carton_count" validate:"required,gt=0,lte=10000"`
	ImageURL      *string         `json:"image_url,omitempty" validate:"omitempty,url"`
}

// IntakeRequest registers a shipment with its already-parsed articles.
type IntakeRequest struct {
	Code        string          `json:"code" validate:"required,max=64"`
	ClientID    int64           `json:"client_id" validate:"required,gt=0"`
	StartDate   time.Time       `json:"start_date" validate:"required"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Destination string          `json:"destination" validate:"required,max=200"`
	SourceFile  *string         `json:"source_file,omitempty"`
	Articles    []IntakeArticle `json:"articles" validate:"required,min=1,dive"`
}

// IntakeResult echoes the stored hierarchy.
type IntakeResult struct {
	Shipment models.Shipment  `json:"shipment"`
	Articles []models.Article `json:"articles"`
	Cartons  int              `json:"cartons"`
}

// ShipmentDetail is a shipment with its articles.
type ShipmentDetail struct {
	Shipment models.Shipment  `json:"shipment"`
	Articles []models.Article `json:"articles"`
}

// ShipmentCorrectionRequest amends the editable fields of a shipment.
type ShipmentCorrectionRequest struct {
	EndDate     *time.Time `json:"end_date,omitempty"`
	Destination *string    `json:"destination,omitempty" validate:"omitempty,min=1,max=200"`
}

// ArticleImageRequest replaces an article's product image reference.
type ArticleImageRequest struct {
	ImageURL *string `json:"image_url" validate:"omitempty,url"`
}

// CodeVerification reports whether a scanned string is a live code.
type CodeVerification struct {
	Code        string           `json:"code"`
	Valid       bool             `json:"valid"`
	Known       bool             `json:"known"`
	Regenerated bool             `json:"regenerated"`
	IssuedAt    *time.Time       `json:"issued_at,omitempty"`
	Detail      *models.QRDetail `json:"detail,omitempty"`
}
