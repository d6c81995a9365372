package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/packing-qr-api/internal/dto"
	"github.com/noah-isme/packing-qr-api/internal/middleware"
	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/response"
)

// ScannerHeader carries the scanning device identity when the body omits it.
const ScannerHeader = "X-Scanner-ID"

// CodeHandler exposes single-code endpoints.
type CodeHandler struct {
	packing PackingUseCase
}

// NewCodeHandler constructs handler.
func NewCodeHandler(packing PackingUseCase) *CodeHandler {
	return &CodeHandler{packing: packing}
}

// Regenerate godoc
// @Summary Replace one code keeping its carton
// @Tags Codes
// @Produce json
// @Param id path int true "Code ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /codes/{id}/regenerate [post]
func (h *CodeHandler) Regenerate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.packing.RegenerateCode(c.Request.Context(), id, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Scan godoc
// @Summary Record a label scan
// @Tags Codes
// @Accept json
// @Produce json
// @Param payload body dto.ScanCodeRequest true "Scanned code"
// @Param X-Scanner-ID header string false "Scanner identity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /codes/scan [post]
func (h *CodeHandler) Scan(c *gin.Context) {
	var req dto.ScanCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scan payload"))
		return
	}
	if req.ScannedBy == nil {
		if scanner := strings.TrimSpace(c.GetHeader(ScannerHeader)); scanner != "" {
			req.ScannedBy = &scanner
		}
	}
	result, err := h.packing.ScanCode(c.Request.Context(), req, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Verify godoc
// @Summary Check a code string and resolve its carton
// @Tags Codes
// @Produce json
// @Param code query string true "Code string"
// @Success 200 {object} response.Envelope
// @Router /codes/verify [get]
func (h *CodeHandler) Verify(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "code required"))
		return
	}
	result, err := h.packing.Verify(c.Request.Context(), code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Duplicates godoc
// @Summary Code strings stored more than once
// @Tags Codes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /codes/duplicates [get]
func (h *CodeHandler) Duplicates(c *gin.Context) {
	groups, err := h.packing.Duplicates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if groups == nil {
		groups = []models.DuplicateGroup{}
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Stats godoc
// @Summary Code counts per state
// @Tags Codes
// @Produce json
// @Param shipment query string false "Shipment code"
// @Param article_id query int false "Article ID"
// @Success 200 {object} response.Envelope
// @Router /codes/stats [get]
func (h *CodeHandler) Stats(c *gin.Context) {
	filter := models.QRStatsFilter{ShipmentCode: strings.TrimSpace(c.Query("shipment"))}
	if raw := c.Query("article_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "article_id must be a positive integer"))
			return
		}
		filter.ArticleID = id
	}
	stats, cached, err := h.packing.Stats(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

