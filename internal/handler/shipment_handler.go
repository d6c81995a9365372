package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/packing-qr-api/internal/dto"
	"github.com/noah-isme/packing-qr-api/internal/middleware"
	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/response"
)

// ShipmentHandler exposes shipment endpoints.
type ShipmentHandler struct {
	shipments ShipmentUseCase
	packing   PackingUseCase
}

// NewShipmentHandler constructs handler.
func NewShipmentHandler(shipments ShipmentUseCase, packing PackingUseCase) *ShipmentHandler {
	return &ShipmentHandler{shipments: shipments, packing: packing}
}

// Intake godoc
// @Summary Register a shipment with its parsed articles
// @Tags Shipments
// @Accept json
// @Produce json
// @Param payload body dto.IntakeRequest true "Shipment and articles"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /shipments [post]
func (h *ShipmentHandler) Intake(c *gin.Context) {
	var req dto.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid intake payload"))
		return
	}
	result, err := h.shipments.Intake(c.Request.Context(), req, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List shipments
// @Tags Shipments
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param client_id query int false "Client"
// @Param search query string false "Code or destination fragment"
// @Success 200 {object} response.Envelope
// @Router /shipments [get]
func (h *ShipmentHandler) List(c *gin.Context) {
	filter := models.ShipmentFilter{Search: c.Query("search")}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	if raw := c.Query("client_id"); raw != "" {
		clientID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "client_id must be numeric"))
			return
		}
		filter.ClientID = clientID
	}
	shipments, pagination, err := h.shipments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shipments, pagination)
}

// Get godoc
// @Summary Shipment with its articles
// @Tags Shipments
// @Produce json
// @Param code path string true "Shipment code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shipments/{code} [get]
func (h *ShipmentHandler) Get(c *gin.Context) {
	detail, err := h.shipments.Get(c.Request.Context(), shipmentParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Correct godoc
// @Summary Amend end date or destination
// @Tags Shipments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Shipment code"
// @Param payload body dto.ShipmentCorrectionRequest true "Corrections"
// @Success 200 {object} response.Envelope
// @Router /shipments/{code} [patch]
func (h *ShipmentHandler) Correct(c *gin.Context) {
	var req dto.ShipmentCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid correction payload"))
		return
	}
	shipment, err := h.shipments.Correct(c.Request.Context(), shipmentParam(c), req, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shipment, nil)
}

// IssueAll godoc
// @Summary Issue codes for every article of a shipment
// @Tags Shipments
// @Accept json
// @Produce json
// @Param code path string true "Shipment code"
// @Param payload body dto.IssueCodesRequest false "Force regeneration"
// @Success 200 {object} response.Envelope
// @Router /shipments/{code}/codes [post]
func (h *ShipmentHandler) IssueAll(c *gin.Context) {
	var req dto.IssueCodesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid issuance payload"))
			return
		}
	}
	result, err := h.packing.IssueShipment(c.Request.Context(), shipmentParam(c), req.ForceRegenerate, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, result, nil)
}

// Export godoc
// @Summary Render the shipment's label sheet or manifest
// @Tags Shipments
// @Accept json
// @Produce json
// @Param code path string true "Shipment code"
// @Param payload body dto.ExportRequest false "Format (pdf, html, csv)"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /shipments/{code}/export [post]
func (h *ShipmentHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
			return
		}
	}
	if format := c.Query("format"); format != "" {
		req.Format = dto.ExportFormat(format)
	}
	switch req.Format {
	case "", dto.ExportFormatPDF, dto.ExportFormatHTML, dto.ExportFormatCSV:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be pdf, html or csv"))
		return
	}
	result, err := h.packing.ExportShipment(c.Request.Context(), shipmentParam(c), req.Format, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Stats godoc
// @Summary Code counts per state for a shipment
// @Tags Shipments
// @Produce json
// @Param code path string true "Shipment code"
// @Success 200 {object} response.Envelope
// @Router /shipments/{code}/stats [get]
func (h *ShipmentHandler) Stats(c *gin.Context) {
	stats, cached, err := h.packing.Stats(c.Request.Context(), models.QRStatsFilter{ShipmentCode: shipmentParam(c)})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
