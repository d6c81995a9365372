package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/packing-qr-api/internal/dto"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/response"
)

// ArticleHandler exposes per-article issuance and maintenance endpoints.
type ArticleHandler struct {
	packing   PackingUseCase
	shipments ShipmentUseCase
}

// NewArticleHandler constructs handler.
func NewArticleHandler(packing PackingUseCase, shipments ShipmentUseCase) *ArticleHandler {
	return &ArticleHandler{packing: packing, shipments: shipments}
}

// Issue godoc
// @Summary Issue one code per carton of an article
// @Tags Articles
// @Accept json
// @Produce json
// @Param id path int true "Article ID"
// @Param payload body dto.IssueCodesRequest false "Force regeneration"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /articles/{id}/codes [post]
func (h *ArticleHandler) Issue(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.IssueCodesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid issuance payload"))
			return
		}
	}
	result, err := h.packing.IssueArticle(c.Request.Context(), id, req.ForceRegenerate, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Codes godoc
// @Summary Codes of an article ordered by carton
// @Tags Articles
// @Produce json
// @Param id path int true "Article ID"
// @Success 200 {object} response.Envelope
// @Router /articles/{id}/codes [get]
func (h *ArticleHandler) Codes(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	codes, err := h.packing.CodesForArticle(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, codes, nil)
}

// Cartons godoc
// @Summary Cartons of an article ordered by sequence
// @Tags Articles
// @Produce json
// @Param id path int true "Article ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /articles/{id}/cartons [get]
func (h *ArticleHandler) Cartons(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	cartons, err := h.shipments.Cartons(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cartons, nil)
}

// UpdateImage godoc
// @Summary Set or clear the product image of an article
// @Tags Articles
// @Accept json
// @Param id path int true "Article ID"
// @Param payload body dto.ArticleImageRequest true "Image URL"
// @Success 204
// @Router /articles/{id}/image [put]
func (h *ArticleHandler) UpdateImage(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ArticleImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid image payload"))
		return
	}
	if err := h.shipments.UpdateArticleImage(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete an article with its cartons and codes
// @Tags Articles
// @Security BearerAuth
// @Param id path int true "Article ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /articles/{id} [delete]
func (h *ArticleHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.shipments.DeleteArticle(c.Request.Context(), id, actorOf(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
