package handler

import (
	"errors"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/response"
)

var documentContentTypes = map[string]string{
	"pdf":  "application/pdf",
	"html": "text/html; charset=utf-8",
	"csv":  "text/csv; charset=utf-8",
}

// DownloadHandler serves stored documents behind signed tokens.
type DownloadHandler struct {
	documents DocumentDownloads
}

// NewDownloadHandler constructs handler.
func NewDownloadHandler(documents DocumentDownloads) *DownloadHandler {
	return &DownloadHandler{documents: documents}
}

// Download godoc
// @Summary Download an exported document
// @Tags Exports
// @Produce application/pdf
// @Produce text/html
// @Produce text/csv
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /export/{token} [get]
func (h *DownloadHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.documents.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link"))
		return
	}
	file, err := h.documents.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document no longer available"))
			return
		}
		response.Error(c, appErrors.Storage(err, "failed to open document"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Storage(err, "failed to stat document"))
		return
	}
	contentType, ok := documentContentTypes[strings.TrimPrefix(path.Ext(relPath), ".")]
	if !ok {
		contentType = "application/octet-stream"
	}
	response.Attachment(c, relPath, contentType, file, info.ModTime())
}
