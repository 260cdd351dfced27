package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/service"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/response"
)

type materialService interface {
	Upload(ctx context.Context, claims *models.JWTClaims, meta service.MaterialUploadRequest, upload service.MaterialUpload) (*models.LearningMaterial, error)
	List(ctx context.Context, claims *models.JWTClaims, filter models.LearningMaterialFilter) ([]models.LearningMaterial, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.LearningMaterial, error)
	DownloadLink(ctx context.Context, claims *models.JWTClaims, id string) (*service.MaterialLink, error)
	Download(ctx context.Context, token string) (*service.MaterialDownload, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) error
}

// MaterialHandler exposes learning material endpoints.
type MaterialHandler struct {
	materials materialService
}

// NewMaterialHandler constructs MaterialHandler.
func NewMaterialHandler(materials materialService) *MaterialHandler {
	return &MaterialHandler{materials: materials}
}

// Upload godoc
// @Summary Upload a learning material
// @Tags Materials
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param class_id formData string true "Class ID"
// @Param week_number formData int true "Week number"
// @Param file formData file true "PDF file"
// @Success 201 {object} response.Envelope
// @Router /materials [post]
func (h *MaterialHandler) Upload(c *gin.Context) {
	var meta service.MaterialUploadRequest
	if err := c.ShouldBind(&meta); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	item, err := h.materials.Upload(c.Request.Context(), claimsFromContext(c), meta, service.MaterialUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// List godoc
// @Summary List learning materials
// @Tags Materials
// @Produce json
// @Param class_id query string false "Class ID"
// @Param week query int false "Week number"
// @Success 200 {object} response.Envelope
// @Router /materials [get]
func (h *MaterialHandler) List(c *gin.Context) {
	filter := models.LearningMaterialFilter{ClassID: c.Query("class_id")}
	if raw := c.Query("week"); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week must be an integer"))
			return
		}
		filter.WeekNumber = &week
	}
	items, err := h.materials.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get learning material metadata
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 200 {object} response.Envelope
// @Router /materials/{id} [get]
func (h *MaterialHandler) Get(c *gin.Context) {
	item, err := h.materials.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DownloadURL godoc
// @Summary Signed download link
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 200 {object} response.Envelope
// @Router /materials/{id}/download-url [get]
func (h *MaterialHandler) DownloadURL(c *gin.Context) {
	link, err := h.materials.DownloadLink(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a material through a signed token
// @Tags Materials
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /materials/download/{token} [get]
func (h *MaterialHandler) Download(c *gin.Context) {
	download, err := h.materials.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.DataFromReader(http.StatusOK, download.SizeBytes, download.MimeType, download.File, map[string]string{
		"Content-Disposition": response.ContentDisposition(download.Filename),
		"Cache-Control":       "private, no-store",
	})
}

// Delete godoc
// @Summary Delete a learning material
// @Tags Materials
// @Param id path string true "Material ID"
// @Success 204
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(c *gin.Context) {
	if err := h.materials.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
