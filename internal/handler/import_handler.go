package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/service"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/export"
	"github.com/noah-isme/giaoly-api/pkg/response"
)

const maxImportFileSize = 5 << 20

type importService interface {
	Template(kind string) (string, string, error)
	ImportStudents(ctx context.Context, r io.Reader) (*service.ImportResult, error)
	ImportClasses(ctx context.Context, r io.Reader) (*service.ImportResult, error)
	ImportCatechists(ctx context.Context, r io.Reader) (*service.ImportResult, error)
}

// ImportHandler accepts CSV uploads for bulk data entry.
type ImportHandler struct {
	imports importService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports importService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Students godoc
// @Summary Import students from CSV
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /import/students [post]
func (h *ImportHandler) Students(c *gin.Context) {
	h.run(c, h.imports.ImportStudents)
}

// Classes godoc
// @Summary Import classes from CSV
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /import/classes [post]
func (h *ImportHandler) Classes(c *gin.Context) {
	h.run(c, h.imports.ImportClasses)
}

// Catechists godoc
// @Summary Import catechists from CSV
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /import/catechists [post]
func (h *ImportHandler) Catechists(c *gin.Context) {
	h.run(c, h.imports.ImportCatechists)
}

// Template godoc
// @Summary Download an import template
// @Tags Import
// @Produce text/csv
// @Param kind path string true "classes or catechists"
// @Success 200 {file} file
// @Router /import/templates/{kind} [get]
func (h *ImportHandler) Template(c *gin.Context) {
	filename, content, err := h.imports.Template(c.Param("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, export.CSVContentType, []byte(content))
}

func (h *ImportHandler) run(c *gin.Context, fn func(context.Context, io.Reader) (*service.ImportResult, error)) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if header.Size > maxImportFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds 5MB"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := fn(c.Request.Context(), io.LimitReader(file, maxImportFileSize))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
