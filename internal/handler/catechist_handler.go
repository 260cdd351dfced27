package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/service"
	"github.com/noah-isme/giaoly-api/pkg/response"
)

// CatechistHandler exposes catechist endpoints.
type CatechistHandler struct {
	catechists *service.CatechistService
}

// NewCatechistHandler constructs CatechistHandler.
func NewCatechistHandler(catechists *service.CatechistService) *CatechistHandler {
	return &CatechistHandler{catechists: catechists}
}

// List godoc
// @Summary List catechists
// @Tags Catechists
// @Produce json
// @Param search query string false "Search by name, phone or email"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /catechists [get]
func (h *CatechistHandler) List(c *gin.Context) {
	filter := models.CatechistFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Active:    queryBool(c, "active"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	catechists, pagination, err := h.catechists.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, catechists, pagination)
}

// Get godoc
// @Summary Get catechist
// @Tags Catechists
// @Produce json
// @Param id path string true "Catechist ID"
// @Success 200 {object} response.Envelope
// @Router /catechists/{id} [get]
func (h *CatechistHandler) Get(c *gin.Context) {
	catechist, err := h.catechists.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, catechist, nil)
}

// Create godoc
// @Summary Create catechist
// @Tags Catechists
// @Accept json
// @Produce json
// @Param payload body service.CatechistRequest true "Catechist payload"
// @Success 201 {object} response.Envelope
// @Router /catechists [post]
func (h *CatechistHandler) Create(c *gin.Context) {
	var req service.CatechistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	catechist, err := h.catechists.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, catechist)
}

// Update godoc
// @Summary Update catechist
// @Tags Catechists
// @Accept json
// @Produce json
// @Param id path string true "Catechist ID"
// @Param payload body service.CatechistRequest true "Catechist payload"
// @Success 200 {object} response.Envelope
// @Router /catechists/{id} [put]
func (h *CatechistHandler) Update(c *gin.Context) {
	var req service.CatechistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	catechist, err := h.catechists.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, catechist, nil)
}

// Delete godoc
// @Summary Deactivate catechist
// @Tags Catechists
// @Param id path string true "Catechist ID"
// @Success 204
// @Router /catechists/{id} [delete]
func (h *CatechistHandler) Delete(c *gin.Context) {
	if err := h.catechists.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
