package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/service"
	"github.com/noah-isme/giaoly-api/pkg/response"
)

type scoreService interface {
	List(ctx context.Context, claims *models.JWTClaims, filter models.ScoreFilter) ([]models.Score, error)
	Save(ctx context.Context, claims *models.JWTClaims, req service.SaveScoresRequest) (int, error)
}

// ScoreHandler exposes score endpoints.
type ScoreHandler struct {
	scores scoreService
}

// NewScoreHandler constructs ScoreHandler.
func NewScoreHandler(scores scoreService) *ScoreHandler {
	return &ScoreHandler{scores: scores}
}

// List godoc
// @Summary List scores
// @Tags Scores
// @Produce json
// @Param class_id query string true "Class ID"
// @Param student_id query string false "Student ID"
// @Success 200 {object} response.Envelope
// @Router /scores [get]
func (h *ScoreHandler) List(c *gin.Context) {
	filter := models.ScoreFilter{ClassID: c.Query("class_id"), StudentID: c.Query("student_id")}
	scores, err := h.scores.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}

// Save godoc
// @Summary Save scores for a class
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.SaveScoresRequest true "Scores payload"
// @Success 200 {object} response.Envelope
// @Router /scores [put]
func (h *ScoreHandler) Save(c *gin.Context) {
	var req service.SaveScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	saved, err := h.scores.Save(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, savedResult{Saved: saved}, nil)
}
