package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/service"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/response"
)

type sessionService interface {
	Start(ctx context.Context, claims *models.JWTClaims, req service.StartSessionRequest) (*models.AttendanceSession, error)
	End(ctx context.Context, claims *models.JWTClaims, id string) (*models.AttendanceSession, error)
	List(ctx context.Context, claims *models.JWTClaims, filter models.AttendanceSessionFilter) ([]models.AttendanceSession, *models.Pagination, error)
	Active(ctx context.Context, claims *models.JWTClaims, classID string) (*models.AttendanceSession, error)
	QRCode(ctx context.Context, claims *models.JWTClaims, id string) ([]byte, error)
	CheckIn(ctx context.Context, claims *models.JWTClaims, req service.CheckInRequest) (*models.AttendanceRecord, error)
}

// SessionHandler exposes attendance session and check-in endpoints.
type SessionHandler struct {
	sessions sessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Start godoc
// @Summary Start an attendance session
// @Description Ends any active session of the class and issues a fresh 6-digit check-in code.
// @Tags Attendance Sessions
// @Accept json
// @Produce json
// @Param payload body service.StartSessionRequest true "Class to open"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance/sessions [post]
func (h *SessionHandler) Start(c *gin.Context) {
	var req service.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	session, err := h.sessions.Start(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// End godoc
// @Summary End an attendance session
// @Tags Attendance Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions/{id}/end [post]
func (h *SessionHandler) End(c *gin.Context) {
	session, err := h.sessions.End(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List godoc
// @Summary List attendance sessions of a class
// @Tags Attendance Sessions
// @Produce json
// @Param class_id query string true "Class ID"
// @Param active query bool false "Only active or only ended sessions"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	filter := models.AttendanceSessionFilter{
		ClassID: strings.TrimSpace(c.Query("class_id")),
		Active:  queryBool(c, "active"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	sessions, pagination, err := h.sessions.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Active godoc
// @Summary Current active session of a class
// @Description Returns null data when the class has no active session.
// @Tags Attendance Sessions
// @Produce json
// @Param class_id query string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions/active [get]
func (h *SessionHandler) Active(c *gin.Context) {
	classID := strings.TrimSpace(c.Query("class_id"))
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}
	session, err := h.sessions.Active(c.Request.Context(), claimsFromContext(c), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// QRCode godoc
// @Summary QR code of a session's check-in code
// @Tags Attendance Sessions
// @Produce png
// @Param id path string true "Session ID"
// @Success 200 {file} file
// @Router /attendance/sessions/{id}/qr [get]
func (h *SessionHandler) QRCode(c *gin.Context) {
	png, err := h.sessions.QRCode(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// CheckIn godoc
// @Summary Student self check-in
// @Tags Attendance Sessions
// @Accept json
// @Produce json
// @Param payload body service.CheckInRequest true "Check-in code"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *SessionHandler) CheckIn(c *gin.Context) {
	var req service.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	record, err := h.sessions.CheckIn(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}
