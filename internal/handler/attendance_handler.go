package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/service"
	"github.com/noah-isme/giaoly-api/pkg/response"
)

type attendanceRecordService interface {
	List(ctx context.Context, claims *models.JWTClaims, q service.AttendanceRecordQuery) ([]models.AttendanceRecordDetail, error)
	Save(ctx context.Context, claims *models.JWTClaims, req service.SaveAttendanceRequest) (int, error)
}

type massAttendanceService interface {
	List(ctx context.Context, claims *models.JWTClaims, q service.MassAttendanceQuery) ([]models.MassAttendance, error)
	Save(ctx context.Context, claims *models.JWTClaims, req service.SaveMassRequest) (int, error)
	SelfReport(ctx context.Context, claims *models.JWTClaims) (*service.MassSelfReport, error)
}

// savedResult reports how many rows a bulk save wrote.
type savedResult struct {
	Saved int `json:"saved"`
}

// AttendanceHandler exposes catechism and Mass attendance records.
type AttendanceHandler struct {
	records attendanceRecordService
	mass    massAttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(records attendanceRecordService, mass massAttendanceService) *AttendanceHandler {
	return &AttendanceHandler{records: records, mass: mass}
}

// ListRecords godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param class_id query string false "Class ID"
// @Param student_id query string false "Student ID"
// @Param date query string false "Exact date (YYYY-MM-DD)"
// @Param date_from query string false "Range start (YYYY-MM-DD)"
// @Param date_to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/records [get]
func (h *AttendanceHandler) ListRecords(c *gin.Context) {
	q := service.AttendanceRecordQuery{
		ClassID:   c.Query("class_id"),
		StudentID: c.Query("student_id"),
		Date:      c.Query("date"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
	}
	records, err := h.records.List(c.Request.Context(), claimsFromContext(c), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// SaveRecords godoc
// @Summary Save a day's attendance for a class
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SaveAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/records [put]
func (h *AttendanceHandler) SaveRecords(c *gin.Context) {
	var req service.SaveAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	saved, err := h.records.Save(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, savedResult{Saved: saved}, nil)
}

// ListMass godoc
// @Summary List Mass attendance
// @Tags Mass Attendance
// @Produce json
// @Param class_id query string false "Class ID"
// @Param date_from query string false "Range start (YYYY-MM-DD)"
// @Param date_to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /mass-attendance [get]
func (h *AttendanceHandler) ListMass(c *gin.Context) {
	q := service.MassAttendanceQuery{
		ClassID:  c.Query("class_id"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	}
	rows, err := h.mass.List(c.Request.Context(), claimsFromContext(c), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// SaveMass godoc
// @Summary Save Mass attendance for a class
// @Tags Mass Attendance
// @Accept json
// @Produce json
// @Param payload body service.SaveMassRequest true "Mass attendance payload"
// @Success 200 {object} response.Envelope
// @Router /mass-attendance [put]
func (h *AttendanceHandler) SaveMass(c *gin.Context) {
	var req service.SaveMassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	saved, err := h.mass.Save(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, savedResult{Saved: saved}, nil)
}

// SelfReportMass godoc
// @Summary Student reports attending Mass
// @Description Records attendance for the most recent Sunday in the parish timezone.
// @Tags Mass Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /mass-attendance/self [post]
func (h *AttendanceHandler) SelfReportMass(c *gin.Context) {
	report, err := h.mass.SelfReport(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
