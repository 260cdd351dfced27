package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/service"
	"github.com/noah-isme/giaoly-api/pkg/provisioning"
	"github.com/noah-isme/giaoly-api/pkg/response"
)

type accountService interface {
	ProvisionCatechist(ctx context.Context, req service.CatechistAccountRequest) (*models.Catechist, error)
	ProvisionStudent(ctx context.Context, studentID string) (*provisioning.StudentAccount, error)
	BulkProvisionStudents(ctx context.Context, claims *models.JWTClaims, req service.BulkStudentAccountRequest) (*models.ProvisioningBatch, error)
	Batch(id string) (*models.ProvisioningBatch, error)
}

// AccountHandler creates login accounts for catechists and students.
type AccountHandler struct {
	accounts accountService
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Catechist godoc
// @Summary Create a catechist login
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body service.CatechistAccountRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /accounts/catechists [post]
func (h *AccountHandler) Catechist(c *gin.Context) {
	var req service.CatechistAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	catechist, err := h.accounts.ProvisionCatechist(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, catechist)
}

// Student godoc
// @Summary Create a student login
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body service.StudentAccountRequest true "Student to provision"
// @Success 201 {object} response.Envelope
// @Router /accounts/students [post]
func (h *AccountHandler) Student(c *gin.Context) {
	var req service.StudentAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	account, err := h.accounts.ProvisionStudent(c.Request.Context(), req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}

// BulkStudents godoc
// @Summary Queue student logins in bulk
// @Description Returns a batch to poll at /accounts/batches/{id}.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body service.BulkStudentAccountRequest true "Students to provision"
// @Success 202 {object} response.Envelope
// @Router /accounts/students/bulk [post]
func (h *AccountHandler) BulkStudents(c *gin.Context) {
	var req service.BulkStudentAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	batch, err := h.accounts.BulkProvisionStudents(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, batch)
}

// Batch godoc
// @Summary Progress of a bulk provisioning batch
// @Tags Accounts
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /accounts/batches/{id} [get]
func (h *AccountHandler) Batch(c *gin.Context) {
	batch, err := h.accounts.Batch(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil, map[string]interface{}{"summary": batch.Summary()})
}
