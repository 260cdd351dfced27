package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/service"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/provisioning"
)

type fakeAccountSrv struct {
	catechistReq service.CatechistAccountRequest
	bulk         service.BulkStudentAccountRequest
	catechistErr error
}

func (f *fakeAccountSrv) ProvisionCatechist(_ context.Context, req service.CatechistAccountRequest) (*models.Catechist, error) {
	f.catechistReq = req
	if f.catechistErr != nil {
		return nil, f.catechistErr
	}
	return &models.Catechist{ID: req.CatechistID}, nil
}

func (f *fakeAccountSrv) ProvisionStudent(_ context.Context, studentID string) (*provisioning.StudentAccount, error) {
	return &provisioning.StudentAccount{UserID: "u-" + studentID, Username: studentID}, nil
}

func (f *fakeAccountSrv) BulkProvisionStudents(_ context.Context, _ *models.JWTClaims, req service.BulkStudentAccountRequest) (*models.ProvisioningBatch, error) {
	f.bulk = req
	return &models.ProvisioningBatch{ID: "b-1", Total: len(req.StudentIDs)}, nil
}

func (f *fakeAccountSrv) Batch(id string) (*models.ProvisioningBatch, error) {
	if id != "b-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	return &models.ProvisioningBatch{ID: id, Total: 3, Succeeded: 2, Failed: 1, Done: true}, nil
}

func TestAccountHandlerCatechist(t *testing.T) {
	srv := &fakeAccountSrv{}
	c, rec := jsonContext(http.MethodPost, "/accounts/catechists", `{"catechist_id":"cat-1","email":"glv@giaoxu.vn","password":"secret1"}`)
	NewAccountHandler(srv).Catechist(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "glv@giaoxu.vn", srv.catechistReq.Email)
}

func TestAccountHandlerCatechistUpstreamFailure(t *testing.T) {
	srv := &fakeAccountSrv{catechistErr: appErrors.Clone(appErrors.ErrProvisioning, "email already registered")}
	c, rec := jsonContext(http.MethodPost, "/accounts/catechists", `{"catechist_id":"cat-1","email":"glv@giaoxu.vn","password":"secret1"}`)
	NewAccountHandler(srv).Catechist(c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "email already registered", envelope.Error.Message)
}

func TestAccountHandlerStudent(t *testing.T) {
	c, rec := jsonContext(http.MethodPost, "/accounts/students", `{"student_id":"st-1"}`)
	NewAccountHandler(&fakeAccountSrv{}).Student(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u-st-1", decodeEnvelope(t, rec).Data["user_id"])
}

func TestAccountHandlerBulkAccepted(t *testing.T) {
	srv := &fakeAccountSrv{}
	c, rec := jsonContext(http.MethodPost, "/accounts/students/bulk", `{"student_ids":["a","b"]}`)
	NewAccountHandler(srv).BulkStudents(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"a", "b"}, srv.bulk.StudentIDs)
	assert.Equal(t, "b-1", decodeEnvelope(t, rec).Data["id"])
}

func TestAccountHandlerBatchSummary(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/accounts/batches/b-1")
	c.Params = gin.Params{{Key: "id", Value: "b-1"}}
	NewAccountHandler(&fakeAccountSrv{}).Batch(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "2 succeeded, 1 failed", envelope.Meta["summary"])
	assert.Equal(t, true, envelope.Data["done"])

	c, rec = newTestContext(http.MethodGet, "/accounts/batches/zzz")
	c.Params = gin.Params{{Key: "id", Value: "zzz"}}
	NewAccountHandler(&fakeAccountSrv{}).Batch(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
