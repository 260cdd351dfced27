package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/service"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type fakeImportSrv struct {
	received string
	err      error
}

func (f *fakeImportSrv) Template(kind string) (string, string, error) {
	if kind != "classes" {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	return "mau_nhap_lop.csv", "Tên lớp,Mô tả", nil
}

func (f *fakeImportSrv) consume(r io.Reader) (*service.ImportResult, error) {
	data, _ := io.ReadAll(r)
	f.received = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &service.ImportResult{Total: 2, Imported: 1, Skipped: 1}, nil
}

func (f *fakeImportSrv) ImportStudents(_ context.Context, r io.Reader) (*service.ImportResult, error) {
	return f.consume(r)
}

func (f *fakeImportSrv) ImportClasses(_ context.Context, r io.Reader) (*service.ImportResult, error) {
	return f.consume(r)
}

func (f *fakeImportSrv) ImportCatechists(_ context.Context, r io.Reader) (*service.ImportResult, error) {
	return f.consume(r)
}

func multipartContext(t *testing.T, target string, fields map[string]string, filename string, content []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	c, rec := newTestContext(http.MethodPost, target)
	c.Request = httptest.NewRequest(http.MethodPost, target, &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	return c, rec
}

func TestImportHandlerStudents(t *testing.T) {
	srv := &fakeImportSrv{}
	csv := "Họ và tên,Giới tính\nNguyễn Văn A,Nam\n"
	c, rec := multipartContext(t, "/import/students", nil, "hv.csv", []byte(csv))
	NewImportHandler(srv).Students(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, csv, srv.received)
	envelope := decodeEnvelope(t, rec)
	assert.EqualValues(t, 1, envelope.Data["imported"])
	assert.EqualValues(t, 1, envelope.Data["skipped"])
}

func TestImportHandlerRequiresFile(t *testing.T) {
	c, rec := multipartContext(t, "/import/classes", map[string]string{"note": "x"}, "", nil)
	NewImportHandler(&fakeImportSrv{}).Classes(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandlerNoData(t *testing.T) {
	c, rec := multipartContext(t, "/import/catechists", nil, "glv.csv", []byte(""))
	NewImportHandler(&fakeImportSrv{err: appErrors.ErrNoData}).Catechists(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NO_DATA", envelope.Error.Code)
}

func TestImportHandlerTemplate(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/import/templates/classes")
	c.Params = gin.Params{{Key: "kind", Value: "classes"}}
	NewImportHandler(&fakeImportSrv{}).Template(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "mau_nhap_lop.csv")
	assert.Equal(t, "Tên lớp,Mô tả", rec.Body.String())

	c, rec = newTestContext(http.MethodGet, "/import/templates/students")
	c.Params = gin.Params{{Key: "kind", Value: "students"}}
	NewImportHandler(&fakeImportSrv{}).Template(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
