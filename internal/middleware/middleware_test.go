package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type stubAuthorizer struct {
	claims       *models.JWTClaims
	validateErr  error
	authorizeErr error
	token        string
}

func (s *stubAuthorizer) ValidateToken(token string) (*models.JWTClaims, error) {
	s.token = token
	return s.claims, s.validateErr
}

func (s *stubAuthorizer) Authorize(_ context.Context, claims *models.JWTClaims) (*models.JWTClaims, error) {
	if s.authorizeErr != nil {
		return nil, s.authorizeErr
	}
	return claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/probe", handlers...)
	return r
}

func perform(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := newRouter(JWT(&stubAuthorizer{}))

	assert.Equal(t, http.StatusUnauthorized, perform(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Bearer ").Code)
}

func TestJWTRejectsInactiveAccount(t *testing.T) {
	auth := &stubAuthorizer{
		claims:       &models.JWTClaims{UserID: "u-1", Role: models.RoleGLV},
		authorizeErr: appErrors.ErrInactiveAccount,
	}
	rec := perform(newRouter(JWT(auth)), "Bearer tok")

	assert.Equal(t, appErrors.ErrInactiveAccount.Status, rec.Code)
	assert.Equal(t, "tok", auth.token)
}

func TestJWTAttachesClaims(t *testing.T) {
	auth := &stubAuthorizer{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin}}
	var seen *models.JWTClaims
	r := newRouter(JWT(auth), func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		seen, _ = value.(*models.JWTClaims)
	})

	rec := perform(r, "bearer tok")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u-1", seen.UserID)
}

func withClaims(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: role})
	}
}

func TestRequireRoles(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, perform(newRouter(RequireStaff()), "").Code)
	assert.Equal(t, http.StatusForbidden, perform(newRouter(withClaims(models.RoleStudent), RequireStaff()), "").Code)
	assert.Equal(t, http.StatusOK, perform(newRouter(withClaims(models.RoleGLV), RequireStaff()), "").Code)
	assert.Equal(t, http.StatusForbidden, perform(newRouter(withClaims(models.RoleGLV), RequireRoles(models.RoleAdmin)), "").Code)
}

type recordingObserver struct {
	method string
	path   string
	status int
}

func (o *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	o.method, o.path, o.status = method, path, status
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/classes/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/classes/abc", nil))
	assert.Equal(t, "/classes/:id", observer.path)
	assert.Equal(t, http.StatusAccepted, observer.status)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, "unmatched", observer.path)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/probe", func(c *gin.Context) {
		assert.Nil(t, ExtractMeta(c))
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
