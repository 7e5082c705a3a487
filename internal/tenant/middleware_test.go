package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (*gin.Engine, *Tenant) {
	gin.SetMode(gin.TestMode)
	var captured Tenant
	r := gin.New()
	r.Use(Middleware())
	r.GET("/probe", func(c *gin.Context) {
		t, ok := FromContext(c.Request.Context())
		if !ok {
			c.JSON(500, gin.H{"error": "no tenant"})
			return
		}
		captured = t
		c.JSON(200, t)
	})
	return r, &captured
}

func TestMiddleware_AttachesTenant(t *testing.T) {
	r, captured := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderTenantID, "11111111-1111-1111-1111-111111111111")
	req.Header.Set(HeaderClientAccountID, "22222222-2222-2222-2222-222222222222")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", captured.TenantID)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", captured.ClientAccountID)
}

func TestMiddleware_MissingTenantHeader(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), HeaderTenantID)
}

func TestMiddleware_MalformedTenantID(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderTenantID, "not-a-uuid")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestValidate_ClientAccountOptional(t *testing.T) {
	tn := Tenant{TenantID: "11111111-1111-1111-1111-111111111111"}
	assert.NoError(t, tn.Validate())

	tn.ClientAccountID = "bogus"
	assert.Error(t, tn.Validate())
}
