package tenant

import (
	"github.com/gin-gonic/gin"
)

// Header names the frontend sends on every API call.
const (
	HeaderTenantID        = "X-Tenant-ID"
	HeaderClientAccountID = "X-Client-Account-ID"
)

// Middleware extracts the tenant headers and attaches a validated Tenant to
// the request context. Requests without a valid tenant ID are rejected with
// 400 before reaching any handler.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := Tenant{
			TenantID:        c.GetHeader(HeaderTenantID),
			ClientAccountID: c.GetHeader(HeaderClientAccountID),
		}
		if t.TenantID == "" {
			c.AbortWithStatusJSON(400, gin.H{"error": "missing " + HeaderTenantID + " header"})
			return
		}
		if err := t.Validate(); err != nil {
			c.AbortWithStatusJSON(400, gin.H{"error": err.Error()})
			return
		}
		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), t))
		c.Next()
	}
}
