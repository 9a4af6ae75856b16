package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/ratelimit"
	"github.com/R3E-Network/agent-orchestrator/internal/tenancy"
)

// tenantHeader is the header callers carry their tenant id on, matching the
// header name internal/notify/wsgateway reads for its own tenant scoping.
const tenantHeader = "X-Tenant-ID"

// tenantMiddleware threads the X-Tenant-ID header into the request context
// via internal/tenancy, generalizing the teacher's
// applications/httpapi/middleware_tenant.go context-key pattern from a
// single-process context.WithValue helper into gin middleware form.
func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": tenantHeader + " header required"})
			return
		}
		ctx := tenancy.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// rateLimitMiddleware rejects requests once tenantID (already resolved by
// tenantMiddleware, which must run first) exceeds its per-tenant request
// budget, generalizing the teacher's single shared RateLimiter into one
// bucket per tenant so a noisy tenant cannot starve another's requests.
func rateLimitMiddleware(limiter *ratelimit.TenantLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if !limiter.Allow(tenantID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// requestLogger logs each request's method, path, status, and latency
// through internal/logging rather than gin's own default logger, so every
// request shares the orchestrator's structured log format.
func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("http request")
	}
}
