package middlewares

import (
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationMiddleware assigns every request a correlation id, honoring one
// supplied by the caller. Ledger rows written during the request carry it, so
// all rows of one posting can be pulled together later.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Correlation-Id", correlationId)
		c.Next()
	}
}
