package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/pdfchat-backend/internal/requestdata"
)

// DefaultUserID is used when no X-User-ID header is present. The deployment
// fronting this service is expected to inject the real user id.
var DefaultUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Identity resolves the acting user from the X-User-ID header and stashes it
// in the request context for handlers and services.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := DefaultUserID
		if raw := c.GetHeader("X-User-ID"); raw != "" {
			if parsed, err := uuid.Parse(raw); err == nil {
				userID = parsed
			}
		}
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{UserID: userID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
