package api

import "github.com/gin-gonic/gin"

// extractUserID identifies the caller from oauth2-proxy headers.
// Priority: X-Forwarded-User > X-Forwarded-Email > "api-client".
func extractUserID(c *gin.Context) string {
	if user := c.GetHeader("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.GetHeader("X-Forwarded-Email"); email != "" {
		return email
	}
	return "api-client"
}
