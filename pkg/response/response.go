package response

import (
	"log"
	"net/http"
	"os"

	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// Error standardized error response. Internal errors are logged and their
// detail is hidden outside of development.
func Error(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code == http.StatusInternalServerError {
		log.Printf("[Internal Error] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		if os.Getenv("APP_ENV") == "production" {
			c.JSON(code, gin.H{"error": apperror.ErrInternal.Error()})
			return
		}
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
