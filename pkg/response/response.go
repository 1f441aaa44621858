package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"uncommon.org/progresstrack/pkg/apperror"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	str, ok := userIDStr.(string)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	// Log internal errors
	if code == http.StatusInternalServerError {
		slog.Error("internal error", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	var validationErr *apperror.ValidationError
	if errors.As(err, &validationErr) {
		body := gin.H{"error": validationErr.Error()}
		if len(validationErr.MissingFields) > 0 {
			body["missingFields"] = validationErr.MissingFields
		}
		if len(validationErr.InvalidFields) > 0 {
			body["invalidFields"] = validationErr.InvalidFields
		}
		c.JSON(code, body)
		return
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
