package middleware

import (
	apiError "collaborative-canvas-backend/internal/errors"
	"errors"
	"log"

	"github.com/gin-gonic/gin"
)

// ErrorHandler turns errors attached to the gin context into the JSON
// error response, classifying unknown errors as internal.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var apiErr *apiError.APIError

			if !errors.As(err, &apiErr) {
				// a raw error we didn't wrap is an internal failure
				apiErr = apiError.Internal(err)
			}

			if apiErr.Status >= 500 {
				log.Printf("[ERROR] %v\n", apiErr.Internal)
			} else {
				log.Printf("[INFO] %s: %v\n", apiErr.Message, apiErr.Internal)
			}

			c.AbortWithStatusJSON(apiErr.Status, apiErr)
		}
	}
}
