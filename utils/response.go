package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func JSONSuccess(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{"success": true, "data": data})
}

func JSONError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"success": false, "error": message})
}

// JSONFromError renders err, exposing the numeric code of argument errors.
func JSONFromError(c *gin.Context, fallback int, err error) {
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": argErr.Message, "code": argErr.Code})
		return
	}
	JSONError(c, fallback, err.Error())
}
