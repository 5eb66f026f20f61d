package api

import "github.com/gin-gonic/gin"

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{Error: message})
}
