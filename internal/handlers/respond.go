package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Manzp111/Procured-Payment/internal/apperrors"
)

// respond writes the API envelope every endpoint uses.
func respond(c *gin.Context, status int, success bool, message string, data interface{}) {
	c.JSON(status, gin.H{
		"success": success,
		"message": message,
		"data":    data,
	})
}

// respondError maps a taxonomy error to its status code and message.
func respondError(c *gin.Context, err error) {
	respond(c, apperrors.HTTPStatus(err), false, apperrors.Message(err), nil)
}
