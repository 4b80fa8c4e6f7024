package utils

import (
	"github.com/gin-gonic/gin"
)

// JSONResponse is the envelope every API answer uses.
type JSONResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

func ResponseWithSuccess(
	c *gin.Context,
	statusCode int,
	message string,
	data interface{},
) {
	c.JSON(statusCode, JSONResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ResponseWithError(
	c *gin.Context,
	statusCode int,
	message string,
	errorDetails interface{},
) {
	c.JSON(statusCode, JSONResponse{
		Success: false,
		Message: message,
		Error:   errorDetails,
	})
}

// ResponseWithErr answers with err as the error detail for client errors.
// Server errors carry only the message; the cause belongs in the log.
func ResponseWithErr(c *gin.Context, statusCode int, message string, err error) {
	var detail interface{}
	if err != nil && statusCode < 500 {
		detail = err.Error()
	}
	ResponseWithError(c, statusCode, message, detail)
}
