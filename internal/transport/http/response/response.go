package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeEmailExists        = 40002
	CodeUnsupportedFormat  = 40003
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeInactiveUser       = 40102
	CodeDatasetNotFound    = 40401
	CodePayloadTooLarge    = 41300
	CodeTooManyRequests    = 42900
	CodeInternalServer     = 50000
	CodeIngestionFailed    = 50001
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
