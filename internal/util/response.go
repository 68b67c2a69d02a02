package util

import (
	"lms_backend/pkg/errreport"
	"lms_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 所有接口的统一外层结构，code 与 HTTP 状态码一致
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func write(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Code: status, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, "success", data)
}

func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, "created", data)
}

func Error(c *gin.Context, status int, message string) {
	write(c, status, message, nil)
}

func Unauthorized(c *gin.Context) { Error(c, http.StatusUnauthorized, "Unauthorized") }

func Forbidden(c *gin.Context) { Error(c, http.StatusForbidden, "Forbidden") }

func BadRequest(c *gin.Context, message string) { Error(c, http.StatusBadRequest, message) }

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

// HandleError 按错误分类写响应。5xx 只返回简短信息，完整原因写日志并上报
func HandleError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		reportServerError(c, "unhandled error", err)
		InternalServerError(c)
		return
	}

	status := appErr.Status()
	if status >= http.StatusInternalServerError {
		reportServerError(c, appErr.Message, err)
	}
	Error(c, status, appErr.Message)
}

func reportServerError(c *gin.Context, msg string, err error) {
	logger.Log.Error(msg,
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	errreport.Report(err, map[string]interface{}{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	})
}
