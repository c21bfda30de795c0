// internal/api/response_helpers.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseHelper 统一的 API 响应格式
type ResponseHelper struct{}

// apiResponse 响应信封
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

// apiError 错误体
type apiError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Success 成功响应
func (r *ResponseHelper) Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: data})
}

// BadRequest 请求参数错误
func (r *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	r.errorResponse(c, http.StatusBadRequest, message, details...)
}

// Conflict 资源冲突（如渲染宿主被占用）
func (r *ResponseHelper) Conflict(c *gin.Context, message string, details ...string) {
	r.errorResponse(c, http.StatusConflict, message, details...)
}

// InternalError 服务器内部错误
func (r *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	r.errorResponse(c, http.StatusInternalServerError, message, details...)
}

func (r *ResponseHelper) errorResponse(c *gin.Context, status int, message string, details ...string) {
	e := &apiError{Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	c.JSON(status, apiResponse{Success: false, Error: e})
}
