// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"

	// 导出子系统错误类型
	ErrorTypeIO            ErrorType = "io_error"            // 写入或复制失败
	ErrorTypeMissingSource ErrorType = "missing_source_file" // 打包时引用的资源缺失
	ErrorTypeUnparsable    ErrorType = "unparsable_document" // 批量导出时文档解析失败
	ErrorTypeRenderBusy    ErrorType = "render_busy"         // 渲染宿主已被占用
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewIOError 创建写入/复制错误
func NewIOError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeIO, message, originalError)
}

// NewMissingSourceError 创建资源缺失错误
func NewMissingSourceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeMissingSource, message, originalError)
}

// NewUnparsableError 创建文档解析错误
func NewUnparsableError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnparsable, message, originalError)
}

// NewRenderBusyError 创建渲染宿主占用错误
func NewRenderBusyError(message string) *AppError {
	return NewAppError(ErrorTypeRenderBusy, message, nil)
}

// typeOf 提取错误的 ErrorType，非 AppError 返回空串
func typeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return typeOf(err) == ErrorTypeValidation
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return typeOf(err) == ErrorTypeNotFound
}

// IsIOError 检查是否为写入/复制错误
func IsIOError(err error) bool {
	return typeOf(err) == ErrorTypeIO
}

// IsUnparsableError 检查是否为文档解析错误
func IsUnparsableError(err error) bool {
	return typeOf(err) == ErrorTypeUnparsable
}

// IsRenderBusyError 检查是否为渲染宿主占用错误
func IsRenderBusyError(err error) bool {
	return typeOf(err) == ErrorTypeRenderBusy
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeIO:
		return "IO_ERROR"
	case ErrorTypeMissingSource:
		return "MISSING_SOURCE_FILE"
	case ErrorTypeUnparsable:
		return "UNPARSABLE_DOCUMENT"
	case ErrorTypeRenderBusy:
		return "RENDER_BUSY"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
