package errs

import (
	"errors"
	"fmt"
)

// AppError 应用错误类型
// 统一管理客户端错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 支持 errors.Is，按错误码比较
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 凭证相关 10000-10999
	CodeCredentialMissing = 10001
	CodeCredentialInvalid = 10002
	CodeCredentialExpired = 10003

	// 通道相关 20000-20999
	CodeChannelNotReady   = 20001
	CodeChannelAuthFailed = 20002
	CodeChannelClosed     = 20003
	CodeChannelBusy       = 20004

	// 会话同步相关 21000-21999
	CodeEmptyMessage = 21001
	CodeNotJoined    = 21002
	CodeAckTimeout   = 21003

	// REST 接口相关 22000-22999
	CodeUnauthorized = 22001
	CodeBadResponse  = 22002

	// 系统错误 50000-50999
	CodeInternal = 50000
)

// ============== 预定义错误 ==============

var (
	ErrCredentialMissing = NewError(CodeCredentialMissing, "credential missing")
	ErrCredentialInvalid = NewError(CodeCredentialInvalid, "credential invalid")
	ErrCredentialExpired = NewError(CodeCredentialExpired, "credential expired")

	ErrChannelNotReady   = NewError(CodeChannelNotReady, "channel not ready")
	ErrChannelAuthFailed = NewError(CodeChannelAuthFailed, "channel authentication failed")
	ErrChannelClosed     = NewError(CodeChannelClosed, "channel closed")
	ErrChannelBusy       = NewError(CodeChannelBusy, "channel write queue full")

	ErrEmptyMessage = NewError(CodeEmptyMessage, "message content is empty")
	ErrNotJoined    = NewError(CodeNotJoined, "conversation not joined")

	ErrUnauthorized = NewError(CodeUnauthorized, "unauthorized")
	ErrBadResponse  = NewError(CodeBadResponse, "unexpected server response")
)
