package util

import (
	"net/http"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
	KindIntegrity
)

// AppError 带分类的业务错误，Message 面向客户端，cause 只写日志
type AppError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is 同类同消息即视为相等，便于 errors.Is 匹配预定义错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// WithCause 复制一份错误并附带底层原因
func (e *AppError) WithCause(cause error) *AppError {
	return &AppError{Kind: e.Kind, Message: e.Message, cause: errors.WithStack(cause)}
}

func (e *AppError) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg}
}

func NewUnauthorizedError(msg string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: msg}
}

func NewForbiddenError(msg string) *AppError {
	return &AppError{Kind: KindForbidden, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Kind: KindNotFound, Message: msg}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

func NewUpstreamError(msg string, cause error) *AppError {
	return &AppError{Kind: KindUpstream, Message: msg, cause: errors.WithStack(cause)}
}

func NewIntegrityError(msg string, cause error) *AppError {
	return &AppError{Kind: KindIntegrity, Message: msg, cause: errors.WithStack(cause)}
}

// AsAppError 提取错误链中的 AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}

var (
	ErrUserNotFound       = NewNotFoundError("user not found")
	ErrEmailRegistered    = NewConflictError("email already registered")
	ErrInvalidCredentials = NewUnauthorizedError("invalid credentials")
	ErrAccountDisabled    = NewForbiddenError("account disabled")
	ErrPermissionDenied   = NewForbiddenError("permission denied")

	ErrCourseNotFound      = NewNotFoundError("course not found")
	ErrLessonNotFound      = NewNotFoundError("lesson not found")
	ErrCourseNotPublished  = NewValidationError("course is not published")
	ErrCourseHasNoLessons  = NewValidationError("course has no lessons")
	ErrCourseAlreadyPublic = NewConflictError("course already published")

	// 重复选课按 400 返回
	ErrDuplicateEnrollment       = &AppError{Kind: KindValidation, Message: "already enrolled in this course"}
	ErrInvalidPrice              = NewValidationError("course price is below the minimum payable amount")
	ErrPaymentGatewayUnavailable = NewUpstreamError("payment gateway unavailable", nil)
	ErrPaymentVerificationFailed = NewValidationError("payment verification failed")
	ErrPaymentOrderMismatch      = NewValidationError("payment order does not match this course")
	ErrPaymentAlreadyUsed        = NewConflictError("payment already recorded")
	ErrEnrollmentFailed          = NewIntegrityError("enrollment failed", nil)
	ErrNotEnrolled               = NewForbiddenError("not enrolled in this course")

	ErrCertificateNotFound         = NewNotFoundError("certificate not found")
	ErrCertificateNotOffered       = NewValidationError("course does not offer a certificate")
	ErrCourseNotCompleted          = NewValidationError("course not completed")
	ErrCertificateGenerationFailed = NewUpstreamError("certificate generation failed", nil)

	ErrAssignmentNotFound = NewNotFoundError("assignment not found")
	ErrSubmissionNotFound = NewNotFoundError("submission not found")
	ErrAlreadyGraded      = NewConflictError("submission already graded")
	ErrInvalidGrade       = NewValidationError("grade out of range")

	ErrUploadFailed = NewUpstreamError("file upload failed", nil)
	ErrDeleteFailed = NewIntegrityError("delete failed", nil)
)
