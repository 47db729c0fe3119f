package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeAlreadyReleased   ErrorCode = "ALREADY_RELEASED"
	ErrCodeAlreadyResolved   ErrorCode = "ALREADY_RESOLVED"
	ErrCodeAlreadyReviewed   ErrorCode = "ALREADY_REVIEWED"
	ErrCodeEscrowExists      ErrorCode = "ESCROW_EXISTS"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeReconciliation    ErrorCode = "RECONCILIATION"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// AppError — ошибка приложения с кодом из таксономии и HTTP статусом.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает AppError по коду, чтобы errors.Is работал с сентинелами.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeInsufficientFunds, ErrCodeInvalidTransition:
		return http.StatusBadRequest
	case ErrCodeAlreadyReleased, ErrCodeAlreadyResolved, ErrCodeAlreadyReviewed,
		ErrCodeEscrowExists, ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код AppError или ErrCodeInternal для прочих ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

var (
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrTransactionNotFound = New(ErrCodeNotFound, "сделка не найдена")
	ErrEscrowNotFound      = New(ErrCodeNotFound, "эскроу не найден")
	ErrDisputeNotFound     = New(ErrCodeNotFound, "спор не найден")
	ErrReviewNotFound      = New(ErrCodeNotFound, "отзыв не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials  = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrInsufficientFunds   = New(ErrCodeInsufficientFunds, "недостаточно средств на балансе")
	ErrInvalidTransition   = New(ErrCodeInvalidTransition, "переход статуса не разрешён")
	ErrAlreadyReleased     = New(ErrCodeAlreadyReleased, "средства по эскроу уже выплачены")
	ErrAlreadyResolved     = New(ErrCodeAlreadyResolved, "спор уже разрешён")
	ErrAlreadyReviewed     = New(ErrCodeAlreadyReviewed, "отзыв на эту сделку уже оставлен")
	ErrEscrowExists        = New(ErrCodeEscrowExists, "эскроу для сделки уже существует")
	ErrDisputeExists       = New(ErrCodeConflict, "по сделке уже открыт спор")
	ErrNotCompleted        = New(ErrCodeInvalidTransition, "отзыв можно оставить только после завершения сделки")
	ErrReconciliation      = New(ErrCodeReconciliation, "рассинхронизация эскроу и статуса сделки")
)
