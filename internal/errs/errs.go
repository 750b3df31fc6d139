package errs

import (
	"errors"
	"fmt"
)

// Code классифицирует ошибку операции.
type Code string

const (
	ErrNotAuthenticated     Code = "NOT_AUTHENTICATED"
	ErrNavigationTimeout    Code = "NAVIGATION_TIMEOUT"
	ErrContentNotFound      Code = "CONTENT_NOT_FOUND"
	ErrExtractionFailed     Code = "EXTRACTION_FAILED"
	ErrInputLocatorNotFound Code = "INPUT_LOCATOR_NOT_FOUND"
	ErrSubmitUnconfirmed    Code = "SUBMIT_UNCONFIRMED"
	ErrLoginTimedOut        Code = "LOGIN_TIMED_OUT"
	ErrInvalidRequest       Code = "INVALID_REQUEST"
	ErrInternal             Code = "INTERNAL"
)

// Error - типизированная ошибка уровня операции.
type Error struct {
	Code      Code
	Message   string
	Marker    string // маркер ошибки со страницы (для CONTENT_NOT_FOUND)
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сообщает, содержит ли цепочка err ошибку с кодом code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf возвращает код ошибки или ErrInternal для нетипизированных ошибок.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// IsRetryable сообщает, имеет ли смысл повторить операцию.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func NewNotAuthenticated() *Error {
	return &Error{
		Code:    ErrNotAuthenticated,
		Message: "session is not authenticated; run login first",
	}
}

func NewNavigationTimeout(url string, err error) *Error {
	return &Error{
		Code:    ErrNavigationTimeout,
		Message: fmt.Sprintf("navigation to %s timed out", url),
		Err:     err,
	}
}

func NewContentNotFound(url, marker string) *Error {
	return &Error{
		Code:    ErrContentNotFound,
		Message: fmt.Sprintf("page %s reports missing content", url),
		Marker:  marker,
	}
}

func NewExtractionFailed(msg string, err error) *Error {
	return &Error{
		Code:    ErrExtractionFailed,
		Message: msg,
		Err:     err,
	}
}

func NewInputLocatorNotFound(url string) *Error {
	return &Error{
		Code:    ErrInputLocatorNotFound,
		Message: fmt.Sprintf("no comment input found on %s", url),
	}
}

func NewSubmitUnconfirmed(url string) *Error {
	return &Error{
		Code:    ErrSubmitUnconfirmed,
		Message: fmt.Sprintf("comment typed on %s but no submit strategy was confirmed", url),
	}
}

func NewLoginTimedOut(waited string) *Error {
	return &Error{
		Code:      ErrLoginTimedOut,
		Message:   fmt.Sprintf("login not completed within %s", waited),
		Retryable: true,
	}
}

func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}
