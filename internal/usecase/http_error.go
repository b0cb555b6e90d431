package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーの種類（レスポンスのkindにそのまま出る）
type ErrorKind string

const (
	KindValidation                 ErrorKind = "ValidationError"
	KindNotFound                   ErrorKind = "NotFound"
	KindInsufficientStock          ErrorKind = "InsufficientStock"
	KindUnauthenticated            ErrorKind = "Unauthenticated"
	KindForbidden                  ErrorKind = "Forbidden"
	KindConflict                   ErrorKind = "Conflict"
	KindTransactionAborted         ErrorKind = "TransactionAborted"
	KindPaymentProviderError       ErrorKind = "PaymentProviderError"
	KindPaymentProviderUnavailable ErrorKind = "PaymentProviderUnavailable"
	KindInternal                   ErrorKind = "Internal"
)

type HTTPError struct {
	Status  int
	Message string
	Kind    ErrorKind
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// statusからkindを決める。種類を明示したいときはNewKindError
func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Kind:    kindFromStatus(status),
	}
}

func NewKindError(status int, kind ErrorKind, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Kind:    kind,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func kindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	}
	return KindInternal
}

// よく使うもの
func errInsufficientStock() error {
	return NewKindError(http.StatusBadRequest, KindInsufficientStock, "insufficient stock")
}

func errTxAborted() error {
	return NewKindError(http.StatusInternalServerError, KindTransactionAborted, "transaction aborted")
}

func errDB() error {
	return NewHTTPError(http.StatusInternalServerError, "db error")
}
