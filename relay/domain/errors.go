package domain

import (
	"errors"
	"net/http"
)

// Kind é a categoria de um erro devolvido ao cliente.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindRateLimited
	KindDependencyFailure
	KindEmptyDependencyResult
)

func (k Kind) Code() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limit_exceeded"
	case KindDependencyFailure:
		return "dependency_failure"
	case KindEmptyDependencyResult:
		return "empty_dependency_result"
	default:
		return "internal_error"
	}
}

func (k Kind) Status() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error é o erro classificado: Message vai para o cliente, Err fica só no log.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.Code() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.Code() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int  { return e.Kind.Status() }
func (e *Error) Code() string { return e.Kind.Code() }

func InvalidInput(field, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: msg}
}

// AsError extrai um *Error da cadeia de err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reporta se err carrega um *Error do tipo k.
func IsKind(err error, k Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == k
}
