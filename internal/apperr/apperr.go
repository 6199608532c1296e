// Package apperr holds the tagged error type shared by the service, store and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an Error with its category.
type Kind string

const (
	KindValidation        Kind = "validation-error"
	KindBusinessRule      Kind = "business-rule-violation"
	KindAuditWriteFailure Kind = "audit-write-failure"
	KindInfrastructure    Kind = "infrastructure-error"
	KindNotFound          Kind = "not-found"
	KindAuthentication    Kind = "authentication-error"
	KindAuthorization     Kind = "authorization-error"
)

// Codes carried on the wire.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeBusinessRule      = "BUSINESS_RULE_VIOLATION"
	CodeAuditWriteFailure = "AUDIT_WRITE_FAILURE"
	CodeDatabase          = "DATABASE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeAuthentication    = "AUTHENTICATION_ERROR"
	CodeAuthorization     = "AUTHORIZATION_ERROR"
)

// Error is the tagged error returned by every layer.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Status: http.StatusBadRequest}
}

func BusinessRule(message string) *Error {
	return &Error{Kind: KindBusinessRule, Code: CodeBusinessRule, Message: message, Status: http.StatusBadRequest}
}

// AuditWriteFailure reports that a rejected attempt could not be recorded.
// cause should carry both the rejection and the write error.
func AuditWriteFailure(message string, cause error) *Error {
	return &Error{Kind: KindAuditWriteFailure, Code: CodeAuditWriteFailure, Message: message, Status: http.StatusInternalServerError, Cause: cause}
}

func Infrastructure(message string, cause error) *Error {
	return &Error{Kind: KindInfrastructure, Code: CodeDatabase, Message: message, Status: http.StatusInternalServerError, Cause: cause}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Code: CodeAuthentication, Message: message, Status: http.StatusUnauthorized}
}

func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeAuthorization, Message: message, Status: http.StatusForbidden}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the outermost *Error, or "" when err is untagged.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether the outermost tagged error in err has kind k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
