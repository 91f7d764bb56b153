// internal/domain/errors.go
package domain

import (
	"sort"
	"strings"
)

// DomainError is a stable, comparable error kind. Wrap it with fmt.Errorf("...: %w") to add context.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrValidation         = NewDomainError("VALIDATION", "invalid order input")
	ErrPriceNotConfirmed  = NewDomainError("PRICE_NOT_CONFIRMED", "price must be calculated and confirmed before submission")
	ErrDuplicateOrder     = NewDomainError("DUPLICATE_ORDER", "order already exists")
	ErrOrderNotFound      = NewDomainError("ORDER_NOT_FOUND", "order not found")
	ErrStaleStatus        = NewDomainError("STALE_STATUS", "order status changed since it was read")
	ErrIllegalTransition  = NewDomainError("ILLEGAL_TRANSITION", "transition not allowed from current status")
	ErrForbidden          = NewDomainError("FORBIDDEN", "actor may not perform this action")
	ErrQueueEntryNotFound = NewDomainError("QUEUE_ENTRY_NOT_FOUND", "local queue entry not found")
	ErrRemoteUnavailable  = NewDomainError("REMOTE_UNAVAILABLE", "order service unavailable")
)

// ValidationError lists per-field problems with a submitted form.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid order input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
