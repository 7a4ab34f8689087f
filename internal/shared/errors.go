package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or non-positive input.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorization indicates cross-tenant or forbidden access.
	ErrAuthorization = errors.New("not authorized")
	// ErrInsufficientStock indicates an exit or transfer exceeding available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConfiguration indicates the chart of accounts or journals miss an expected entry.
	ErrConfiguration = errors.New("configuration incomplete")
	// ErrPostingFailure indicates a ledger posting failed after the business mutation committed.
	ErrPostingFailure = errors.New("posting failed")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// Validation builds a ValidationError for field.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown product, warehouse, account, journal or document.
type NotFoundError struct {
	Kind string
	Key  string
}

// NotFound builds a NotFoundError.
func NotFound(kind string, key any) error {
	return &NotFoundError{Kind: kind, Key: fmt.Sprint(key)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AuthorizationError reports access to a record owned by another entity.
type AuthorizationError struct {
	EntityID int64
	Reason   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("entity %d: %s", e.EntityID, e.Reason)
}

// Is matches ErrAuthorization.
func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorization }

// InsufficientStockError carries the quantities of the failing stock row.
type InsufficientStockError struct {
	ProductID   int64
	WarehouseID int64
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d in warehouse %d: available %s, requested %s",
		e.ProductID, e.WarehouseID, e.Available.String(), e.Requested.String())
}

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ConfigurationError reports a missing account number or journal.
type ConfigurationError struct {
	Kind string
	Key  string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s missing from chart", e.Kind, e.Key)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// PostingFailure is the non-fatal error surfaced once the triggering mutation has committed.
type PostingFailure struct {
	ReferenceType string
	ReferenceID   int64
	Err           error
}

func (e *PostingFailure) Error() string {
	return fmt.Sprintf("posting %s#%d: %v", e.ReferenceType, e.ReferenceID, e.Err)
}

// Is matches ErrPostingFailure.
func (e *PostingFailure) Is(target error) bool { return target == ErrPostingFailure }

func (e *PostingFailure) Unwrap() error { return e.Err }
