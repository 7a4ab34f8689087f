package shared

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Fractional digits of the NUMERIC columns amounts and quantities are stored in.
const (
	MoneyScale    int32 = 2
	QuantityScale int32 = 4
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs the `validate` tags of v and reports the first failing field
// as a ValidationError.
func ValidateStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &ValidationError{Field: strings.ToLower(fe.Namespace()), Reason: reason}
	}
	return &ValidationError{Reason: err.Error()}
}

// CheckScale rejects v when it carries more fractional digits than places, so
// Postgres never rounds a value after it passed validation.
func CheckScale(field string, v decimal.Decimal, places int32) error {
	if !v.Round(places).Equal(v) {
		return Validation(field, "at most %d decimal places", places)
	}
	return nil
}
