package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	stock := &InsufficientStockError{ProductID: 1, WarehouseID: 2, Available: decimal.NewFromInt(3), Requested: decimal.NewFromInt(5)}
	wrapped := fmt.Errorf("sale 9: %w", stock)
	require.ErrorIs(t, wrapped, ErrInsufficientStock)
	var target *InsufficientStockError
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, int64(2), target.WarehouseID)

	require.ErrorIs(t, Validation("total", "must be positive"), ErrValidation)
	require.ErrorIs(t, NotFound("account", "571"), ErrNotFound)
	require.ErrorIs(t, &AuthorizationError{EntityID: 1}, ErrAuthorization)

	cfg := &ConfigurationError{Kind: "account", Key: "571", Err: NotFound("account", "571")}
	require.ErrorIs(t, cfg, ErrConfiguration)
	require.ErrorIs(t, cfg, ErrNotFound)

	failure := &PostingFailure{ReferenceType: "SALE", ReferenceID: 4, Err: cfg}
	require.ErrorIs(t, failure, ErrPostingFailure)
	require.ErrorIs(t, failure, ErrConfiguration)
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Kind string `validate:"required,oneof=IN OUT"`
		ID   int64  `validate:"gt=0"`
	}
	require.NoError(t, ValidateStruct(input{Kind: "IN", ID: 1}))

	err := ValidateStruct(input{Kind: "SIDEWAYS", ID: 1})
	require.ErrorIs(t, err, ErrValidation)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "input.kind", vErr.Field)
}

func TestCheckScale(t *testing.T) {
	d := decimal.RequireFromString
	require.NoError(t, CheckScale("q", d("5.00000"), 4))
	require.NoError(t, CheckScale("q", d("5.0004"), QuantityScale))
	require.NoError(t, CheckScale("amount", d("1200"), MoneyScale))

	err := CheckScale("q", d("5.00004"), QuantityScale)
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "q", verr.Field)
	require.ErrorIs(t, CheckScale("amount", d("0.004"), MoneyScale), ErrValidation)
}

func TestActorOwns(t *testing.T) {
	actor := Actor{EntityID: 7, UserID: 1}
	require.NoError(t, actor.Validate())
	require.NoError(t, actor.Owns(7))
	require.ErrorIs(t, actor.Owns(8), ErrAuthorization)
	require.ErrorIs(t, Actor{}.Validate(), ErrValidation)
}
