package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.NotFound("warehouse", 3), http.StatusNotFound},
		{shared.Validation("quantity", "must be positive"), http.StatusBadRequest},
		{&shared.AuthorizationError{EntityID: 1}, http.StatusForbidden},
		{&shared.InsufficientStockError{ProductID: 1, WarehouseID: 1}, http.StatusConflict},
		{&shared.ConfigurationError{Kind: "journal", Key: "SALES"}, http.StatusUnprocessableEntity},
		{&shared.ConfigurationError{Kind: "account", Key: "701", Err: shared.NotFound("account", "701")}, http.StatusUnprocessableEntity},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)
		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Equal(t, tc.status, problem.Status)
	}
}

func TestRespondErrorNamesValidationField(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, shared.Validation("quantity", "must be positive"))
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "quantity", problem.Field)
	require.Equal(t, "about:blank", problem.Type)
}

func TestDecodeJSON(t *testing.T) {
	var dest struct {
		Quantity string `json:"quantity"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":"4"}`))
	require.NoError(t, DecodeJSON(req, &dest))
	require.Equal(t, "4", dest.Quantity)

	for _, body := range []string{`{"quantity":`, `{"qty":"4"}`, `{"quantity":"4"} {}`} {
		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		require.ErrorIs(t, DecodeJSON(req, &dest), shared.ErrValidation, body)
	}
}
