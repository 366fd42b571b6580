package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONHidesWrappedError(t *testing.T) {
	err := Internal("failed to dispatch campaign", errors.New("pq: connection refused"))

	base := From(err)
	require.Equal(t, StatusInternal, base.Code)
	require.Contains(t, base.Error(), "connection refused")

	body := base.JSON().(map[string]interface{})["error"].(map[string]interface{})
	require.Equal(t, "failed to dispatch campaign", body["message"])
	require.NotContains(t, fmt.Sprint(body), "connection refused")
}

func TestFromUnknownError(t *testing.T) {
	base := From(errors.New("boom"))
	require.Equal(t, StatusInternal, base.Code)
	require.Equal(t, http.StatusInternalServerError, base.Code.HTTPStatus())
}

func TestFromWrapped(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("campaign not found", nil))
	base := From(err)
	require.Equal(t, StatusNotFound, base.Code)
	require.Equal(t, http.StatusNotFound, base.Code.HTTPStatus())
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[CoreStatus]int{
		StatusBadRequest:      http.StatusBadRequest,
		StatusUnauthorized:    http.StatusUnauthorized,
		StatusForbidden:       http.StatusForbidden,
		StatusConflict:        http.StatusConflict,
		StatusTooManyRequests: http.StatusTooManyRequests,
		StatusUnknown:         http.StatusInternalServerError,
	}
	for status, want := range cases {
		require.Equal(t, want, status.HTTPStatus(), string(status))
	}
}
