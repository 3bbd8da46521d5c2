package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail bool
	}{
		{"validation", shared.Invalid(errors.New("receiving: bad"), "line 1"), http.StatusBadRequest, true},
		{"not found", fmt.Errorf("procurement: order %w", shared.ErrNotFound), http.StatusNotFound, true},
		{"conflict", fmt.Errorf("receiving: order busy: %w", shared.ErrConflict), http.StatusConflict, true},
		{"unavailable", fmt.Errorf("%w: dial tcp 10.0.0.5:5432", shared.ErrStoreUnavailable), http.StatusServiceUnavailable, false},
		{"internal", errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)
			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

			var problem ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
			require.Equal(t, tc.status, problem.Status)
			if tc.detail {
				require.Equal(t, tc.err.Error(), problem.Detail)
			} else {
				require.Empty(t, problem.Detail)
			}
		})
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "a", target.Name)
}

func TestFieldProblem(t *testing.T) {
	rr := httptest.NewRecorder()
	FieldProblem(rr, map[string]string{"lines[0].quantity": "required"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "required", problem.Fields["lines[0].quantity"])
}
