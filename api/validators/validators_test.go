package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
)

type pairBody struct {
	Keep    string `json:"keep_id" validate:"required,uuid"`
	Discard string `json:"discard_id" validate:"required,uuid,nefield=Keep"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"keep_id":"nope"}`))
	var body pairBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid id", details["keep_id"])
	require.Equal(t, "is required", details["discard_id"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"keep_id":"a","extra":1}`))
	var body pairBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParseQueryBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&threshold=0.9&bad=x", nil)

	limit, err := ParseQueryInt(req, "limit", 50, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, limit)

	fallback, err := ParseQueryInt(req, "missing", 50, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 50, fallback)

	threshold, err := ParseQueryFloat(req, "threshold", 0.7, 0, 1)
	require.NoError(t, err)
	require.Equal(t, 0.9, threshold)

	_, err = ParseQueryInt(req, "bad", 1, 1, 2)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryInt(req, "limit", 1, 1, 10)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("requestId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "requestId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("not-a-uuid"), "requestId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseUUIDParam(withParam(uuid.Nil.String()), "requestId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
