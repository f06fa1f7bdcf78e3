package response_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oit-uog/solr-federator/pkg/response"
)

type envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Success(rec, map[string]string{"ok": "yes"})

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	e := decode(t, rec)
	assert.Equal(t, 200, e.Status)
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Error(rec, 502, "upstream unavailable")

	assert.Equal(t, 502, rec.Code)
	e := decode(t, rec)
	assert.Equal(t, "upstream unavailable", e.Message)
}

func TestValidationErrorIs422(t *testing.T) {
	rec := httptest.NewRecorder()
	response.ValidationError(rec, "page must be positive")

	assert.Equal(t, 422, rec.Code)
	e := decode(t, rec)
	assert.Equal(t, "page must be positive", e.Message)
}

func TestServiceUnavailableIs503(t *testing.T) {
	rec := httptest.NewRecorder()
	response.ServiceUnavailable(rec, "backends not yet discovered")

	assert.Equal(t, 503, rec.Code)
}
