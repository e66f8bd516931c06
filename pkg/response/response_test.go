package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestErrorTypedKeepsCode(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.StateConflict("action", "act-1", "completed", "awaiting_verdict"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "STATE_CONFLICT", w.Header().Get(ErrorCodeHeader))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, c.Errors)
}

func TestErrorHidesUntypedCause(t *testing.T) {
	c, w := newContext()
	Error(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	require.Len(t, c.Errors, 1)

	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}

func TestCreatedCarriesMeta(t *testing.T) {
	c, w := newContext()
	Created(c, map[string]string{"id": "rep-1"}, map[string]interface{}{"is_repeat_violation": true})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"is_repeat_violation":true`)
}

func TestAttachmentEncodesFilename(t *testing.T) {
	c, w := newContext()
	Attachment(c, "case DR-0001.pdf", "application/pdf", []byte("%PDF"))

	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="case DR-0001.pdf"`)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "filename*=UTF-8''case%20DR-0001.pdf")
}
