package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bankcore/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOfCoversEveryKind(t *testing.T) {
	for kind := apperr.KindAccountNotFound; kind <= apperr.KindIdempotencyConflict; kind++ {
		_, ok := errorTable[kind]
		assert.True(t, ok, kind.String())
	}

	status, code := StatusOf(errors.New("plain"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeServerError, code)

	status, code = StatusOf(apperr.InsufficientFunds())
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, CodeInsufficientFunds, code)
}

func TestFailHidesStorageCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, apperr.Storage("transfer", errors.New("dial tcp 10.0.0.5:3306: connection refused")))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestFailCarriesSide(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, apperr.AccountFrozenOrInactive(apperr.SideDestination))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeAccountFrozenOrInactive, body.Code)
	assert.Equal(t, "destination", body.Side)
}
