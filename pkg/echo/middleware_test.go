package echo

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/robomart/x402"
)

func setupServer(store x402.SessionStore) *echo.Echo {
	e := echo.New()
	e.Use(PaymentMiddleware("0.15", "ADDR1", WithSessionStore(store)))
	e.GET("/resource", func(c echo.Context) error {
		return c.String(http.StatusOK, "resource content")
	})
	return e
}

func TestMiddlewareChallengesUnpaidRequest(t *testing.T) {
	store := x402.NewInMemorySessionStore(time.Minute)
	e := setupServer(store)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	body, _ := io.ReadAll(w.Body)
	challenge, err := x402.DecodeChallenge(w.Code, w.Header(), body)
	require.NoError(t, err)

	assert.NotEmpty(t, challenge.SessionID)
	assert.Equal(t, "0.15", challenge.Amount)
	assert.Equal(t, "ADDR1", challenge.Recipient)
}

func TestMiddlewareAdmitsPaidSession(t *testing.T) {
	store := x402.NewInMemorySessionStore(time.Minute)
	e := setupServer(store)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	sessionID := w.Header().Get(x402.HeaderSessionID)
	require.True(t, store.MarkPaid(sessionID))

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/resource", nil)
	req.Header.Set(x402.HeaderSessionID, sessionID)
	e.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resource content", w.Body.String())
}
