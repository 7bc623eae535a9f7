package gin

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/robomart/x402"
)

func setupRouter(store x402.SessionStore, opts ...Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(PaymentMiddleware("0.15", "ADDR1", append(opts, WithSessionStore(store))...))
	router.GET("/resource", func(c *gin.Context) {
		c.String(http.StatusOK, "resource content")
	})
	return router
}

func TestMiddlewareChallengesUnpaidRequest(t *testing.T) {
	store := x402.NewInMemorySessionStore(time.Minute)
	router := setupRouter(store, WithService("image-labeling"), WithResourceID("robot-42"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/resource", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	// The response must decode as a challenge through the client codec.
	body, _ := io.ReadAll(w.Body)
	challenge, err := x402.DecodeChallenge(w.Code, w.Header(), body)
	require.NoError(t, err)

	assert.NotEmpty(t, challenge.SessionID)
	assert.Equal(t, "0.15", challenge.Amount)
	assert.Equal(t, "USDC", challenge.Currency)
	assert.Equal(t, "solana-devnet", challenge.Network)
	assert.Equal(t, "ADDR1", challenge.Recipient)
	assert.Equal(t, "image-labeling", challenge.Service)
	assert.Equal(t, "robot-42", challenge.ResourceID)
	require.NotNil(t, challenge.ExpiresAt)
	assert.False(t, challenge.Expired(time.Now()))

	// Headers and body carry the same session.
	assert.Equal(t, challenge.SessionID, w.Header().Get(x402.HeaderSessionID))
}

func TestMiddlewareAdmitsPaidSession(t *testing.T) {
	store := x402.NewInMemorySessionStore(time.Minute)
	router := setupRouter(store)

	// First request issues the challenge.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	sessionID := w.Header().Get(x402.HeaderSessionID)
	require.NotEmpty(t, sessionID)

	// Unpaid replay is challenged again with a fresh session.
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/resource", nil)
	req.Header.Set(x402.HeaderSessionID, sessionID)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.NotEqual(t, sessionID, w.Header().Get(x402.HeaderSessionID))

	// Once payment is recorded the resume token admits the request.
	require.True(t, store.MarkPaid(sessionID))

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/resource", nil)
	req.Header.Set(x402.HeaderSessionID, sessionID)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resource content", w.Body.String())
}

func TestMiddlewareRejectsExpiredSession(t *testing.T) {
	store := x402.NewInMemorySessionStore(10 * time.Millisecond)
	router := setupRouter(store, WithChallengeTTL(10*time.Millisecond))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))
	sessionID := w.Header().Get(x402.HeaderSessionID)
	require.True(t, store.MarkPaid(sessionID))

	time.Sleep(20 * time.Millisecond)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/resource", nil)
	req.Header.Set(x402.HeaderSessionID, sessionID)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestMiddlewareStrictValidation(t *testing.T) {
	store := x402.NewInMemorySessionStore(time.Minute)
	router := setupRouter(store, WithStrictChallengeValidation())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))

	// A well-formed challenge passes the schema check and is emitted.
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}
