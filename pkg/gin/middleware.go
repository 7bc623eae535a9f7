// Package gin provides the resource-server half of the payment-challenge
// protocol as Gin middleware: it challenges unpaid requests with a 402
// carrying the challenge encoding, and admits requests that present a
// session id whose payment has been recorded.
package gin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	x402 "github.com/robomart/x402"
)

// PaymentMiddlewareOptions is the options for the PaymentMiddleware.
type PaymentMiddlewareOptions struct {
	Currency     string
	Network      string
	Service      string
	ResourceID   string
	Message      string
	ChallengeTTL time.Duration
	Store        x402.SessionStore
	Strict       bool
}

// Options is the type for the options for the PaymentMiddleware.
type Options func(*PaymentMiddlewareOptions)

// WithCurrency sets the challenge currency.
func WithCurrency(currency string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Currency = currency
	}
}

// WithNetwork sets the settlement network identifier.
func WithNetwork(network string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Network = network
	}
}

// WithService sets the service name carried in challenges.
func WithService(service string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Service = service
	}
}

// WithResourceID sets the resource identifier carried in challenges.
func WithResourceID(resourceID string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.ResourceID = resourceID
	}
}

// WithMessage sets the human-readable challenge message.
func WithMessage(message string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Message = message
	}
}

// WithChallengeTTL sets how long an issued challenge stays valid.
func WithChallengeTTL(ttl time.Duration) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.ChallengeTTL = ttl
	}
}

// WithSessionStore sets the session store shared with the payment
// recording path.
func WithSessionStore(store x402.SessionStore) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Store = store
	}
}

// WithStrictChallengeValidation makes the middleware schema-check every
// challenge body it emits. Useful in development.
func WithStrictChallengeValidation() Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Strict = true
	}
}

// PaymentMiddleware is the Gin middleware for a resource server charging
// per request. Amount is the decimal price (e.g. "0.15"); address is the
// payment recipient.
//
// Requests carrying an X-Session-Id header for a paid, unexpired session
// pass through. All others are challenged with a 402 whose headers and
// body both carry the challenge fields.
func PaymentMiddleware(amount, address string, opts ...Options) gin.HandlerFunc {
	options := &PaymentMiddlewareOptions{
		Currency:     "USDC",
		Network:      "solana-devnet",
		ChallengeTTL: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(options)
	}

	store := options.Store
	if store == nil {
		store = x402.NewInMemorySessionStore(options.ChallengeTTL)
	}

	return func(c *gin.Context) {
		if sessionID := c.GetHeader(x402.HeaderSessionID); sessionID != "" && store.Paid(sessionID) {
			c.Next()
			return
		}

		expiresAt := time.Now().Add(options.ChallengeTTL).UTC().Truncate(time.Second)
		challenge := x402.PaymentChallenge{
			SessionID:  uuid.NewString(),
			Amount:     amount,
			Currency:   options.Currency,
			Network:    options.Network,
			Recipient:  address,
			Service:    options.Service,
			ResourceID: options.ResourceID,
			ExpiresAt:  &expiresAt,
			Message:    options.Message,
		}
		store.Create(challenge)

		body := gin.H{
			"session_id": challenge.SessionID,
			"amount":     challenge.Amount,
			"currency":   challenge.Currency,
			"network":    challenge.Network,
			"recipient":  challenge.Recipient,
			"expires_at": expiresAt.Format(time.RFC3339),
		}
		if challenge.Service != "" {
			body["service"] = challenge.Service
		}
		if challenge.ResourceID != "" {
			body["robot_id"] = challenge.ResourceID
		}
		if challenge.Message != "" {
			body["message"] = challenge.Message
		}

		if options.Strict {
			raw, err := json.Marshal(body)
			if err == nil {
				if result := x402.ValidateChallengeDocument(raw); !result.Valid {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "invalid challenge document: " + result.Errors[0],
					})
					return
				}
			}
		}

		c.Header(x402.HeaderSessionID, challenge.SessionID)
		c.Header(x402.HeaderPaymentAmount, challenge.Amount)
		c.Header(x402.HeaderPaymentCurrency, challenge.Currency)
		c.Header(x402.HeaderPaymentNetwork, challenge.Network)
		c.Header(x402.HeaderPaymentAddress, challenge.Recipient)
		c.Header(x402.HeaderExpiresAt, expiresAt.Format(time.RFC3339))

		c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
	}
}
