// Package echo provides the resource-server half of the payment-challenge
// protocol as Echo middleware, mirroring the Gin variant.
package echo

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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

// PaymentMiddleware is the Echo middleware for a resource server
// charging per request. Amount is the decimal price; address is the
// payment recipient. See the Gin variant for the admission rules.
func PaymentMiddleware(amount, address string, opts ...Options) echo.MiddlewareFunc {
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

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sessionID := c.Request().Header.Get(x402.HeaderSessionID); sessionID != "" && store.Paid(sessionID) {
				return next(c)
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

			body := map[string]interface{}{
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

			header := c.Response().Header()
			header.Set(x402.HeaderSessionID, challenge.SessionID)
			header.Set(x402.HeaderPaymentAmount, challenge.Amount)
			header.Set(x402.HeaderPaymentCurrency, challenge.Currency)
			header.Set(x402.HeaderPaymentNetwork, challenge.Network)
			header.Set(x402.HeaderPaymentAddress, challenge.Recipient)
			header.Set(x402.HeaderExpiresAt, expiresAt.Format(time.RFC3339))

			return c.JSON(http.StatusPaymentRequired, body)
		}
	}
}
