package x402

import "time"

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates a payment cycle has started for a
	// challenged request.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess indicates a payment was verified and the
	// request resumed.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure indicates the payment cycle ended without a
	// resumed request.
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent represents a payment lifecycle event. Events are the
// observability surface of the pipeline: callers hook them for logging,
// metrics, and debugging.
type PaymentEvent struct {
	// Type is the event type (attempt, success, failure).
	Type PaymentEventType

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// URL is the resource being accessed.
	URL string

	// SessionID is the challenge's session id.
	SessionID string

	// Amount, Currency, Network, Recipient describe the challenge.
	Amount    string
	Currency  string
	Network   string
	Recipient string

	// Receipt is the transaction identifier (available on success).
	Receipt string

	// Error contains failure details (available on failure).
	Error error

	// Duration is the time from challenge to resolution.
	Duration time.Duration
}

// PaymentCallback is a function that handles payment events. Callbacks
// are invoked synchronously during the payment flow and should be fast.
type PaymentCallback func(PaymentEvent)
