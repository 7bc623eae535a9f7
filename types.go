package x402

import (
	"fmt"
	"math/big"
	"time"
)

// PaymentChallenge is the server-issued description of a required payment,
// extracted from a 402 response. Values are never mutated after decoding;
// a new challenge always supersedes a pending one.
type PaymentChallenge struct {
	// SessionID correlates the resumed request with the verification call.
	SessionID string `json:"session_id"`

	// Amount is the price as a decimal string in the currency's display
	// unit (e.g. "0.15"). It is kept verbatim so no precision is lost;
	// use AmountRat for arithmetic.
	Amount string `json:"amount"`

	// Currency is the ticker/symbol, opaque to this package.
	Currency string `json:"currency"`

	// Network identifies the settlement network, opaque to this package.
	Network string `json:"network"`

	// Recipient is the payment address. Format validation is the
	// executor's concern; this package only requires non-emptiness.
	Recipient string `json:"recipient"`

	// Service and ResourceID identify what is being purchased. Carried
	// through unchanged for display and audit.
	Service    string `json:"service,omitempty"`
	ResourceID string `json:"robot_id,omitempty"`

	// ExpiresAt, when set, is the instant after which the challenge may
	// no longer be used.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Message is optional human-readable context from the server.
	Message string `json:"message,omitempty"`
}

// AmountRat returns the challenge amount as an exact rational number.
func (c PaymentChallenge) AmountRat() (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(c.Amount)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a valid decimal", c.Amount)
	}
	return r, nil
}

// Expired reports whether the challenge's deadline has passed at the
// given instant. Challenges without a deadline never expire.
func (c PaymentChallenge) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// ResumeToken is the minimal state attached to a retried request so the
// server can recognize a now-paid session. It travels out-of-band (as a
// header) so the original request body is reproduced byte-for-byte.
type ResumeToken struct {
	SessionID string `json:"session_id"`
}

// Outcome is the resolution of a pending challenge.
type Outcome struct {
	// Paid is true when the human completed the payment.
	Paid bool

	// Receipt is the opaque proof of payment (a transaction identifier)
	// produced by the executor. Set only when Paid is true. It is passed
	// verbatim to the verifier and never inspected.
	Receipt string
}

// VerificationResult is the verifier's answer for a receipt. A non-true
// Verified is final; transport failures are reported as errors instead,
// so callers can retry those without burning a completed payment.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"error,omitempty"`
}
