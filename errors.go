package x402

import "fmt"

// ProtocolError represents a payment-protocol error. Every failure of a
// logical request surfaces as one of these; none are silently swallowed.
type ProtocolError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	// ErrCodeMalformedChallenge means a 402 response could not be decoded
	// into a usable challenge. Dead end: retrying cannot help.
	ErrCodeMalformedChallenge = "malformed_challenge"

	// ErrCodeConcurrentChallenge means another challenge was already
	// pending when this request hit a 402. The request fails fast rather
	// than queuing behind the open prompt.
	ErrCodeConcurrentChallenge = "concurrent_challenge"

	// ErrCodeChallengeExpired means the challenge's deadline passed
	// before payment could start.
	ErrCodeChallengeExpired = "challenge_expired"

	// ErrCodePaymentCancelled means the human dismissed the payment
	// prompt (or a deadline expired the slot). A retry may succeed.
	ErrCodePaymentCancelled = "payment_cancelled"

	// ErrCodePaymentUnverified means the verifier explicitly rejected
	// the receipt. Final; not retried.
	ErrCodePaymentUnverified = "payment_unverified"

	// ErrCodeVerificationUnavailable means the verifier could not be
	// reached within the retry budget.
	ErrCodeVerificationUnavailable = "verification_unavailable"

	// ErrCodeRepeatedChallenge means the replayed request was challenged
	// again. The pipeline never loops a second payment cycle.
	ErrCodeRepeatedChallenge = "repeated_challenge"

	// ErrCodeUserCancelled is reported by executors when the human
	// declines to sign.
	ErrCodeUserCancelled = "user_cancelled"

	// ErrCodeExecutionFailed is reported by executors when the payment
	// itself fails (build, sign, broadcast or confirmation).
	ErrCodeExecutionFailed = "execution_failed"
)

// NewProtocolError creates a new protocol error
func NewProtocolError(code, message string, details map[string]interface{}) *ProtocolError {
	return &ProtocolError{
		Code:    code,
		Message: message,
		Details: details,
	}
}
