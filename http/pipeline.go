package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/robomart/x402"
)

// Default verification retry budget: transient verifier failures are
// retried because they are idempotent and side-effect-free, and giving
// up too early would permanently burn a completed payment.
const (
	defaultVerifyRetries        = 2
	defaultVerifyRetryBaseDelay = 500 * time.Millisecond
)

// PaymentRoundTripper is an http.RoundTripper that drives the x402
// payment-challenge protocol. It sends the request through the base
// transport, and when the response is a 402 it decodes the challenge,
// submits it to the broker, waits for the human to pay, verifies the
// receipt, and replays the original request exactly once with the
// resume token. A second 402 on the replay fails the request rather
// than starting another payment cycle.
type PaymentRoundTripper struct {
	// Base is the underlying RoundTripper (typically http.DefaultTransport).
	Base http.RoundTripper

	// Broker is the rendezvous point where pending challenges meet the
	// presentation layer.
	Broker *x402.ChallengeBroker

	// Verifier checks receipts with the trusted verification service.
	Verifier x402.Verifier

	// PaymentDeadline bounds how long a challenge may stay pending. Zero
	// means no deadline. On expiry the challenge is resolved as
	// cancelled and the slot cleared, so an abandoned prompt cannot
	// block subsequent requests forever.
	PaymentDeadline time.Duration

	// VerifyRetries is the number of additional verification attempts
	// after a transport failure. Explicit "not verified" answers are
	// never retried.
	VerifyRetries int

	// VerifyRetryBaseDelay is the backoff base; the delay doubles per
	// attempt.
	VerifyRetryBaseDelay time.Duration

	// OnPaymentAttempt is called when a payment cycle starts.
	OnPaymentAttempt x402.PaymentCallback

	// OnPaymentSuccess is called when a payment is verified and the
	// request resumed.
	OnPaymentSuccess x402.PaymentCallback

	// OnPaymentFailure is called when a payment cycle ends in failure.
	OnPaymentFailure x402.PaymentCallback
}

// Option configures a PaymentRoundTripper
type Option func(*PaymentRoundTripper)

// WithBase sets the underlying transport
func WithBase(base http.RoundTripper) Option {
	return func(t *PaymentRoundTripper) {
		t.Base = base
	}
}

// WithPaymentDeadline bounds how long a challenge may stay pending
func WithPaymentDeadline(d time.Duration) Option {
	return func(t *PaymentRoundTripper) {
		t.PaymentDeadline = d
	}
}

// WithVerifyRetries overrides the verification retry budget
func WithVerifyRetries(retries int) Option {
	return func(t *PaymentRoundTripper) {
		t.VerifyRetries = retries
	}
}

// WithVerifyRetryBaseDelay overrides the verification backoff base delay
func WithVerifyRetryBaseDelay(d time.Duration) Option {
	return func(t *PaymentRoundTripper) {
		t.VerifyRetryBaseDelay = d
	}
}

// WithPaymentAttemptCallback sets the attempt callback
func WithPaymentAttemptCallback(fn x402.PaymentCallback) Option {
	return func(t *PaymentRoundTripper) {
		t.OnPaymentAttempt = fn
	}
}

// WithPaymentSuccessCallback sets the success callback
func WithPaymentSuccessCallback(fn x402.PaymentCallback) Option {
	return func(t *PaymentRoundTripper) {
		t.OnPaymentSuccess = fn
	}
}

// WithPaymentFailureCallback sets the failure callback
func WithPaymentFailureCallback(fn x402.PaymentCallback) Option {
	return func(t *PaymentRoundTripper) {
		t.OnPaymentFailure = fn
	}
}

// NewPaymentRoundTripper creates a PaymentRoundTripper with defaults
func NewPaymentRoundTripper(broker *x402.ChallengeBroker, verifier x402.Verifier, opts ...Option) *PaymentRoundTripper {
	t := &PaymentRoundTripper{
		Broker:               broker,
		Verifier:             verifier,
		VerifyRetries:        defaultVerifyRetries,
		VerifyRetryBaseDelay: defaultVerifyRetryBaseDelay,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// RoundTrip implements http.RoundTripper.
func (t *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	// Read and close the 402 body; the challenge may live in it.
	var body []byte
	if resp.Body != nil {
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read 402 response body: %w", err)
		}
	}

	// A decode failure never engages the broker.
	challenge, err := x402.DecodeChallenge(resp.StatusCode, resp.Header, body)
	if err != nil {
		return nil, err
	}

	if challenge.Expired(time.Now()) {
		return nil, x402.NewProtocolError(
			x402.ErrCodeChallengeExpired,
			fmt.Sprintf("challenge for session %s expired at %s", challenge.SessionID, challenge.ExpiresAt.Format(time.RFC3339)),
			nil,
		)
	}

	outcome, err := t.Broker.Submit(challenge)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	t.emit(t.OnPaymentAttempt, x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: startTime,
		URL:       req.URL.String(),
		SessionID: challenge.SessionID,
		Amount:    challenge.Amount,
		Currency:  challenge.Currency,
		Network:   challenge.Network,
		Recipient: challenge.Recipient,
	})

	result, err := t.awaitOutcome(req, challenge, outcome)
	if err != nil {
		t.emitFailure(req, challenge, startTime, err)
		return nil, err
	}

	if err := t.verifyReceipt(req, challenge.SessionID, result.Receipt); err != nil {
		t.emitFailure(req, challenge, startTime, err)
		return nil, err
	}

	replayResp, err := t.replay(req, challenge.SessionID)
	if err != nil {
		t.emitFailure(req, challenge, startTime, err)
		return nil, err
	}

	t.emit(t.OnPaymentSuccess, x402.PaymentEvent{
		Type:      x402.PaymentEventSuccess,
		Timestamp: time.Now(),
		URL:       req.URL.String(),
		SessionID: challenge.SessionID,
		Amount:    challenge.Amount,
		Currency:  challenge.Currency,
		Network:   challenge.Network,
		Recipient: challenge.Recipient,
		Receipt:   result.Receipt,
		Duration:  time.Since(startTime),
	})

	return replayResp, nil
}

// awaitOutcome blocks until the broker resolves the challenge, the
// request context ends, or the payment deadline elapses. The latter two
// resolve the slot as cancelled themselves; when that resolution races
// a concurrent ResolvePaid, the paid outcome wins and is honored.
func (t *PaymentRoundTripper) awaitOutcome(req *http.Request, challenge x402.PaymentChallenge, outcome <-chan x402.Outcome) (x402.Outcome, error) {
	var deadline <-chan time.Time
	if t.PaymentDeadline > 0 {
		timer := time.NewTimer(t.PaymentDeadline)
		defer timer.Stop()
		deadline = timer.C
	}

	var result x402.Outcome
	select {
	case result = <-outcome:
	case <-req.Context().Done():
		t.Broker.ResolveCancelled(challenge.SessionID)
		result = <-outcome
		if !result.Paid {
			return x402.Outcome{}, req.Context().Err()
		}
	case <-deadline:
		t.Broker.ResolveCancelled(challenge.SessionID)
		result = <-outcome
		if !result.Paid {
			return x402.Outcome{}, x402.NewProtocolError(
				x402.ErrCodePaymentCancelled,
				fmt.Sprintf("payment deadline of %s elapsed for session %s", t.PaymentDeadline, challenge.SessionID),
				nil,
			)
		}
	}

	if !result.Paid {
		return x402.Outcome{}, x402.NewProtocolError(
			x402.ErrCodePaymentCancelled,
			fmt.Sprintf("payment cancelled for session %s", challenge.SessionID),
			nil,
		)
	}

	return result, nil
}

// verifyReceipt calls the verifier, retrying transport failures within
// the bounded budget. An explicit "not verified" is final.
func (t *PaymentRoundTripper) verifyReceipt(req *http.Request, sessionID, receipt string) error {
	retries := t.VerifyRetries
	if retries < 0 {
		retries = 0
	}
	baseDelay := t.VerifyRetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultVerifyRetryBaseDelay
	}

	ctx := req.Context()
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		result, err := t.Verifier.Verify(ctx, sessionID, receipt)
		if err == nil {
			if result.Verified {
				return nil
			}
			return x402.NewProtocolError(
				x402.ErrCodePaymentUnverified,
				fmt.Sprintf("payment for session %s was not verified", sessionID),
				map[string]interface{}{
					"reason": result.Reason,
				},
			)
		}

		lastErr = err
		if attempt < retries {
			delay := baseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return x402.NewProtocolError(
		x402.ErrCodeVerificationUnavailable,
		fmt.Sprintf("verification unavailable after %d attempts", retries+1),
		map[string]interface{}{
			"last_error": lastErr.Error(),
		},
	)
}

// replay resends the original request exactly once with the resume
// token attached as out-of-band metadata. The logical body is restored
// through GetBody so it is reproduced byte-for-byte.
func (t *PaymentRoundTripper) replay(req *http.Request, sessionID string) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body for replay: %w", err)
		}
		retry.Body = body
	} else if req.Body != nil {
		return nil, fmt.Errorf("cannot replay request with a non-rewindable body")
	}

	for k, v := range x402.EncodeResumeToken(x402.ResumeToken{SessionID: sessionID}) {
		retry.Header.Set(k, v)
	}

	resp, err := base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}

	// The server challenged a session it just accepted payment for.
	// Surfacing this instead of looping prevents infinite payment cycles.
	if resp.StatusCode == http.StatusPaymentRequired {
		if resp.Body != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return nil, x402.NewProtocolError(
			x402.ErrCodeRepeatedChallenge,
			fmt.Sprintf("replayed request for session %s was challenged again", sessionID),
			nil,
		)
	}

	return resp, nil
}

func (t *PaymentRoundTripper) emit(fn x402.PaymentCallback, event x402.PaymentEvent) {
	if fn != nil {
		fn(event)
	}
}

func (t *PaymentRoundTripper) emitFailure(req *http.Request, challenge x402.PaymentChallenge, startTime time.Time, err error) {
	t.emit(t.OnPaymentFailure, x402.PaymentEvent{
		Type:      x402.PaymentEventFailure,
		Timestamp: time.Now(),
		URL:       req.URL.String(),
		SessionID: challenge.SessionID,
		Amount:    challenge.Amount,
		Currency:  challenge.Currency,
		Network:   challenge.Network,
		Recipient: challenge.Recipient,
		Error:     err,
		Duration:  time.Since(startTime),
	})
}
