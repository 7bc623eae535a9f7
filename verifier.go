package x402

import "context"

// Verifier checks a payment receipt against the trusted verification
// service. A non-nil error means the verifier could not be reached and
// the call may be retried; an explicit Verified=false in the result is
// final and must not be retried, since it can never burn a completed
// payment the way dropping a transient failure could.
type Verifier interface {
	Verify(ctx context.Context, sessionID, receipt string) (VerificationResult, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, sessionID, receipt string) (VerificationResult, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, sessionID, receipt string) (VerificationResult, error) {
	return f(ctx, sessionID, receipt)
}
