package x402

import "context"

// PaymentExecutor is the capability that actually moves money. Given a
// challenge it produces a receipt (a transaction identifier) once a
// human authorizes the payment. It may suspend indefinitely awaiting
// that action. Receipts are opaque to this package; they are passed
// verbatim to the verifier.
//
// Implementations fail with a ProtocolError carrying
// ErrCodeUserCancelled when the human declines, or ErrCodeExecutionFailed
// when the payment itself fails.
type PaymentExecutor interface {
	Execute(ctx context.Context, challenge PaymentChallenge) (receipt string, err error)
}

// ExecutorFunc adapts a function to the PaymentExecutor interface.
type ExecutorFunc func(ctx context.Context, challenge PaymentChallenge) (string, error)

// Execute implements PaymentExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, challenge PaymentChallenge) (string, error) {
	return f(ctx, challenge)
}
