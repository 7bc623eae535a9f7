// Package solanapay implements the payment executor capability on
// Solana: a native transfer to the challenge recipient with the session
// id attached as a memo, so the verifier can match the transaction to
// the payment session.
package solanapay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	x402 "github.com/robomart/x402"
)

// memoProgramID is the SPL memo program used to tag the transfer with
// the payment session id.
var memoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// Config configures the executor
type Config struct {
	// RPCURL is the Solana RPC endpoint (required)
	RPCURL string

	// Commitment used for blockhash fetch and confirmation
	// (optional, defaults to confirmed)
	Commitment rpc.CommitmentType

	// ConfirmTimeout bounds how long to wait for confirmation
	// (optional, defaults to 60s)
	ConfirmTimeout time.Duration

	// PollInterval between signature status checks
	// (optional, defaults to 2s)
	PollInterval time.Duration
}

// Executor is a PaymentExecutor that pays challenges with a native SOL
// transfer carrying the session id as a memo.
type Executor struct {
	rpcClient      *rpc.Client
	signer         Signer
	commitment     rpc.CommitmentType
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// NewExecutor creates an executor for the given signer
func NewExecutor(signer Signer, config *Config) (*Executor, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if config == nil || config.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	commitment := config.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}

	confirmTimeout := config.ConfirmTimeout
	if confirmTimeout == 0 {
		confirmTimeout = 60 * time.Second
	}

	pollInterval := config.PollInterval
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}

	return &Executor{
		rpcClient:      rpc.New(config.RPCURL),
		signer:         signer,
		commitment:     commitment,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
	}, nil
}

// Execute pays the challenge and returns the transaction signature once
// the transfer is confirmed. Errors from the signing callback that are
// already protocol errors (such as a user declining to sign) pass
// through unchanged; everything else is reported as execution_failed.
func (e *Executor) Execute(ctx context.Context, challenge x402.PaymentChallenge) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(challenge.Recipient)
	if err != nil {
		return "", executionFailed(fmt.Errorf("invalid recipient address: %w", err))
	}

	lamports, err := lamportsFromAmount(challenge.Amount)
	if err != nil {
		return "", executionFailed(err)
	}

	latest, err := e.rpcClient.GetLatestBlockhash(ctx, e.commitment)
	if err != nil {
		return "", executionFailed(fmt.Errorf("failed to get latest blockhash: %w", err))
	}

	transferIx := system.NewTransferInstruction(
		lamports,
		e.signer.PublicKey(),
		recipient,
	).Build()

	memoIx := solana.NewInstruction(
		memoProgramID,
		solana.AccountMetaSlice{},
		[]byte(challenge.SessionID),
	)

	tx, err := solana.NewTransactionBuilder().
		AddInstruction(transferIx).
		AddInstruction(memoIx).
		SetRecentBlockHash(latest.Value.Blockhash).
		SetFeePayer(e.signer.PublicKey()).
		Build()
	if err != nil {
		return "", executionFailed(fmt.Errorf("failed to build transaction: %w", err))
	}

	if err := e.signer.SignTransaction(ctx, tx); err != nil {
		var protoErr *x402.ProtocolError
		if errors.As(err, &protoErr) {
			return "", err
		}
		return "", executionFailed(fmt.Errorf("failed to sign transaction: %w", err))
	}

	sig, err := e.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: e.commitment,
	})
	if err != nil {
		return "", executionFailed(fmt.Errorf("failed to send transaction: %w", err))
	}

	if err := e.confirm(ctx, sig); err != nil {
		return "", executionFailed(err)
	}

	return sig.String(), nil
}

// confirm polls signature status until the configured commitment is
// reached or the confirmation window elapses.
func (e *Executor) confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		statuses, err := e.rpcClient.GetSignatureStatuses(ctx, false, sig)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
			}
			if confirmationReached(status.ConfirmationStatus, e.commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s not confirmed: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

func confirmationReached(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	switch commitment {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// lamportsFromAmount converts a decimal SOL amount to lamports with
// exact rational arithmetic, flooring any sub-lamport remainder.
func lamportsFromAmount(amount string) (uint64, error) {
	rat, ok := new(big.Rat).SetString(amount)
	if !ok {
		return 0, fmt.Errorf("amount %q is not a valid decimal", amount)
	}
	if rat.Sign() <= 0 {
		return 0, fmt.Errorf("amount %q is not positive", amount)
	}

	scaled := new(big.Rat).Mul(rat, big.NewRat(int64(solana.LAMPORTS_PER_SOL), 1))
	lamports := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if lamports.Sign() <= 0 {
		return 0, fmt.Errorf("amount %q is below one lamport", amount)
	}
	if !lamports.IsUint64() {
		return 0, fmt.Errorf("amount %q overflows lamports", amount)
	}

	return lamports.Uint64(), nil
}

func executionFailed(err error) error {
	return x402.NewProtocolError(x402.ErrCodeExecutionFailed, err.Error(), nil)
}
