package solanapay

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// SignTransactionFunc defines the callback used to sign Solana
// transactions. Wallet integrations implement this so key material
// never enters the executor.
type SignTransactionFunc func(ctx context.Context, tx *solana.Transaction) error

// Signer signs payment transactions for a single public key.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// callbackSigner implements Signer using a signing callback.
type callbackSigner struct {
	publicKey       solana.PublicKey
	signTransaction SignTransactionFunc
}

// NewSigner creates a signer from a public key and signing callback.
func NewSigner(publicKey solana.PublicKey, signFunc SignTransactionFunc) (Signer, error) {
	if publicKey.IsZero() {
		return nil, fmt.Errorf("public key is required")
	}
	if signFunc == nil {
		return nil, fmt.Errorf("sign callback is required")
	}

	return &callbackSigner{
		publicKey:       publicKey,
		signTransaction: signFunc,
	}, nil
}

// NewSignerFromPrivateKey creates a signer from a base58-encoded Solana
// private key. Intended for server-side and test use; interactive
// wallets should use NewSigner with a callback instead.
func NewSignerFromPrivateKey(privateKeyBase58 string) (Signer, error) {
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey := privateKey.PublicKey()

	return &callbackSigner{
		publicKey: publicKey,
		signTransaction: func(ctx context.Context, tx *solana.Transaction) error {
			_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
				if key.Equals(publicKey) {
					return &privateKey
				}
				return nil
			})
			return err
		},
	}, nil
}

// PublicKey returns the signing key's public key.
func (s *callbackSigner) PublicKey() solana.PublicKey {
	return s.publicKey
}

// SignTransaction signs the transaction via the callback.
func (s *callbackSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	return s.signTransaction(ctx, tx)
}
