package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrTransactionFailed   = errors.New("transaction failed")
)

// TransactionError carries the error payload the cluster reported for a
// landed transaction.
type TransactionError struct {
	Signature solana.Signature
	Payload   any
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Payload)
}

func (e *TransactionError) Unwrap() error { return ErrTransactionFailed }

// BuildSigned assembles a transaction paid by payer and signs it with payer
// and every extra signer.
func (g *Gateway) BuildSigned(
	ctx context.Context,
	instructions []solana.Instruction,
	payer solana.PrivateKey,
	signers []solana.PrivateKey,
) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, errors.New("no instructions to sign")
	}
	recent, err := g.Client().GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	return SignInstructions(instructions, recent.Value.Blockhash, payer, signers)
}

// SignInstructions builds and signs a transaction against a known blockhash.
func SignInstructions(
	instructions []solana.Instruction,
	blockhash solana.Hash,
	payer solana.PrivateKey,
	signers []solana.PrivateKey,
) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	keys := make(map[solana.PublicKey]solana.PrivateKey, len(signers)+1)
	keys[payer.PublicKey()] = payer
	for _, s := range signers {
		keys[s.PublicKey()] = s
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if k, ok := keys[key]; ok {
			return &k
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// Submit sends a signed transaction and waits for it to be confirmed.
func (g *Gateway) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	cfg := g.config()
	sig, err := g.Client().SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction: %w", err)
	}
	log.Debug().Str("signature", sig.String()).Msg("Transaction sent")
	return sig, g.WaitForConfirmation(ctx, sig)
}

// SubmitEncoded sends a base64 transaction signed elsewhere and waits for it
// to be confirmed.
func (g *Gateway) SubmitEncoded(ctx context.Context, encoded string) (solana.Signature, error) {
	sig, err := g.Client().SendEncodedTransaction(ctx, encoded)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction: %w", err)
	}
	log.Debug().Str("signature", sig.String()).Msg("Encoded transaction sent")
	return sig, g.WaitForConfirmation(ctx, sig)
}

// Execute signs instructions with payer plus signers, submits them as one
// transaction and waits for confirmation.
func (g *Gateway) Execute(
	ctx context.Context,
	payer solana.PrivateKey,
	instructions []solana.Instruction,
	signers []solana.PrivateKey,
) (solana.Signature, error) {
	tx, err := g.BuildSigned(ctx, instructions, payer, signers)
	if err != nil {
		return solana.Signature{}, err
	}
	return g.Submit(ctx, tx)
}

// WaitForConfirmation polls the signature status until the transaction is
// confirmed, fails, or the confirmation timeout elapses. Cancelling ctx does
// not stop the wait: once a transaction is sent its outcome is reported.
func (g *Gateway) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	cfg := g.config()
	client := g.Client()

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		res, err := client.GetSignatureStatuses(waitCtx, true, sig)
		switch {
		case err != nil:
			log.Debug().Err(err).Str("signature", sig.String()).Msg("Signature status query failed")
		case res != nil && len(res.Value) > 0 && res.Value[0] != nil:
			status := res.Value[0]
			if status.Err != nil {
				return &TransactionError{Signature: sig, Payload: status.Err}
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("%w: %s not confirmed within %s", ErrConfirmationTimeout, sig, cfg.ConfirmTimeout)
		case <-ticker.C:
		}
	}
}
