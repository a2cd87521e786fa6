package chain

import (
	"context"
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TokenHolding is one SPL token account owned by a wallet.
type TokenHolding struct {
	Account solana.PublicKey
	Mint    solana.PublicKey
	Amount  uint64
}

// Balance returns the lamport balance of an account.
func (g *Gateway) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	cfg := g.config()
	res, err := g.Client().GetBalance(ctx, owner, cfg.Commitment)
	if err != nil {
		return 0, fmt.Errorf("getBalance %s: %w", owner, err)
	}
	return res.Value, nil
}

// TokenHoldings lists every SPL token account owned by owner.
func (g *Gateway) TokenHoldings(ctx context.Context, owner solana.PublicKey) ([]TokenHolding, error) {
	cfg := g.config()
	res, err := g.Client().GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64, Commitment: cfg.Commitment},
	)
	if err != nil {
		return nil, fmt.Errorf("getTokenAccountsByOwner %s: %w", owner, err)
	}

	holdings := make([]TokenHolding, 0, len(res.Value))
	for _, keyed := range res.Value {
		if keyed == nil || keyed.Account.Data == nil {
			continue
		}
		acc, err := DecodeTokenAccount(keyed.Account.Data.GetBinary())
		if err != nil {
			log.Warn().Err(err).Str("account", keyed.Pubkey.String()).Msg("Skipping undecodable token account")
			continue
		}
		holdings = append(holdings, TokenHolding{
			Account: keyed.Pubkey,
			Mint:    acc.Mint,
			Amount:  acc.Amount,
		})
	}
	return holdings, nil
}

// AccountExists reports whether an account is allocated on chain.
func (g *Gateway) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	cfg := g.config()
	_, err := g.Client().GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{Commitment: cfg.Commitment})
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getAccountInfo %s: %w", account, err)
	}
	return true, nil
}

// MultipleAccounts returns the raw data of each account, in order. A missing
// account is an error.
func (g *Gateway) MultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) ([][]byte, error) {
	cfg := g.config()
	res, err := g.Client().GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: cfg.Commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("getMultipleAccounts: %w", err)
	}
	if len(res.Value) != len(accounts) {
		return nil, fmt.Errorf("getMultipleAccounts: expected %d accounts, got %d", len(accounts), len(res.Value))
	}

	out := make([][]byte, len(accounts))
	for i, acc := range res.Value {
		if acc == nil || acc.Data == nil {
			return nil, fmt.Errorf("account %s not found", accounts[i])
		}
		out[i] = acc.Data.GetBinary()
	}
	return out, nil
}

// RentExemption returns the minimum lamports an account of size bytes needs.
func (g *Gateway) RentExemption(ctx context.Context, size uint64) (uint64, error) {
	cfg := g.config()
	lamports, err := g.Client().GetMinimumBalanceForRentExemption(ctx, size, cfg.Commitment)
	if err != nil {
		return 0, fmt.Errorf("getMinimumBalanceForRentExemption: %w", err)
	}
	return lamports, nil
}
