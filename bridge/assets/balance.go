package assets

import (
	"context"
	"fmt"
	"strconv"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/models"
)

// NativeBalance returns the SOL balance of the active wallet.
func (f *Facade) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	id, err := f.identity()
	if err != nil {
		return decimal.Zero, err
	}
	return f.nativeBalance(ctx, id.PublicKey)
}

func (f *Facade) nativeBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	lamports, err := f.ledger.Balance(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	native, ok := f.tokens.Native()
	if !ok {
		native = chain.Token{Symbol: "SOL", Mint: solana.SolMint, Decimals: 9, Native: true}
	}
	return native.FromUnits(lamports), nil
}

// TokenBalances returns the raw balance of every mint the active wallet
// holds, summed over its token accounts.
func (f *Facade) TokenBalances(ctx context.Context) (map[string]uint64, error) {
	id, err := f.identity()
	if err != nil {
		return nil, err
	}
	return f.tokenBalances(ctx, id.PublicKey)
}

func (f *Facade) tokenBalances(ctx context.Context, owner solana.PublicKey) (map[string]uint64, error) {
	holdings, err := f.ledger.TokenHoldings(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(holdings))
	for _, h := range holdings {
		out[h.Mint.String()] += h.Amount
	}
	return out, nil
}

// TokenAccounts returns the token accounts of the active wallet.
func (f *Facade) TokenAccounts(ctx context.Context) ([]chain.TokenHolding, error) {
	id, err := f.identity()
	if err != nil {
		return nil, err
	}
	return f.ledger.TokenHoldings(ctx, id.PublicKey)
}

// Balance returns the balance of one asset of the active wallet. Mints that
// are not configured are reported in base units.
func (f *Facade) Balance(ctx context.Context, name, tokenAddress string) (*models.BalanceResponse, error) {
	id, err := f.identity()
	if err != nil {
		return nil, err
	}

	if native, ok := f.tokens.Native(); ok && name == native.Symbol {
		amount, err := f.nativeBalance(ctx, id.PublicKey)
		if err != nil {
			return nil, err
		}
		return &models.BalanceResponse{Name: name, Asset: amount.String(), TokenAddress: native.Mint.String()}, nil
	}

	mint, err := solana.PublicKeyFromBase58(tokenAddress)
	if err != nil {
		if tok, ok := f.tokens.BySymbol(name); ok {
			mint = tok.Mint
		} else {
			return nil, fmt.Errorf("%w: token address %q", ErrInvalidAddress, tokenAddress)
		}
	}

	balances, err := f.tokenBalances(ctx, id.PublicKey)
	if err != nil {
		return nil, err
	}
	raw := balances[mint.String()]
	asset := strconv.FormatUint(raw, 10)
	if tok, ok := f.tokens.ByMint(mint); ok {
		asset = tok.FromUnits(raw).String()
	}
	return &models.BalanceResponse{Name: name, Asset: asset, TokenAddress: mint.String()}, nil
}

// CoinList returns SOL and every configured token with the active wallet's
// balance. NFTs are not listed.
func (f *Facade) CoinList(ctx context.Context) (*models.CoinListResponse, error) {
	id, err := f.identity()
	if err != nil {
		return nil, err
	}

	balances, err := f.tokenBalances(ctx, id.PublicKey)
	if err != nil {
		return nil, err
	}

	coins := make([]models.CoinInfo, 0, len(f.tokens.All()))
	for _, tok := range f.tokens.All() {
		asset := tok.FromUnits(balances[tok.Mint.String()])
		if tok.Native {
			asset, err = f.nativeBalance(ctx, id.PublicKey)
			if err != nil {
				return nil, err
			}
		}
		coins = append(coins, models.CoinInfo{
			Name:         tok.Symbol,
			Asset:        asset.String(),
			TokenAddress: tok.Mint.String(),
			Fee:          f.networkFee,
		})
	}
	return &models.CoinListResponse{Coins: coins, NFT: []models.CoinInfo{}}, nil
}

// AllTokens lists the token accounts of any address with human amounts for
// configured mints and base units otherwise.
func (f *Facade) AllTokens(ctx context.Context, address string) ([]models.TokenAmount, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	holdings, err := f.ledger.TokenHoldings(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := make([]models.TokenAmount, 0, len(holdings))
	for _, h := range holdings {
		entry := models.TokenAmount{
			Account: h.Account.String(),
			Mint:    h.Mint.String(),
			Amount:  strconv.FormatUint(h.Amount, 10),
		}
		if tok, ok := f.tokens.ByMint(h.Mint); ok {
			entry.Symbol = tok.Symbol
			entry.Amount = tok.FromUnits(h.Amount).String()
		}
		out = append(out, entry)
	}
	return out, nil
}
