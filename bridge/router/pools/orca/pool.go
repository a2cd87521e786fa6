// Package orca implements pools.PoolHandle for Orca's legacy token-swap
// (constant product) pools.
package orca

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	solana "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "orca").Logger()
}

// ErrEmptyPool is returned when either reserve is zero.
var ErrEmptyPool = pools.ErrEmptyPool

// Ledger is the chain access a pool needs.
type Ledger interface {
	MultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) ([][]byte, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	RentExemption(ctx context.Context, size uint64) (uint64, error)
}

// Venue opens Orca pools from their definitions.
type Venue struct {
	ledger Ledger
	tokens *chain.TokenBook
}

func NewVenue(ledger Ledger, tokens *chain.TokenBook) *Venue {
	return &Venue{ledger: ledger, tokens: tokens}
}

func (v *Venue) Open(_ context.Context, def pools.Definition) (pools.PoolHandle, error) {
	if def.Venue != "" && def.Venue != pools.VenueOrcaTokenSwap {
		return nil, fmt.Errorf("pool %s: unsupported venue %q", def.Key, def.Venue)
	}
	accounts, err := def.Accounts()
	if err != nil {
		return nil, err
	}
	tokenA, ok := v.tokens.BySymbol(def.TokenA)
	if !ok {
		return nil, fmt.Errorf("pool %s: %w %s", def.Key, chain.ErrUnknownToken, def.TokenA)
	}
	tokenB, ok := v.tokens.BySymbol(def.TokenB)
	if !ok {
		return nil, fmt.Errorf("pool %s: %w %s", def.Key, chain.ErrUnknownToken, def.TokenB)
	}

	return &Pool{
		name:     def.Key,
		accounts: accounts,
		tokenA:   tokenA,
		tokenB:   tokenB,
		fees: Fees{
			TradeNumerator:   def.TradeFeeNumerator,
			TradeDenominator: def.TradeFeeDenominator,
			OwnerNumerator:   def.OwnerFeeNumerator,
			OwnerDenominator: def.OwnerFeeDenominator,
		},
		ledger: v.ledger,
	}, nil
}

// Fees are the trade and owner fee ratios of a pool, both charged on input.
type Fees struct {
	TradeNumerator   uint64
	TradeDenominator uint64
	OwnerNumerator   uint64
	OwnerDenominator uint64
}

// on returns the total fee charged on amount. Each component rounds up, as
// the program does.
func (f Fees) on(amount *big.Int) *big.Int {
	total := new(big.Int)
	for _, r := range [][2]uint64{{f.TradeNumerator, f.TradeDenominator}, {f.OwnerNumerator, f.OwnerDenominator}} {
		if r[0] == 0 || r[1] == 0 {
			continue
		}
		num := new(big.Int).Mul(amount, new(big.Int).SetUint64(r[0]))
		den := new(big.Int).SetUint64(r[1])
		fee, rem := new(big.Int).QuoRem(num, den, new(big.Int))
		if rem.Sign() > 0 {
			fee.Add(fee, big.NewInt(1))
		}
		total.Add(total, fee)
	}
	return total
}

type Pool struct {
	name     string
	accounts pools.Accounts
	tokenA   chain.Token
	tokenB   chain.Token
	fees     Fees
	ledger   Ledger
}

func (p *Pool) Name() string        { return p.name }
func (p *Pool) TokenA() chain.Token { return p.tokenA }
func (p *Pool) TokenB() chain.Token { return p.tokenB }

// side resolves the output token and the pool vaults for an input token.
func (p *Pool) side(input chain.Token) (output chain.Token, inVault, outVault solana.PublicKey, err error) {
	switch input.Mint {
	case p.tokenA.Mint:
		return p.tokenB, p.accounts.VaultA, p.accounts.VaultB, nil
	case p.tokenB.Mint:
		return p.tokenA, p.accounts.VaultB, p.accounts.VaultA, nil
	default:
		return chain.Token{}, solana.PublicKey{}, solana.PublicKey{},
			fmt.Errorf("pool %s: %w: %s", p.name, pools.ErrUnsupportedLeg, input.Symbol)
	}
}

// reserves reads the balances of the input and output vaults.
func (p *Pool) reserves(ctx context.Context, inVault, outVault solana.PublicKey) (in, out uint64, err error) {
	data, err := p.ledger.MultipleAccounts(ctx, inVault, outVault)
	if err != nil {
		return 0, 0, fmt.Errorf("pool %s: failed to read vaults: %w", p.name, err)
	}
	inAcc, err := chain.DecodeTokenAccount(data[0])
	if err != nil {
		return 0, 0, fmt.Errorf("pool %s: vault %s: %w", p.name, inVault, err)
	}
	outAcc, err := chain.DecodeTokenAccount(data[1])
	if err != nil {
		return 0, 0, fmt.Errorf("pool %s: vault %s: %w", p.name, outVault, err)
	}
	return inAcc.Amount, outAcc.Amount, nil
}

func (p *Pool) Quote(
	ctx context.Context,
	input chain.Token,
	amount decimal.Decimal,
	slippage pools.Percentage,
) (*pools.Quote, error) {
	output, inVault, outVault, err := p.side(input)
	if err != nil {
		return nil, err
	}
	amountIn, err := input.ToUnits(amount)
	if err != nil {
		return nil, err
	}
	inReserve, outReserve, err := p.reserves(ctx, inVault, outVault)
	if err != nil {
		return nil, err
	}
	if inReserve == 0 || outReserve == 0 {
		return nil, fmt.Errorf("pool %s: %w", p.name, ErrEmptyPool)
	}

	in := new(big.Int).SetUint64(amountIn)
	fee := p.fees.on(in)
	if fee.Cmp(in) >= 0 {
		return nil, fmt.Errorf("pool %s: %w: %s %s does not cover the fee", p.name, chain.ErrInvalidAmount, amount.String(), input.Symbol)
	}
	net := new(big.Int).Sub(in, fee)

	// out = outReserve * net / (inReserve + net)
	outRaw := new(big.Int).Mul(new(big.Int).SetUint64(outReserve), net)
	outRaw.Quo(outRaw, new(big.Int).Add(new(big.Int).SetUint64(inReserve), net))

	outDecimals := int32(output.Decimals)
	expectedRaw := decimal.NewFromBigInt(outRaw, 0)
	expected := expectedRaw.Shift(-outDecimals)

	q := &pools.Quote{
		InputAmount:    input.FromUnits(amountIn),
		ExpectedOutput: expected,
		MinimumOutput:  pools.CalculateMinOutput(expectedRaw, slippage).Shift(-outDecimals),
		Rate:           expected.DivRound(input.FromUnits(amountIn), outDecimals),
		LPFee:          decimal.NewFromBigInt(fee, -int32(input.Decimals)),
	}

	log.Debug().
		Str("pool", p.name).
		Str("input", input.Symbol).
		Str("amount", q.InputAmount.String()).
		Str("expected", q.ExpectedOutput.String()).
		Str("minimum", q.MinimumOutput.String()).
		Msg("Quoted swap")

	return q, nil
}

func (p *Pool) Swap(
	ctx context.Context,
	owner solana.PublicKey,
	input chain.Token,
	amount, minOutput decimal.Decimal,
) (*pools.Fragment, error) {
	output, inVault, outVault, err := p.side(input)
	if err != nil {
		return nil, err
	}
	amountIn, err := input.ToUnits(amount)
	if err != nil {
		return nil, err
	}
	minRaw := minOutput.Shift(int32(output.Decimals)).Floor()
	if minRaw.IsNegative() {
		return nil, fmt.Errorf("%w: negative minimum output %s", chain.ErrInvalidAmount, minOutput.String())
	}
	minOut := minRaw.BigInt().Uint64()

	frag := &pools.Fragment{}
	var cleanup []solana.Instruction

	var source solana.PublicKey
	if input.Native {
		account, closeIx, err := p.wrapSOL(ctx, owner, amountIn, frag)
		if err != nil {
			return nil, err
		}
		source = account
		cleanup = append(cleanup, closeIx)
	} else {
		source, _, err = solana.FindAssociatedTokenAddress(owner, input.Mint)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s token account: %w", input.Symbol, err)
		}
	}

	var destination solana.PublicKey
	if output.Native {
		account, closeIx, err := p.wrapSOL(ctx, owner, 0, frag)
		if err != nil {
			return nil, err
		}
		destination = account
		cleanup = append(cleanup, closeIx)
	} else {
		destination, err = p.ensureTokenAccount(ctx, owner, output, frag)
		if err != nil {
			return nil, err
		}
	}

	ix, err := p.swapInstruction(swapAccounts{
		owner:       owner,
		source:      source,
		poolSource:  inVault,
		poolDest:    outVault,
		destination: destination,
	}, amountIn, minOut)
	if err != nil {
		return nil, err
	}
	frag.Instructions = append(frag.Instructions, ix)
	frag.Instructions = append(frag.Instructions, cleanup...)
	return frag, nil
}

// wrapSOL adds a temporary wrapped SOL account funded with lamports on top of
// rent. The returned instruction closes it back into owner.
func (p *Pool) wrapSOL(
	ctx context.Context,
	owner solana.PublicKey,
	lamports uint64,
	frag *pools.Fragment,
) (solana.PublicKey, solana.Instruction, error) {
	rent, err := p.ledger.RentExemption(ctx, chain.TokenAccountSize)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("failed to generate wrapped SOL account: %w", err)
	}
	account := key.PublicKey()

	frag.Instructions = append(frag.Instructions,
		system.NewCreateAccountInstruction(rent+lamports, chain.TokenAccountSize, solana.TokenProgramID, owner, account).Build(),
		token.NewInitializeAccountInstruction(account, solana.SolMint, owner, solana.SysVarRentPubkey).Build(),
	)
	frag.Signers = append(frag.Signers, key)

	return account, token.NewCloseAccountInstruction(account, owner, owner, nil).Build(), nil
}

// ensureTokenAccount returns the owner's associated account for tok, adding
// its creation to frag when it does not exist yet.
func (p *Pool) ensureTokenAccount(
	ctx context.Context,
	owner solana.PublicKey,
	tok chain.Token,
	frag *pools.Fragment,
) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, tok.Mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive %s token account: %w", tok.Symbol, err)
	}
	exists, err := p.ledger.AccountExists(ctx, ata)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !exists {
		frag.Instructions = append(frag.Instructions,
			associatedtokenaccount.NewCreateInstruction(owner, owner, tok.Mint).Build())
	}
	return ata, nil
}
