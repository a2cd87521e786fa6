// Package pools defines the contract between the swap router and the AMM
// venues it trades on. Each supported venue implements PoolHandle.
package pools

import (
	"context"
	"errors"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
)

var (
	ErrUnsupportedLeg = errors.New("token is not a leg of this pool")
	ErrEmptyPool      = errors.New("pool has no liquidity")
)

// PoolHandle is a live view of one AMM pool. Handles are opened per call and
// read pool state on demand, so they never serve stale reserves.
type PoolHandle interface {
	// Name returns the registry key of the pool (e.g. "SOL_USDC")
	Name() string

	TokenA() chain.Token
	TokenB() chain.Token

	// Quote prices selling amount of input into the pool.
	Quote(ctx context.Context, input chain.Token, amount decimal.Decimal, slippage Percentage) (*Quote, error)

	// Swap builds the instructions that sell amount of input, failing on chain
	// if less than minOutput comes out.
	Swap(ctx context.Context, owner solana.PublicKey, input chain.Token, amount, minOutput decimal.Decimal) (*Fragment, error)
}

// Opener turns a pool definition into a handle.
type Opener interface {
	Open(ctx context.Context, def Definition) (PoolHandle, error)
}

// Quote is the pricing of a single swap against one pool.
type Quote struct {
	InputAmount    decimal.Decimal
	ExpectedOutput decimal.Decimal
	// MinimumOutput is ExpectedOutput reduced by the slippage tolerance
	MinimumOutput decimal.Decimal
	// Rate is output per unit of input
	Rate  decimal.Decimal
	LPFee decimal.Decimal
}

// Fragment is a partial transaction: instructions plus any extra keys that
// must sign them (temporary token accounts, for instance).
type Fragment struct {
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey
}

// Append adds other's instructions and signers after f's own.
func (f *Fragment) Append(other *Fragment) {
	if other == nil {
		return
	}
	f.Instructions = append(f.Instructions, other.Instructions...)
	f.Signers = append(f.Signers, other.Signers...)
}

// OtherLeg returns the leg of pool that is not token.
func OtherLeg(pool PoolHandle, token chain.Token) (chain.Token, error) {
	switch token.Mint {
	case pool.TokenA().Mint:
		return pool.TokenB(), nil
	case pool.TokenB().Mint:
		return pool.TokenA(), nil
	default:
		return chain.Token{}, ErrUnsupportedLeg
	}
}

// LegByMint returns the leg of pool whose mint is mint.
func LegByMint(pool PoolHandle, mint solana.PublicKey) (chain.Token, error) {
	switch mint {
	case pool.TokenA().Mint:
		return pool.TokenA(), nil
	case pool.TokenB().Mint:
		return pool.TokenB(), nil
	default:
		return chain.Token{}, ErrUnsupportedLeg
	}
}
