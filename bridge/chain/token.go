package chain

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"
)

// TokenAccountSize is the length of an SPL token account.
const TokenAccountSize = 165

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrUnknownToken  = errors.New("unknown token")

	// ErrInvalidAccountData marks account bytes that do not decode.
	ErrInvalidAccountData = errors.New("invalid account data")
)

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// Token describes an SPL mint the bridge knows about.
type Token struct {
	Symbol   string
	Mint     solana.PublicKey
	Decimals uint8
	// Native marks wrapped SOL. It moves as lamports on transfers and is
	// wrapped into a temporary token account around swaps.
	Native bool
}

// ToUnits converts a human amount into raw base units, truncating any
// precision beyond the token's decimals.
func (t Token) ToUnits(amount decimal.Decimal) (uint64, error) {
	raw := amount.Shift(int32(t.Decimals)).Truncate(0)
	if raw.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %s %s is below one base unit", ErrInvalidAmount, amount.String(), t.Symbol)
	}
	if raw.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("%w: %s %s overflows", ErrInvalidAmount, amount.String(), t.Symbol)
	}
	return raw.BigInt().Uint64(), nil
}

// FromUnits converts raw base units into a human amount.
func (t Token) FromUnits(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(t.Decimals))
}

// TokenBook indexes the configured tokens by symbol and by mint.
type TokenBook struct {
	ordered  []Token
	bySymbol map[string]Token
	byMint   map[solana.PublicKey]Token
}

func NewTokenBook(tokens []Token) (*TokenBook, error) {
	book := &TokenBook{
		ordered:  make([]Token, 0, len(tokens)),
		bySymbol: make(map[string]Token, len(tokens)),
		byMint:   make(map[solana.PublicKey]Token, len(tokens)),
	}
	for _, t := range tokens {
		if t.Symbol == "" {
			return nil, fmt.Errorf("token with mint %s has no symbol", t.Mint)
		}
		if _, dup := book.bySymbol[t.Symbol]; dup {
			return nil, fmt.Errorf("duplicate token symbol %q", t.Symbol)
		}
		if _, dup := book.byMint[t.Mint]; dup {
			return nil, fmt.Errorf("duplicate token mint %s", t.Mint)
		}
		book.ordered = append(book.ordered, t)
		book.bySymbol[t.Symbol] = t
		book.byMint[t.Mint] = t
	}
	return book, nil
}

func (b *TokenBook) BySymbol(symbol string) (Token, bool) {
	t, ok := b.bySymbol[symbol]
	return t, ok
}

func (b *TokenBook) ByMint(mint solana.PublicKey) (Token, bool) {
	t, ok := b.byMint[mint]
	return t, ok
}

// Native returns the wrapped SOL entry, if one is configured.
func (b *TokenBook) Native() (Token, bool) {
	for _, t := range b.ordered {
		if t.Native {
			return t, true
		}
	}
	return Token{}, false
}

// All returns the tokens in configuration order.
func (b *TokenBook) All() []Token {
	out := make([]Token, len(b.ordered))
	copy(out, b.ordered)
	return out
}

// DecodeTokenAccount decodes the data of an SPL token account.
func DecodeTokenAccount(data []byte) (*token.Account, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("%w: token account data too short: %d bytes", ErrInvalidAccountData, len(data))
	}
	var acc token.Account
	if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token account: %w", ErrInvalidAccountData, err)
	}
	return &acc, nil
}
