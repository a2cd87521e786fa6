// Package assets implements balance queries and single-asset transfers for
// the active wallet.
package assets

import (
	"context"
	"os"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/wallet"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "assets").Logger()
}

// DefaultNetworkFee is the fee shown next to every coin, in SOL.
const DefaultNetworkFee = "0.0000005"

// Ledger is the chain access the facade needs.
type Ledger interface {
	Balance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	TokenHoldings(ctx context.Context, owner solana.PublicKey) ([]chain.TokenHolding, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	BuildSigned(ctx context.Context, instructions []solana.Instruction, payer solana.PrivateKey, signers []solana.PrivateKey) (*solana.Transaction, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SubmitEncoded(ctx context.Context, encoded string) (solana.Signature, error)
}

// Owner gives access to the active wallet identity.
type Owner interface {
	Owner() (wallet.Identity, bool)
}

type Facade struct {
	ledger     Ledger
	owner      Owner
	tokens     *chain.TokenBook
	spending   solana.PublicKey
	networkFee string
}

type Option func(*Facade)

// WithSpendingWallet sets the wallet signTransferToSpending pays into.
func WithSpendingWallet(pk solana.PublicKey) Option {
	return func(f *Facade) { f.spending = pk }
}

// WithNetworkFee overrides the fee shown in the coin list.
func WithNetworkFee(fee string) Option {
	return func(f *Facade) { f.networkFee = fee }
}

func NewFacade(ledger Ledger, owner Owner, tokens *chain.TokenBook, opts ...Option) *Facade {
	f := &Facade{
		ledger:     ledger,
		owner:      owner,
		tokens:     tokens,
		networkFee: DefaultNetworkFee,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Facade) Tokens() *chain.TokenBook { return f.tokens }

func (f *Facade) identity() (wallet.Identity, error) {
	id, ok := f.owner.Owner()
	if !ok {
		return wallet.Identity{}, wallet.ErrNoOwner
	}
	return id, nil
}
