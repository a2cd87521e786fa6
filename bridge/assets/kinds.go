package assets

import (
	"errors"
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/models"
)

// NFTType is the transfer type the host uses for non-fungible tokens.
const NFTType = "XNFT"

// signOnlyDir marks a transfer that is signed and handed back, not sent.
const signOnlyDir = "in"

var (
	ErrUnsupportedAssetType = errors.New("unsupported asset type")
	ErrInvalidAddress       = errors.New("invalid address")
)

// Kind is the closed set of transferable assets.
type Kind int

const (
	Native Kind = iota
	Fungible
	NonFungible
)

func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case Fungible:
		return "fungible"
	case NonFungible:
		return "non-fungible"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Spec is a validated transfer.
type Spec struct {
	Kind     Kind
	Token    chain.Token
	To       solana.PublicKey
	Amount   decimal.Decimal
	SignOnly bool
}

// ParseSpec turns a host transfer request into a Spec. The type is the
// native symbol, a configured token symbol, or XNFT with tokenId set.
func ParseSpec(tokens *chain.TokenBook, req models.TransferRequest) (Spec, error) {
	to, err := solana.PublicKeyFromBase58(strings.TrimSpace(req.ToAddress))
	if err != nil {
		return Spec{}, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, req.ToAddress)
	}
	spec := Spec{To: to, SignOnly: req.Dir == signOnlyDir}

	if req.Type == NFTType {
		mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(req.TokenID))
		if err != nil {
			return Spec{}, fmt.Errorf("%w: nft mint %q", ErrInvalidAddress, req.TokenID)
		}
		spec.Kind = NonFungible
		spec.Token = chain.Token{Symbol: NFTType, Mint: mint, Decimals: 0}
		spec.Amount = decimal.NewFromInt(1)
		return spec, nil
	}

	token, ok := tokens.BySymbol(req.Type)
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnsupportedAssetType, req.Type)
	}
	if req.Amount == nil || !req.Amount.IsPositive() {
		return Spec{}, fmt.Errorf("%w: %s transfer needs a positive amount", chain.ErrInvalidAmount, req.Type)
	}
	spec.Token = token
	spec.Amount = *req.Amount
	spec.Kind = Fungible
	if token.Native {
		spec.Kind = Native
	}
	return spec, nil
}
