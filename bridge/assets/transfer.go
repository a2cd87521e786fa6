package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/models"
)

var (
	ErrTransferFailed      = errors.New("transfer failed")
	ErrNoSpendingWallet    = errors.New("spending wallet not configured")
	ErrConfirmationTimeout = chain.ErrConfirmationTimeout
)

// Transfer moves one asset out of the active wallet. In sign-only mode the
// signed transaction is returned base64 encoded instead of being sent.
func (f *Facade) Transfer(ctx context.Context, spec Spec) (*models.TransferResponse, error) {
	id, err := f.identity()
	if err != nil {
		return nil, err
	}

	instructions, err := f.instructions(ctx, id.PublicKey, spec)
	if err != nil {
		return nil, err
	}
	tx, err := f.ledger.BuildSigned(ctx, instructions, id.SecretKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	if spec.SignOnly {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction: %w", err)
		}
		return &models.TransferResponse{
			Name:            spec.Token.Symbol,
			TokenAddress:    spec.Token.Mint.String(),
			TransactionSign: base64.StdEncoding.EncodeToString(raw),
		}, nil
	}

	sig, err := f.ledger.Submit(ctx, tx)
	if err != nil {
		return nil, submitError(err)
	}
	log.Info().
		Str("kind", spec.Kind.String()).
		Str("token", spec.Token.Symbol).
		Str("to", spec.To.String()).
		Str("amount", spec.Amount.String()).
		Str("signature", sig.String()).
		Msg("Transfer confirmed")
	return &models.TransferResponse{Transaction: sig.String()}, nil
}

// SignTransferToSpending signs a transfer of amount into the spending wallet
// and submits the encoded transaction.
func (f *Facade) SignTransferToSpending(ctx context.Context, assetName, tokenAddress string, amount decimal.Decimal) (*models.TransferResponse, error) {
	if f.spending.IsZero() {
		return nil, ErrNoSpendingWallet
	}
	spec, err := f.coinSpec(assetName, tokenAddress, f.spending, amount)
	if err != nil {
		return nil, err
	}
	spec.SignOnly = true

	signed, err := f.Transfer(ctx, spec)
	if err != nil {
		return nil, err
	}
	sig, err := f.ledger.SubmitEncoded(ctx, signed.TransactionSign)
	if err != nil {
		return nil, submitError(err)
	}
	signed.Transaction = sig.String()
	return signed, nil
}

// TransferToCoin sends amount of a coin to walletAddress.
func (f *Facade) TransferToCoin(ctx context.Context, coinName, tokenAddress, walletAddress string, amount decimal.Decimal) (*models.TransferResponse, error) {
	to, err := solana.PublicKeyFromBase58(strings.TrimSpace(walletAddress))
	if err != nil {
		return nil, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, walletAddress)
	}
	spec, err := f.coinSpec(coinName, tokenAddress, to, amount)
	if err != nil {
		return nil, err
	}
	return f.Transfer(ctx, spec)
}

// coinSpec builds a Spec from a coin name, preferring the mint address when
// one is given.
func (f *Facade) coinSpec(name, tokenAddress string, to solana.PublicKey, amount decimal.Decimal) (Spec, error) {
	if !amount.IsPositive() {
		return Spec{}, fmt.Errorf("%w: %s", chain.ErrInvalidAmount, amount.String())
	}
	tok, err := f.lookup(name, tokenAddress)
	if err != nil {
		return Spec{}, err
	}
	kind := Fungible
	if tok.Native {
		kind = Native
	}
	return Spec{Kind: kind, Token: tok, To: to, Amount: amount}, nil
}

func (f *Facade) lookup(name, tokenAddress string) (chain.Token, error) {
	if native, ok := f.tokens.Native(); ok && name == native.Symbol {
		return native, nil
	}
	if tokenAddress != "" {
		mint, err := solana.PublicKeyFromBase58(tokenAddress)
		if err != nil {
			return chain.Token{}, fmt.Errorf("%w: token address %q", ErrInvalidAddress, tokenAddress)
		}
		if tok, ok := f.tokens.ByMint(mint); ok {
			return tok, nil
		}
	}
	if tok, ok := f.tokens.BySymbol(name); ok {
		return tok, nil
	}
	return chain.Token{}, fmt.Errorf("%w: %q", ErrUnsupportedAssetType, name)
}

func (f *Facade) instructions(ctx context.Context, owner solana.PublicKey, spec Spec) ([]solana.Instruction, error) {
	amount, err := spec.Token.ToUnits(spec.Amount)
	if err != nil {
		return nil, err
	}

	switch spec.Kind {
	case Native:
		return []solana.Instruction{
			system.NewTransferInstruction(amount, owner, spec.To).Build(),
		}, nil
	case Fungible, NonFungible:
		return f.tokenTransfer(ctx, owner, spec, amount)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAssetType, spec.Kind)
	}
}

// tokenTransfer moves SPL tokens between associated accounts, creating the
// recipient's account when it does not exist.
func (f *Facade) tokenTransfer(ctx context.Context, owner solana.PublicKey, spec Spec, amount uint64) ([]solana.Instruction, error) {
	mint := spec.Token.Mint
	source, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source account: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(spec.To, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive recipient account: %w", err)
	}

	var out []solana.Instruction
	exists, err := f.ledger.AccountExists(ctx, dest)
	if err != nil {
		return nil, err
	}
	if !exists {
		out = append(out, associatedtokenaccount.NewCreateInstruction(owner, spec.To, mint).Build())
	}
	out = append(out, token.NewTransferCheckedInstruction(
		amount,
		spec.Token.Decimals,
		source,
		mint,
		dest,
		owner,
		nil,
	).Build())
	return out, nil
}

// submitError classifies a send or confirmation error. A timeout is reported
// as such, everything else is a failed transfer carrying the cause.
func submitError(err error) error {
	if errors.Is(err, chain.ErrConfirmationTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransferFailed, err)
}
