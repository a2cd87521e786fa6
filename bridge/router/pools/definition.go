package pools

import (
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// VenueOrcaTokenSwap is the Orca legacy constant-product token-swap program.
const VenueOrcaTokenSwap = "orca-token-swap"

var ErrIncompleteDefinition = errors.New("incomplete pool definition")

// Definition is the static configuration of one pool, as loaded from the
// exchange config.
type Definition struct {
	Key        string
	Venue      string
	ProgramID  string
	Address    string
	Authority  string
	TokenA     string
	TokenB     string
	VaultA     string
	VaultB     string
	PoolMint   string
	FeeAccount string

	TradeFeeNumerator   uint64
	TradeFeeDenominator uint64
	OwnerFeeNumerator   uint64
	OwnerFeeDenominator uint64
}

// Accounts holds the parsed addresses of a validated definition.
type Accounts struct {
	Program    solana.PublicKey
	Swap       solana.PublicKey
	Authority  solana.PublicKey
	VaultA     solana.PublicKey
	VaultB     solana.PublicKey
	PoolMint   solana.PublicKey
	FeeAccount solana.PublicKey
}

// Validate checks that every address is a base58 public key and the fee
// ratios are usable. Placeholder entries such as "token1_usdc" fail here.
func (d Definition) Validate() error {
	_, err := d.Accounts()
	return err
}

// Accounts parses every address of the definition.
func (d Definition) Accounts() (Accounts, error) {
	var errs []error
	parse := func(field, value string) solana.PublicKey {
		pk, err := solana.PublicKeyFromBase58(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", field, value, err))
		}
		return pk
	}

	if d.TokenA == "" || d.TokenB == "" {
		errs = append(errs, errors.New("token_a and token_b are required"))
	}
	if d.TokenA != "" && d.TokenA == d.TokenB {
		errs = append(errs, fmt.Errorf("token_a and token_b are both %s", d.TokenA))
	}
	if d.TradeFeeDenominator == 0 && d.TradeFeeNumerator != 0 {
		errs = append(errs, errors.New("trade fee denominator is zero"))
	}
	if d.OwnerFeeDenominator == 0 && d.OwnerFeeNumerator != 0 {
		errs = append(errs, errors.New("owner fee denominator is zero"))
	}

	acc := Accounts{
		Program:    parse("program_id", d.ProgramID),
		Swap:       parse("address", d.Address),
		Authority:  parse("authority", d.Authority),
		VaultA:     parse("vault_a", d.VaultA),
		VaultB:     parse("vault_b", d.VaultB),
		PoolMint:   parse("pool_mint", d.PoolMint),
		FeeAccount: parse("fee_account", d.FeeAccount),
	}
	if len(errs) > 0 {
		return Accounts{}, fmt.Errorf("%w: pool %s: %w", ErrIncompleteDefinition, d.Key, errors.Join(errs...))
	}
	return acc, nil
}
