package rpc

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/assets"
	"github.com/zclubweb3/solana-bridge/bridge/chain"
)

const publicKeyLength = 32

// validateAddress rejects anything that is not a base58 encoded 32 byte key.
func validateAddress(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%w: %s is required", errInvalidRequest, field)
	}
	if decoded := base58.Decode(value); len(decoded) != publicKeyLength {
		return fmt.Errorf("%w: %s %q is not a base58 public key", assets.ErrInvalidAddress, field, value)
	}
	return nil
}

// validateOptionalAddress accepts an empty value.
func validateOptionalAddress(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return validateAddress(field, value)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", chain.ErrInvalidAmount, amount.String())
	}
	return nil
}

func validateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", errInvalidRequest, field)
	}
	return nil
}
