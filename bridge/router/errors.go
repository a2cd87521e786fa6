package router

import (
	"errors"

	"github.com/zclubweb3/solana-bridge/bridge/wallet"
)

var (
	ErrUnknownPair    = errors.New("unknown exchange pair")
	ErrInvalidRoute   = errors.New("invalid route")
	ErrPoolResolution = errors.New("pool resolution failed")
	ErrNoOwner        = wallet.ErrNoOwner
	ErrQuoteFailed    = errors.New("quote failed")
	ErrSwapFailed     = errors.New("swap failed")
	ErrBadSlippage    = errors.New("invalid slippage")
)
