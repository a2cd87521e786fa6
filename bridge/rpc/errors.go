package rpc

import (
	"errors"
	"net/http"

	"github.com/zclubweb3/solana-bridge/bridge/assets"
	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router"
	"github.com/zclubweb3/solana-bridge/bridge/wallet"
)

var (
	errInvalidRequest = errors.New("invalid request")
	errUnknownMethod  = errors.New("unknown bridge method")
)

type errorClass struct {
	target error
	code   string
	status int
}

// errorClasses is checked in order. Timeouts come before the failures that
// wrap them.
var errorClasses = []errorClass{
	{chain.ErrConfirmationTimeout, "CONFIRMATION_TIMEOUT", http.StatusGatewayTimeout},
	{errInvalidRequest, "INVALID_REQUEST", http.StatusBadRequest},
	{errUnknownMethod, "UNKNOWN_METHOD", http.StatusNotFound},
	{wallet.ErrNoOwner, "NO_OWNER", http.StatusPreconditionFailed},
	{wallet.ErrInvalidMnemonic, "INVALID_MNEMONIC", http.StatusBadRequest},
	{wallet.ErrInvalidPrivateKey, "INVALID_PRIVATE_KEY", http.StatusBadRequest},
	{router.ErrUnknownPair, "UNKNOWN_PAIR", http.StatusBadRequest},
	{router.ErrInvalidRoute, "INVALID_ROUTE", http.StatusBadRequest},
	{router.ErrBadSlippage, "INVALID_SLIPPAGE", http.StatusBadRequest},
	{router.ErrPoolResolution, "POOL_RESOLUTION", http.StatusBadGateway},
	{router.ErrQuoteFailed, "QUOTE_FAILED", http.StatusBadGateway},
	{router.ErrSwapFailed, "SWAP_FAILED", http.StatusBadGateway},
	{assets.ErrTransferFailed, "TRANSFER_FAILED", http.StatusBadGateway},
	{assets.ErrUnsupportedAssetType, "UNSUPPORTED_ASSET_TYPE", http.StatusBadRequest},
	{assets.ErrInvalidAddress, "INVALID_ADDRESS", http.StatusBadRequest},
	{assets.ErrNoSpendingWallet, "NO_SPENDING_WALLET", http.StatusInternalServerError},
	{chain.ErrInvalidAmount, "INVALID_AMOUNT", http.StatusBadRequest},
	{chain.ErrUnknownToken, "UNKNOWN_TOKEN", http.StatusBadRequest},
	{chain.ErrTransactionFailed, "TRANSACTION_FAILED", http.StatusBadGateway},
}

// classify maps an error to the code carried in failure events and the
// HTTP status of the call.
func classify(err error) (string, int) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.code, c.status
		}
	}
	return "INTERNAL", http.StatusInternalServerError
}

func statusOf(code string) int {
	for _, c := range errorClasses {
		if c.code == code {
			return c.status
		}
	}
	return http.StatusInternalServerError
}
