package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/zeebo/assert"

	"github.com/zclubweb3/solana-bridge/bridge/assets"
	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router"
	"github.com/zclubweb3/solana-bridge/bridge/wallet"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"no owner", fmt.Errorf("balance: %w", wallet.ErrNoOwner), "NO_OWNER", http.StatusPreconditionFailed},
		{"timeout inside swap", fmt.Errorf("%w: %w", router.ErrSwapFailed, chain.ErrConfirmationTimeout), "CONFIRMATION_TIMEOUT", http.StatusGatewayTimeout},
		{"failed transfer tx", fmt.Errorf("%w: %w", assets.ErrTransferFailed, &chain.TransactionError{}), "TRANSFER_FAILED", http.StatusBadGateway},
		{"bare tx failure", &chain.TransactionError{}, "TRANSACTION_FAILED", http.StatusBadGateway},
		{"decode", fmt.Errorf("%w: eof", errInvalidRequest), "INVALID_REQUEST", http.StatusBadRequest},
		{"slippage", router.ErrBadSlippage, "INVALID_SLIPPAGE", http.StatusBadRequest},
		{"unknown", errors.New("boom"), "INTERNAL", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, status := classify(tc.err)
			assert.Equal(t, code, tc.code)
			assert.Equal(t, status, tc.status)
			assert.Equal(t, statusOf(code), tc.status)
		})
	}
}
