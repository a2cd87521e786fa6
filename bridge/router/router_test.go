package router_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

func onePercent(t *testing.T) pools.Percentage {
	t.Helper()
	p, err := pools.FromTolerance(decimal.NewFromInt(1))
	assert.NoError(t, err)
	return p
}

func ownerKey() *solana.PrivateKey {
	k := solana.NewWallet().PrivateKey
	return &k
}

func TestSwapWithoutOwner(t *testing.T) {
	h, err := newHarness(nil)
	assert.NoError(t, err)

	res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteAutSol, Direction: router.Left}, decimal.NewFromInt(1), onePercent(t))
	assert.True(t, errors.Is(res.Err, router.ErrNoOwner))
	assert.Equal(t, res.TransactionID, "")
	assert.Equal(t, len(h.rec.calls), 0)
	assert.Equal(t, h.executor.submissions, 0)
}

func TestSwapRejectsInvalidRoute(t *testing.T) {
	h, err := newHarness(ownerKey())
	assert.NoError(t, err)

	res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: 9, Direction: router.Left}, decimal.NewFromInt(1), onePercent(t))
	assert.True(t, errors.Is(res.Err, router.ErrInvalidRoute))

	res = h.router.Swap(context.Background(), router.RouteDescriptor{Type: 1, Direction: "up"}, decimal.NewFromInt(1), onePercent(t))
	assert.True(t, errors.Is(res.Err, router.ErrInvalidRoute))

	res = h.router.Swap(context.Background(), router.RouteDescriptor{Type: 1, Direction: router.Left}, decimal.Zero, onePercent(t))
	assert.True(t, errors.Is(res.Err, chain.ErrInvalidAmount))

	assert.Equal(t, len(h.rec.calls), 0)
}

func TestSwapDirectSelectsLegByDirection(t *testing.T) {
	tests := []struct {
		name      string
		direction router.Direction
		wantInput string
	}{
		{name: "left sells leg B", direction: router.Left, wantInput: "USDC"},
		{name: "right sells leg A", direction: router.Right, wantInput: "AUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := newHarness(ownerKey())
			assert.NoError(t, err)

			res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteAutUSDC, Direction: tt.direction}, decimal.NewFromInt(4), onePercent(t))
			assert.NoError(t, res.Err)
			assert.Equal(t, res.TransactionID, solana.Signature{7}.String())

			quotes := h.rec.ops("quote")
			assert.Equal(t, len(quotes), 1)
			assert.Equal(t, quotes[0].Pool, "AUT_USDC")
			assert.Equal(t, quotes[0].Input, tt.wantInput)
			assert.Equal(t, h.executor.submissions, 1)
			assert.Equal(t, len(h.executor.instructions), 1)
		})
	}
}

func TestSwapChainedLeft(t *testing.T) {
	h, err := newHarness(ownerKey())
	assert.NoError(t, err)

	res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteAutSol, Direction: router.Left}, decimal.NewFromInt(10), onePercent(t))
	assert.NoError(t, res.Err)

	// hop 1 sells AUT on the secondary pool, hop 2 sells its minimum output
	quotes := h.rec.ops("quote")
	assert.Equal(t, len(quotes), 2)
	assert.Equal(t, quotes[0], call{Op: "quote", Pool: "AUT_USDC", Input: "AUT", Amount: "10"})
	assert.Equal(t, quotes[1], call{Op: "quote", Pool: "SOL_USDC", Input: "USDC", Amount: "29.7"})

	swaps := h.rec.ops("swap")
	assert.Equal(t, len(swaps), 2)
	assert.Equal(t, swaps[0].MinOut, "29.7")
	assert.Equal(t, swaps[1].Amount, "29.7")
	assert.Equal(t, swaps[1].MinOut, "14.7015")

	// one submission, secondary fragment first
	assert.Equal(t, h.executor.submissions, 1)
	assert.DeepEqual(t, h.executor.tags(), []string{"AUT_USDC:AUT", "SOL_USDC:USDC"})
	assert.Equal(t, len(h.executor.signers), 2)
	assert.Equal(t, h.executor.signers[0].PublicKey(), h.pools["AUT_USDC"].signer.PublicKey())
	assert.Equal(t, h.executor.signers[1].PublicKey(), h.pools["SOL_USDC"].signer.PublicKey())
}

func TestSwapChainedRight(t *testing.T) {
	h, err := newHarness(ownerKey())
	assert.NoError(t, err)

	res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteAutSol, Direction: router.Right}, decimal.NewFromInt(10), onePercent(t))
	assert.NoError(t, res.Err)

	// pool roles are swapped: SOL_USDC is now the secondary
	quotes := h.rec.ops("quote")
	assert.Equal(t, len(quotes), 2)
	assert.Equal(t, quotes[0], call{Op: "quote", Pool: "SOL_USDC", Input: "SOL", Amount: "10"})
	assert.Equal(t, quotes[1], call{Op: "quote", Pool: "AUT_USDC", Input: "USDC", Amount: "19.8"})

	// primary fragment is the base, secondary appended
	assert.Equal(t, h.executor.submissions, 1)
	assert.DeepEqual(t, h.executor.tags(), []string{"AUT_USDC:USDC", "SOL_USDC:SOL"})
	assert.Equal(t, h.executor.signers[0].PublicKey(), h.pools["AUT_USDC"].signer.PublicKey())
	assert.Equal(t, h.executor.signers[1].PublicKey(), h.pools["SOL_USDC"].signer.PublicKey())
}

func TestSwapChainedBetweenTokens(t *testing.T) {
	h, err := newHarness(ownerKey())
	assert.NoError(t, err)

	res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteAutAht, Direction: router.Left}, decimal.NewFromInt(2), onePercent(t))
	assert.NoError(t, res.Err)

	quotes := h.rec.ops("quote")
	assert.Equal(t, quotes[0].Pool, "AHT_USDC")
	assert.Equal(t, quotes[0].Input, "AHT")
	assert.Equal(t, quotes[1].Pool, "AUT_USDC")
	assert.Equal(t, quotes[1].Input, "USDC")
}

func TestSwapSecondHopQuoteFailureAbortsBeforeSubmit(t *testing.T) {
	h, err := newHarness(ownerKey())
	assert.NoError(t, err)
	h.pools["SOL_USDC"].quoteErr = errors.New("rpc unavailable")

	res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteAutSol, Direction: router.Left}, decimal.NewFromInt(10), onePercent(t))
	assert.True(t, errors.Is(res.Err, router.ErrQuoteFailed))
	assert.Equal(t, len(h.rec.ops("quote")), 2)
	assert.Equal(t, len(h.rec.ops("swap")), 1)
	assert.Equal(t, h.executor.submissions, 0)
}

func TestSwapExecutionFailure(t *testing.T) {
	h, err := newHarness(ownerKey())
	assert.NoError(t, err)
	h.executor.err = &chain.TransactionError{Payload: map[string]any{"InstructionError": []any{1, "Custom"}}}

	res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteSolUSDC, Direction: router.Left}, decimal.NewFromInt(1), onePercent(t))
	assert.True(t, errors.Is(res.Err, router.ErrSwapFailed))
	assert.True(t, errors.Is(res.Err, chain.ErrTransactionFailed))
}

func TestSwapPlaceholderPoolFailsBeforeQuotes(t *testing.T) {
	defs := defaultDefinitions()
	defs[1].Address = "token1_usdc"
	registry, err := newRegistry(defs)
	assert.NoError(t, err)

	// live handles for every pool, so any quote or swap would be recorded
	h, err := newHarness(ownerKey())
	assert.NoError(t, err)
	opener := &fakeOpener{handles: h.pools}
	r := router.NewRouter(registry, router.NewResolver(registry, opener), fakeSigner{key: ownerKey()}, h.executor)

	res := r.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteAutSol, Direction: router.Left}, decimal.NewFromInt(1), pools.NoSlippage())
	assert.True(t, errors.Is(res.Err, router.ErrPoolResolution))
	assert.Equal(t, len(h.rec.calls), 0)
	assert.Equal(t, h.executor.submissions, 0)

	// the same handles do trade once the placeholder is gone
	good := router.NewRouter(h.registry, router.NewResolver(h.registry, opener), fakeSigner{key: ownerKey()}, h.executor)
	res = good.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteAutSol, Direction: router.Left}, decimal.NewFromInt(1), pools.NoSlippage())
	assert.NoError(t, res.Err)
	assert.Equal(t, len(h.rec.ops("quote")), 2)
}

func TestSwapEveryRoute(t *testing.T) {
	tests := []struct {
		name  string
		route router.RouteDescriptor
		// quotes lists pool:input in quote order
		quotes []string
		tags   []string
	}{
		{"sol-usdc left", router.RouteDescriptor{Type: router.RouteSolUSDC, Direction: router.Left}, []string{"SOL_USDC:USDC"}, []string{"SOL_USDC:USDC"}},
		{"sol-usdc right", router.RouteDescriptor{Type: router.RouteSolUSDC, Direction: router.Right}, []string{"SOL_USDC:SOL"}, []string{"SOL_USDC:SOL"}},
		{"aut-usdc left", router.RouteDescriptor{Type: router.RouteAutUSDC, Direction: router.Left}, []string{"AUT_USDC:USDC"}, []string{"AUT_USDC:USDC"}},
		{"aut-usdc right", router.RouteDescriptor{Type: router.RouteAutUSDC, Direction: router.Right}, []string{"AUT_USDC:AUT"}, []string{"AUT_USDC:AUT"}},
		{"aht-usdc left", router.RouteDescriptor{Type: router.RouteAhtUSDC, Direction: router.Left}, []string{"AHT_USDC:USDC"}, []string{"AHT_USDC:USDC"}},
		{"aht-usdc right", router.RouteDescriptor{Type: router.RouteAhtUSDC, Direction: router.Right}, []string{"AHT_USDC:AHT"}, []string{"AHT_USDC:AHT"}},
		{"aut-sol left", router.RouteDescriptor{Type: router.RouteAutSol, Direction: router.Left}, []string{"AUT_USDC:AUT", "SOL_USDC:USDC"}, []string{"AUT_USDC:AUT", "SOL_USDC:USDC"}},
		{"aut-sol right", router.RouteDescriptor{Type: router.RouteAutSol, Direction: router.Right}, []string{"SOL_USDC:SOL", "AUT_USDC:USDC"}, []string{"AUT_USDC:USDC", "SOL_USDC:SOL"}},
		{"aht-sol left", router.RouteDescriptor{Type: router.RouteAhtSol, Direction: router.Left}, []string{"AHT_USDC:AHT", "SOL_USDC:USDC"}, []string{"AHT_USDC:AHT", "SOL_USDC:USDC"}},
		{"aht-sol right", router.RouteDescriptor{Type: router.RouteAhtSol, Direction: router.Right}, []string{"SOL_USDC:SOL", "AHT_USDC:USDC"}, []string{"AHT_USDC:USDC", "SOL_USDC:SOL"}},
		{"aut-aht left", router.RouteDescriptor{Type: router.RouteAutAht, Direction: router.Left}, []string{"AHT_USDC:AHT", "AUT_USDC:USDC"}, []string{"AHT_USDC:AHT", "AUT_USDC:USDC"}},
		{"aut-aht right", router.RouteDescriptor{Type: router.RouteAutAht, Direction: router.Right}, []string{"AUT_USDC:AUT", "AHT_USDC:USDC"}, []string{"AHT_USDC:USDC", "AUT_USDC:AUT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := newHarness(ownerKey())
			assert.NoError(t, err)

			res := h.router.Swap(context.Background(), tt.route, decimal.NewFromInt(10), onePercent(t))
			assert.NoError(t, res.Err)
			assert.Equal(t, h.executor.submissions, 1)

			quotes := h.rec.ops("quote")
			assert.Equal(t, len(quotes), len(tt.quotes))
			for i, q := range quotes {
				assert.Equal(t, q.Pool+":"+q.Input, tt.quotes[i])
			}
			assert.Equal(t, quotes[0].Amount, "10")

			if len(quotes) == 2 {
				// hop 2 sells exactly what hop 1 is guaranteed to return
				swaps := h.rec.ops("swap")
				assert.Equal(t, len(swaps), 2)
				assert.Equal(t, quotes[1].Amount, swaps[0].MinOut)
				assert.Equal(t, swaps[1].Amount, swaps[0].MinOut)
			}
			assert.DeepEqual(t, h.executor.tags(), tt.tags)
		})
	}
}

func TestQuoteRetryStopsOnPermanentErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"empty pool", fmt.Errorf("pool SOL_USDC: %w", pools.ErrEmptyPool), 1},
		{"bad account data", fmt.Errorf("read reserves: %w", chain.ErrInvalidAccountData), 1},
		{"wrong leg", pools.ErrUnsupportedLeg, 1},
		{"transient", errors.New("rpc unavailable"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := newHarness(ownerKey(), router.WithQuoteRetry(2, time.Millisecond))
			assert.NoError(t, err)
			h.pools["SOL_USDC"].quoteErr = tt.err

			res := h.router.Swap(context.Background(), router.RouteDescriptor{Type: router.RouteSolUSDC, Direction: router.Left}, decimal.NewFromInt(1), onePercent(t))
			assert.True(t, errors.Is(res.Err, router.ErrQuoteFailed))
			assert.True(t, errors.Is(res.Err, tt.err))
			assert.Equal(t, len(h.rec.ops("quote")), tt.wantCalls)
			assert.Equal(t, h.executor.submissions, 0)
		})
	}
}

func TestPriceDirect(t *testing.T) {
	h, err := newHarness(nil)
	assert.NoError(t, err)

	price, err := h.router.Price(context.Background(), router.RouteDescriptor{Type: router.RouteSolUSDC}, decimal.NewFromInt(1))
	assert.NoError(t, err)
	assert.Equal(t, price.TokenA.String(), "2")
	assert.Equal(t, price.TokenB.String(), "0.5")
}

func TestPriceChainedComposesRates(t *testing.T) {
	h, err := newHarness(nil)
	assert.NoError(t, err)

	for _, dir := range []router.Direction{router.Left, router.Right} {
		price, err := h.router.Price(context.Background(), router.RouteDescriptor{Type: router.RouteAutSol, Direction: dir}, decimal.NewFromInt(1))
		assert.NoError(t, err)
		assert.Equal(t, price.TokenA.String(), "1.5")
		assert.Equal(t, price.TokenB.String(), "0.5")
		assert.Equal(t, price.Type, router.RouteAutSol)
	}
}

func TestFee(t *testing.T) {
	h, err := newHarness(nil)
	assert.NoError(t, err)

	fee, err := h.router.Fee(context.Background(), router.RouteSolUSDC)
	assert.NoError(t, err)
	assert.Equal(t, fee.String(), "0.003")

	fee, err = h.router.Fee(context.Background(), router.RouteAhtSol)
	assert.NoError(t, err)
	assert.Equal(t, fee.String(), "0.006")
}

func TestCalcTradeAmount(t *testing.T) {
	h, err := newHarness(nil)
	assert.NoError(t, err)

	left, err := h.router.CalcTradeAmount(context.Background(), "AUT", "SOL", decimal.NewFromInt(3))
	assert.NoError(t, err)
	assert.Equal(t, left.Amount.String(), "6")

	right, err := h.router.CalcTradeAmount(context.Background(), "SOL", "AUT", decimal.NewFromInt(3))
	assert.NoError(t, err)
	assert.Equal(t, right.Amount.String(), "2")
	assert.Equal(t, right.TokenA.String(), "1.5")

	_, err = h.router.CalcTradeAmount(context.Background(), "AUT", "BTC", decimal.NewFromInt(3))
	assert.True(t, errors.Is(err, router.ErrUnknownPair))
}

func TestTradeToken(t *testing.T) {
	h, err := newHarness(ownerKey())
	assert.NoError(t, err)

	res := h.router.TradeToken(context.Background(), "AUT", "SOL", decimal.NewFromInt(10), decimal.NewFromInt(1))
	assert.NoError(t, res.Err)
	assert.Equal(t, h.rec.ops("swap")[1].MinOut, "14.7015")

	res = h.router.TradeToken(context.Background(), "DOGE", "SOL", decimal.NewFromInt(10), decimal.NewFromInt(1))
	assert.True(t, errors.Is(res.Err, router.ErrUnknownPair))

	res = h.router.TradeToken(context.Background(), "AUT", "SOL", decimal.NewFromInt(10), decimal.NewFromInt(150))
	assert.True(t, errors.Is(res.Err, router.ErrBadSlippage))
}

func TestTradeTokenSoldLegFollowsDirection(t *testing.T) {
	tests := []struct {
		from, to string
		sold     string
	}{
		// left pairs sell leg B of a direct pool
		{"AUT", "USDC", "USDC"},
		{"USDC", "AUT", "AUT"},
		// chained left sells the non-quote leg of the secondary pool
		{"AUT", "AHT", "AHT"},
		{"AHT", "AUT", "AUT"},
	}

	for _, tt := range tests {
		t.Run(tt.from+"-"+tt.to, func(t *testing.T) {
			h, err := newHarness(ownerKey())
			assert.NoError(t, err)

			res := h.router.TradeToken(context.Background(), tt.from, tt.to, decimal.NewFromInt(1), decimal.NewFromInt(1))
			assert.NoError(t, res.Err)
			assert.Equal(t, h.rec.ops("quote")[0].Input, tt.sold)
		})
	}
}
