package router

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

// Price returns the rates for selling amount of each leg of a route. Chained
// routes compose the rates of both pools through the quote currency:
//
//	tokenA = rate2A * rateB
//	tokenB = rate2B * rateA
//
// where rateA and rateB come from the primary pool and rate2A and rate2B from
// the secondary. Pools are always taken in their left order, so the
// direction of route does not change the result.
func (r *Router) Price(ctx context.Context, route RouteDescriptor, amount decimal.Decimal) (*PriceResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", chain.ErrInvalidAmount, amount.String())
	}
	resolved, err := r.resolver.ResolvePools(ctx, RouteDescriptor{Type: route.Type, Direction: Left})
	if err != nil {
		return nil, err
	}

	rateA, rateB, err := r.rates(ctx, resolved.Primary, amount)
	if err != nil {
		return nil, err
	}
	if !resolved.Chained() {
		return &PriceResult{Type: route.Type, TokenA: rateA, TokenB: rateB}, nil
	}

	rate2A, rate2B, err := r.rates(ctx, resolved.Secondary, amount)
	if err != nil {
		return nil, err
	}
	return &PriceResult{
		Type:   route.Type,
		TokenA: rate2A.Mul(rateB),
		TokenB: rate2B.Mul(rateA),
	}, nil
}

// rates quotes amount of leg A and of leg B on pool without slippage.
func (r *Router) rates(ctx context.Context, pool pools.PoolHandle, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	qa, err := r.quoteWithRetry(ctx, pool, pool.TokenA(), amount, pools.NoSlippage())
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s on %s: %w", ErrQuoteFailed, pool.TokenA().Symbol, pool.Name(), err)
	}
	qb, err := r.quoteWithRetry(ctx, pool, pool.TokenB(), amount, pools.NoSlippage())
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s on %s: %w", ErrQuoteFailed, pool.TokenB().Symbol, pool.Name(), err)
	}
	return qa.Rate, qb.Rate, nil
}

// Fee returns the liquidity provider fee of selling one unit of leg A on
// every pool of a route, summed.
func (r *Router) Fee(ctx context.Context, t RouteType) (decimal.Decimal, error) {
	resolved, err := r.resolver.ResolvePools(ctx, RouteDescriptor{Type: t, Direction: Left})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, pool := range []pools.PoolHandle{resolved.Primary, resolved.Secondary} {
		if pool == nil {
			continue
		}
		q, err := r.quoteWithRetry(ctx, pool, pool.TokenA(), decimal.NewFromInt(1), pools.NoSlippage())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: fee on %s: %w", ErrQuoteFailed, pool.Name(), err)
		}
		total = total.Add(q.LPFee)
	}
	return total, nil
}

// CalcTradeAmount prices amount on the route registered for the pair name
// from-to. The amount is divided by the rate of the leg being bought: tokenB for left
// pairs, tokenA for right pairs.
func (r *Router) CalcTradeAmount(ctx context.Context, from, to string, amount decimal.Decimal) (*TradeAmount, error) {
	route, err := r.registry.Resolve(pairName(from, to))
	if err != nil {
		return nil, err
	}
	price, err := r.Price(ctx, route, amount)
	if err != nil {
		return nil, err
	}

	divisor := price.TokenB
	if route.Direction == Right {
		divisor = price.TokenA
	}
	if divisor.IsZero() {
		return nil, fmt.Errorf("%w: zero rate for %s", ErrQuoteFailed, pairName(from, to))
	}

	return &TradeAmount{
		FromCoin: from,
		ToCoin:   to,
		Amount:   amount.DivRound(divisor, 9),
		TokenA:   price.TokenA,
		TokenB:   price.TokenB,
	}, nil
}

// TradeToken swaps on the route registered for the pair name from-to, with
// tolerance in percent. The route's direction picks the sold leg.
func (r *Router) TradeToken(ctx context.Context, from, to string, amount, tolerance decimal.Decimal) SwapResult {
	route, err := r.registry.Resolve(pairName(from, to))
	if err != nil {
		return SwapResult{Err: err}
	}
	slippage, err := pools.FromTolerance(tolerance)
	if err != nil {
		return SwapResult{Err: fmt.Errorf("%w: %w", ErrBadSlippage, err)}
	}
	return r.Swap(ctx, route, amount, slippage)
}

func pairName(from, to string) string { return from + "-" + to }
