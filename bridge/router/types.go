package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

// RouteType selects the pool(s) of a swap. Types 0-2 trade a token directly
// against the quote currency, types 3-5 chain two pools through it.
type RouteType int

const (
	RouteSolUSDC RouteType = iota
	RouteAutUSDC
	RouteAhtUSDC
	RouteAutSol
	RouteAhtSol
	RouteAutAht
)

func (t RouteType) Valid() bool { return t >= RouteSolUSDC && t <= RouteAutAht }

// Chained reports whether the route crosses two pools.
func (t RouteType) Chained() bool { return t >= RouteAutSol }

// PoolCount is the number of pools a route of this type must be configured with.
func (t RouteType) PoolCount() int {
	if t.Chained() {
		return 2
	}
	return 1
}

func ParseRouteType(s string) (RouteType, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: route type %q", ErrInvalidRoute, s)
	}
	t := RouteType(n)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: route type %d", ErrInvalidRoute, n)
	}
	return t, nil
}

// Direction picks the input leg. On a direct route left sells leg B of the
// pool and right sells leg A. On a chained route left makes the first route
// pool the primary and right makes it the secondary; the first hop always
// sells the non-quote leg of the secondary.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection accepts "left" and "right". An empty direction means left.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", Left:
		return Left, nil
	case Right:
		return Right, nil
	default:
		return "", fmt.Errorf("%w: direction %q", ErrInvalidRoute, s)
	}
}

// RouteDescriptor identifies a swap route. Immutable once loaded.
type RouteDescriptor struct {
	Type      RouteType
	Direction Direction
}

func (r RouteDescriptor) String() string {
	return fmt.Sprintf("%d/%s", r.Type, r.Direction)
}

// Pools are the handles a route trades on. Secondary is nil for direct routes.
type Pools struct {
	Primary   pools.PoolHandle
	Secondary pools.PoolHandle
}

func (p Pools) Chained() bool { return p.Secondary != nil }

// PlanLeg is one hop of a swap plan.
type PlanLeg struct {
	Pool          string
	Input         chain.Token
	InputAmount   decimal.Decimal
	MinimumOutput decimal.Decimal
	Fragment      *pools.Fragment
}

// Plan is the ordered set of hops of one swap, built completely before
// anything is submitted.
type Plan struct {
	Route RouteDescriptor
	Legs  []PlanLeg
}

// Merge folds the leg fragments into one. Left routes keep hop order, right
// routes use the second hop as the base and append the first.
func (p *Plan) Merge() *pools.Fragment {
	merged := &pools.Fragment{}
	switch {
	case len(p.Legs) == 1:
		merged.Append(p.Legs[0].Fragment)
	case p.Route.Direction == Right:
		merged.Append(p.Legs[1].Fragment)
		merged.Append(p.Legs[0].Fragment)
	default:
		for _, leg := range p.Legs {
			merged.Append(leg.Fragment)
		}
	}
	return merged
}

// SwapResult is either a transaction id or the error that stopped the swap.
type SwapResult struct {
	TransactionID string
	Err           error
}

// PriceResult holds the rates of both legs of a route.
type PriceResult struct {
	Type   RouteType
	TokenA decimal.Decimal
	TokenB decimal.Decimal
}

// TradeAmount is the estimate returned by CalcTradeAmount.
type TradeAmount struct {
	FromCoin string
	ToCoin   string
	Amount   decimal.Decimal
	TokenA   decimal.Decimal
	TokenB   decimal.Decimal
}
