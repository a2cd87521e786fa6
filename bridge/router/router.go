// Package router prices and executes token swaps across one or two AMM
// pools. Two-pool routes go through the quote currency and are submitted as
// a single transaction, so either both hops settle or neither does.
package router

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "router").Logger()
}

// Signer gives access to the active wallet key.
type Signer interface {
	Signer() (solana.PrivateKey, bool)
}

// Executor submits instructions as one transaction and waits for it to land.
type Executor interface {
	Execute(ctx context.Context, payer solana.PrivateKey, instructions []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error)
}

type Router struct {
	registry   *Registry
	resolver   *Resolver
	owner      Signer
	executor   Executor
	tracer     trace.Tracer
	maxRetries int           // retries of a failed pool quote
	retryDelay time.Duration // first retry delay, doubled on each attempt
}

type Option func(*Router)

// WithQuoteRetry sets how often a failed quote is retried and the initial
// backoff between attempts.
func WithQuoteRetry(maxRetries int, delay time.Duration) Option {
	return func(r *Router) {
		r.maxRetries = maxRetries
		r.retryDelay = delay
	}
}

func NewRouter(registry *Registry, resolver *Resolver, owner Signer, executor Executor, opts ...Option) *Router {
	r := &Router{
		registry:   registry,
		resolver:   resolver,
		owner:      owner,
		executor:   executor,
		tracer:     otel.Tracer("github.com/zclubweb3/solana-bridge/bridge/router"),
		maxRetries: 2,
		retryDelay: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Registry() *Registry { return r.registry }

// Swap sells amount along route and returns the id of the confirmed
// transaction. Every quote and fragment is built before anything is sent.
func (r *Router) Swap(ctx context.Context, route RouteDescriptor, amount decimal.Decimal, slippage pools.Percentage) SwapResult {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "router.Swap", trace.WithAttributes(
		attribute.Int("route.type", int(route.Type)),
		attribute.String("route.direction", string(route.Direction)),
		attribute.String("swap.amount", amount.String()),
		attribute.String("swap.slippage", slippage.String()),
	))
	defer span.End()

	res := r.swap(ctx, route, amount, slippage)

	routeType := strconv.Itoa(int(route.Type))
	swapsTotal.WithLabelValues(routeType, string(route.Direction), outcome(res.Err)).Inc()
	swapDuration.WithLabelValues(routeType, outcome(res.Err)).Observe(time.Since(start).Seconds())

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		log.Error().Err(res.Err).Str("route", route.String()).Str("amount", amount.String()).Msg("Swap failed")
		return res
	}
	span.SetAttributes(attribute.String("swap.signature", res.TransactionID))
	log.Info().
		Str("route", route.String()).
		Str("amount", amount.String()).
		Str("signature", res.TransactionID).
		Dur("took", time.Since(start)).
		Msg("Swap confirmed")
	return res
}

func (r *Router) swap(ctx context.Context, route RouteDescriptor, amount decimal.Decimal, slippage pools.Percentage) SwapResult {
	payer, ok := r.owner.Signer()
	if !ok {
		return SwapResult{Err: ErrNoOwner}
	}
	if !route.Type.Valid() {
		return SwapResult{Err: fmt.Errorf("%w: route type %d", ErrInvalidRoute, route.Type)}
	}
	if route.Direction != Left && route.Direction != Right {
		return SwapResult{Err: fmt.Errorf("%w: direction %q", ErrInvalidRoute, route.Direction)}
	}
	if !amount.IsPositive() {
		return SwapResult{Err: fmt.Errorf("%w: %s", chain.ErrInvalidAmount, amount.String())}
	}

	resolved, err := r.resolver.ResolvePools(ctx, route)
	if err != nil {
		return SwapResult{Err: err}
	}

	plan, err := r.BuildPlan(ctx, route, resolved, payer.PublicKey(), amount, slippage)
	if err != nil {
		return SwapResult{Err: err}
	}

	merged := plan.Merge()
	sig, err := r.executor.Execute(ctx, payer, merged.Instructions, merged.Signers)
	if err != nil {
		return SwapResult{Err: fmt.Errorf("%w: %w", ErrSwapFailed, err)}
	}
	return SwapResult{TransactionID: sig.String()}
}

// BuildPlan quotes every hop of route and builds its fragments without
// submitting anything.
func (r *Router) BuildPlan(
	ctx context.Context,
	route RouteDescriptor,
	resolved Pools,
	owner solana.PublicKey,
	amount decimal.Decimal,
	slippage pools.Percentage,
) (*Plan, error) {
	if !resolved.Chained() {
		return r.planDirect(ctx, route, resolved.Primary, owner, amount, slippage)
	}
	return r.planChained(ctx, route, resolved, owner, amount, slippage)
}

// planDirect sells leg B when trading left and leg A when trading right.
func (r *Router) planDirect(
	ctx context.Context,
	route RouteDescriptor,
	pool pools.PoolHandle,
	owner solana.PublicKey,
	amount decimal.Decimal,
	slippage pools.Percentage,
) (*Plan, error) {
	input := pool.TokenB()
	if route.Direction == Right {
		input = pool.TokenA()
	}

	leg, err := r.buildLeg(ctx, pool, input, owner, amount, slippage)
	if err != nil {
		return nil, err
	}
	return &Plan{Route: route, Legs: []PlanLeg{*leg}}, nil
}

// planChained sells the non-quote leg of the secondary pool for the quote
// currency, then sells that minimum output on the primary pool.
func (r *Router) planChained(
	ctx context.Context,
	route RouteDescriptor,
	resolved Pools,
	owner solana.PublicKey,
	amount decimal.Decimal,
	slippage pools.Percentage,
) (*Plan, error) {
	quote := r.registry.QuoteToken()

	in1, err := pools.OtherLeg(resolved.Secondary, quote)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %s does not trade %s", ErrPoolResolution, resolved.Secondary.Name(), quote.Symbol)
	}
	out1, err := pools.OtherLeg(resolved.Secondary, in1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoolResolution, err)
	}

	first, err := r.buildLeg(ctx, resolved.Secondary, in1, owner, amount, slippage)
	if err != nil {
		return nil, err
	}

	in2, err := pools.LegByMint(resolved.Primary, out1.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %s does not trade %s", ErrPoolResolution, resolved.Primary.Name(), out1.Symbol)
	}

	second, err := r.buildLeg(ctx, resolved.Primary, in2, owner, first.MinimumOutput, slippage)
	if err != nil {
		return nil, err
	}

	return &Plan{Route: route, Legs: []PlanLeg{*first, *second}}, nil
}

func (r *Router) buildLeg(
	ctx context.Context,
	pool pools.PoolHandle,
	input chain.Token,
	owner solana.PublicKey,
	amount decimal.Decimal,
	slippage pools.Percentage,
) (*PlanLeg, error) {
	q, err := r.quoteWithRetry(ctx, pool, input, amount, slippage)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s on %s: %w", ErrQuoteFailed, amount.String(), input.Symbol, pool.Name(), err)
	}

	frag, err := pool.Swap(ctx, owner, input, amount, q.MinimumOutput)
	if err != nil {
		return nil, fmt.Errorf("%w: building %s leg on %s: %w", ErrSwapFailed, input.Symbol, pool.Name(), err)
	}

	log.Debug().
		Str("pool", pool.Name()).
		Str("input", input.Symbol).
		Str("amount", amount.String()).
		Str("minOutput", q.MinimumOutput.String()).
		Int("instructions", len(frag.Instructions)).
		Msg("Built swap leg")

	return &PlanLeg{
		Pool:          pool.Name(),
		Input:         input,
		InputAmount:   amount,
		MinimumOutput: q.MinimumOutput,
		Fragment:      frag,
	}, nil
}

// quoteWithRetry retries transient quote failures with exponential backoff.
// Errors about the request itself are returned at once.
func (r *Router) quoteWithRetry(
	ctx context.Context,
	pool pools.PoolHandle,
	input chain.Token,
	amount decimal.Decimal,
	slippage pools.Percentage,
) (*pools.Quote, error) {
	var lastErr error
	delay := r.retryDelay

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		q, err := pool.Quote(ctx, input, amount, slippage)
		quotesTotal.WithLabelValues(pool.Name(), outcome(err)).Inc()
		if err == nil {
			return q, nil
		}
		lastErr = err
		if permanent(err) {
			break
		}
	}
	return nil, lastErr
}

// permanent reports errors that another attempt would only repeat.
func permanent(err error) bool {
	return errors.Is(err, pools.ErrUnsupportedLeg) ||
		errors.Is(err, pools.ErrEmptyPool) ||
		errors.Is(err, chain.ErrInvalidAmount) ||
		errors.Is(err, chain.ErrInvalidAccountData)
}
