package router_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

var (
	solToken  = chain.Token{Symbol: "SOL", Mint: solana.SolMint, Decimals: 9, Native: true}
	usdcToken = chain.Token{Symbol: "USDC", Mint: solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"), Decimals: 6}
	autToken  = chain.Token{Symbol: "AUT", Mint: solana.MustPublicKeyFromBase58("AUTeiKm7s4p1qYcxsXaSk6wExJUN7VuNhnoU7eUwgK2H"), Decimals: 6}
	ahtToken  = chain.Token{Symbol: "AHT", Mint: solana.MustPublicKeyFromBase58("AHTYibuZowvxXc5yCzLtjAsAdBzwWemvT1WLjLnpiG1v"), Decimals: 6}
)

var defaultPairs = map[string]router.RouteDescriptor{
	"SOL-USDC": {Type: router.RouteSolUSDC, Direction: router.Left},
	"USDC-SOL": {Type: router.RouteSolUSDC, Direction: router.Right},
	"AUT-USDC": {Type: router.RouteAutUSDC, Direction: router.Left},
	"USDC-AUT": {Type: router.RouteAutUSDC, Direction: router.Right},
	"AHT-USDC": {Type: router.RouteAhtUSDC, Direction: router.Left},
	"USDC-AHT": {Type: router.RouteAhtUSDC, Direction: router.Right},
	"AUT-SOL":  {Type: router.RouteAutSol, Direction: router.Left},
	"SOL-AUT":  {Type: router.RouteAutSol, Direction: router.Right},
	"AHT-SOL":  {Type: router.RouteAhtSol, Direction: router.Left},
	"SOL-AHT":  {Type: router.RouteAhtSol, Direction: router.Right},
	"AUT-AHT":  {Type: router.RouteAutAht, Direction: router.Left},
	"AHT-AUT":  {Type: router.RouteAutAht, Direction: router.Right},
}

var defaultRoutes = map[router.RouteType][]string{
	router.RouteSolUSDC: {"SOL_USDC"},
	router.RouteAutUSDC: {"AUT_USDC"},
	router.RouteAhtUSDC: {"AHT_USDC"},
	router.RouteAutSol:  {"SOL_USDC", "AUT_USDC"},
	router.RouteAhtSol:  {"SOL_USDC", "AHT_USDC"},
	router.RouteAutAht:  {"AUT_USDC", "AHT_USDC"},
}

func poolDefinition(key, tokenA, tokenB string) pools.Definition {
	addr := func() string { return solana.NewWallet().PublicKey().String() }
	return pools.Definition{
		Key:                 key,
		Venue:               pools.VenueOrcaTokenSwap,
		ProgramID:           "9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP",
		Address:             addr(),
		Authority:           addr(),
		TokenA:              tokenA,
		TokenB:              tokenB,
		VaultA:              addr(),
		VaultB:              addr(),
		PoolMint:            addr(),
		FeeAccount:          addr(),
		TradeFeeNumerator:   25,
		TradeFeeDenominator: 10000,
		OwnerFeeNumerator:   5,
		OwnerFeeDenominator: 10000,
	}
}

func defaultDefinitions() []pools.Definition {
	return []pools.Definition{
		poolDefinition("SOL_USDC", "SOL", "USDC"),
		poolDefinition("AUT_USDC", "AUT", "USDC"),
		poolDefinition("AHT_USDC", "AHT", "USDC"),
	}
}

func newRegistry(defs []pools.Definition) (*router.Registry, error) {
	book, err := chain.NewTokenBook([]chain.Token{solToken, usdcToken, autToken, ahtToken})
	if err != nil {
		return nil, err
	}
	return router.NewRegistry("USDC", book, defaultPairs, defaultRoutes, defs)
}

// call records one interaction with a fake pool.
type call struct {
	Op     string
	Pool   string
	Input  string
	Amount string
	MinOut string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) ops(op string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// fakePool quotes at fixed rates per input token.
type fakePool struct {
	name     string
	a, b     chain.Token
	rates    map[string]decimal.Decimal
	lpFee    decimal.Decimal
	quoteErr error
	program  solana.PublicKey
	signer   solana.PrivateKey
	rec      *recorder
}

func (p *fakePool) Name() string        { return p.name }
func (p *fakePool) TokenA() chain.Token { return p.a }
func (p *fakePool) TokenB() chain.Token { return p.b }

func (p *fakePool) Quote(_ context.Context, input chain.Token, amount decimal.Decimal, slippage pools.Percentage) (*pools.Quote, error) {
	p.rec.add(call{Op: "quote", Pool: p.name, Input: input.Symbol, Amount: amount.String()})
	if p.quoteErr != nil {
		return nil, p.quoteErr
	}
	rate, ok := p.rates[input.Symbol]
	if !ok {
		return nil, pools.ErrUnsupportedLeg
	}
	expected := amount.Mul(rate)
	return &pools.Quote{
		InputAmount:    amount,
		ExpectedOutput: expected,
		MinimumOutput:  expected.Mul(decimal.NewFromInt(1).Sub(slippage.Fraction())).Truncate(6),
		Rate:           rate,
		LPFee:          p.lpFee,
	}, nil
}

func (p *fakePool) Swap(_ context.Context, _ solana.PublicKey, input chain.Token, amount, minOutput decimal.Decimal) (*pools.Fragment, error) {
	p.rec.add(call{Op: "swap", Pool: p.name, Input: input.Symbol, Amount: amount.String(), MinOut: minOutput.String()})
	ix := solana.NewInstruction(p.program, solana.AccountMetaSlice{}, []byte(p.name+":"+input.Symbol))
	return &pools.Fragment{
		Instructions: []solana.Instruction{ix},
		Signers:      []solana.PrivateKey{p.signer},
	}, nil
}

type fakeOpener struct {
	handles map[string]*fakePool
}

func (o *fakeOpener) Open(_ context.Context, def pools.Definition) (pools.PoolHandle, error) {
	h, ok := o.handles[def.Key]
	if !ok {
		return nil, fmt.Errorf("no handle for %s", def.Key)
	}
	return h, nil
}

type fakeSigner struct {
	key *solana.PrivateKey
}

func (s fakeSigner) Signer() (solana.PrivateKey, bool) {
	if s.key == nil {
		return nil, false
	}
	return *s.key, true
}

type fakeExecutor struct {
	mu           sync.Mutex
	submissions  int
	instructions []solana.Instruction
	signers      []solana.PrivateKey
	err          error
}

func (e *fakeExecutor) Execute(_ context.Context, _ solana.PrivateKey, instructions []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submissions++
	e.instructions = instructions
	e.signers = signers
	if e.err != nil {
		return solana.Signature{}, e.err
	}
	return solana.Signature{7}, nil
}

// tags returns the data of each submitted instruction, which fakePool sets
// to "pool:input".
func (e *fakeExecutor) tags() []string {
	out := make([]string, 0, len(e.instructions))
	for _, ix := range e.instructions {
		data, _ := ix.Data()
		out = append(out, string(data))
	}
	return out
}

type harness struct {
	router   *router.Router
	registry *router.Registry
	rec      *recorder
	pools    map[string]*fakePool
	executor *fakeExecutor
}

// newHarness wires a router over fake pools priced with the documented
// fixture: primary rateA=2 rateB=0.5, secondary rate2A=3 rate2B=0.25.
func newHarness(owner *solana.PrivateKey, opts ...router.Option) (*harness, error) {
	rec := &recorder{}
	mk := func(name string, a, b chain.Token, rateA, rateB string) *fakePool {
		return &fakePool{
			name:    name,
			a:       a,
			b:       b,
			rates:   map[string]decimal.Decimal{a.Symbol: decimal.RequireFromString(rateA), b.Symbol: decimal.RequireFromString(rateB)},
			lpFee:   decimal.RequireFromString("0.003"),
			program: solana.NewWallet().PublicKey(),
			signer:  solana.NewWallet().PrivateKey,
			rec:     rec,
		}
	}
	handles := map[string]*fakePool{
		"SOL_USDC": mk("SOL_USDC", solToken, usdcToken, "2", "0.5"),
		"AUT_USDC": mk("AUT_USDC", autToken, usdcToken, "3", "0.25"),
		"AHT_USDC": mk("AHT_USDC", ahtToken, usdcToken, "4", "0.2"),
	}

	registry, err := newRegistry(defaultDefinitions())
	if err != nil {
		return nil, err
	}
	if err := registry.Validate(); err != nil {
		return nil, errors.Join(errors.New("fixture registry invalid"), err)
	}

	exec := &fakeExecutor{}
	r := router.NewRouter(
		registry,
		router.NewResolver(registry, &fakeOpener{handles: handles}),
		fakeSigner{key: owner},
		exec,
		append([]router.Option{router.WithQuoteRetry(0, 0)}, opts...)...,
	)
	return &harness{router: r, registry: registry, rec: rec, pools: handles, executor: exec}, nil
}
