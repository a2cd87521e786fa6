package router

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

// Registry maps exchange pair names ("AUT-USDC") to route descriptors and
// route types to the pools they trade on. It is built once from config and
// read concurrently afterwards.
type Registry struct {
	quote  chain.Token
	tokens *chain.TokenBook
	pairs  map[string]RouteDescriptor
	routes map[RouteType][]string
	pools  map[string]pools.Definition
}

// NewRegistry assembles a registry. Call Validate before serving from it.
func NewRegistry(
	quoteSymbol string,
	tokens *chain.TokenBook,
	pairs map[string]RouteDescriptor,
	routes map[RouteType][]string,
	definitions []pools.Definition,
) (*Registry, error) {
	quote, ok := tokens.BySymbol(quoteSymbol)
	if !ok {
		return nil, fmt.Errorf("quote currency %q: %w", quoteSymbol, chain.ErrUnknownToken)
	}
	defs := make(map[string]pools.Definition, len(definitions))
	for _, d := range definitions {
		if _, dup := defs[d.Key]; dup {
			return nil, fmt.Errorf("duplicate pool key %q", d.Key)
		}
		defs[d.Key] = d
	}
	return &Registry{
		quote:  quote,
		tokens: tokens,
		pairs:  pairs,
		routes: routes,
		pools:  defs,
	}, nil
}

// Resolve looks up the route descriptor of a pair name.
func (r *Registry) Resolve(pair string) (RouteDescriptor, error) {
	d, ok := r.pairs[pair]
	if !ok {
		return RouteDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownPair, pair)
	}
	return d, nil
}

// PoolKeys returns the pool keys of a route type, primary first for left.
func (r *Registry) PoolKeys(t RouteType) ([]string, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: route type %d", ErrInvalidRoute, t)
	}
	keys, ok := r.routes[t]
	if !ok || len(keys) != t.PoolCount() {
		return nil, fmt.Errorf("%w: route type %d has no pools configured", ErrPoolResolution, t)
	}
	return keys, nil
}

func (r *Registry) Definition(key string) (pools.Definition, bool) {
	d, ok := r.pools[key]
	return d, ok
}

func (r *Registry) QuoteToken() chain.Token { return r.quote }

func (r *Registry) Tokens() *chain.TokenBook { return r.tokens }

// Pairs returns the configured pair names in sorted order.
func (r *Registry) Pairs() []string {
	out := make([]string, 0, len(r.pairs))
	for name := range r.pairs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every pair can be served: its route type has the
// right number of pools, each pool is completely defined and trades
// configured tokens, and chained routes meet in the quote currency.
func (r *Registry) Validate() error {
	var errs []error

	used := make(map[RouteType]bool)
	for _, name := range r.Pairs() {
		d := r.pairs[name]
		if !d.Type.Valid() {
			errs = append(errs, fmt.Errorf("pair %s: %w: route type %d", name, ErrInvalidRoute, d.Type))
			continue
		}
		if d.Direction != Left && d.Direction != Right {
			errs = append(errs, fmt.Errorf("pair %s: %w: direction %q", name, ErrInvalidRoute, d.Direction))
		}
		used[d.Type] = true
	}

	types := make([]RouteType, 0, len(used))
	for t := range used {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, t := range types {
		keys, err := r.PoolKeys(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, key := range keys {
			if err := r.validatePool(key); err != nil {
				errs = append(errs, fmt.Errorf("route type %d: %w", t, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) validatePool(key string) error {
	def, ok := r.pools[key]
	if !ok {
		return fmt.Errorf("%w: pool %s is not defined", ErrPoolResolution, key)
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrPoolResolution, err)
	}
	hasQuote := false
	for _, symbol := range []string{def.TokenA, def.TokenB} {
		t, ok := r.tokens.BySymbol(symbol)
		if !ok {
			return fmt.Errorf("%w: pool %s: %w %s", ErrPoolResolution, key, chain.ErrUnknownToken, symbol)
		}
		if t.Mint == r.quote.Mint {
			hasQuote = true
		}
	}
	if !hasQuote {
		return fmt.Errorf("%w: pool %s does not trade the quote currency %s", ErrPoolResolution, key, r.quote.Symbol)
	}
	return nil
}
