package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/pelletier/go-toml/v2"

	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

// ExchangeLoader loads the exchange registry (tokens, pools, route types and
// pairs) and converts it to the router types used by the bridge.
type ExchangeLoader struct{}

func NewExchangeLoader() *ExchangeLoader {
	return &ExchangeLoader{}
}

// LoadFromFile reads a TOML or JSON exchange file and returns a validated
// registry. A registry that cannot serve every configured pair is an error.
func (l *ExchangeLoader) LoadFromFile(filePath string) (*router.Registry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange config file: %w", err)
	}

	var file ExchangeFile
	if strings.HasSuffix(filePath, ".json") {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}

	return l.ConvertToRegistry(&file)
}

// ConvertToRegistry builds the token book and registry and validates them.
func (l *ExchangeLoader) ConvertToRegistry(file *ExchangeFile) (*router.Registry, error) {
	if file == nil || len(file.Tokens) == 0 {
		return nil, fmt.Errorf("no tokens in exchange config")
	}
	if file.QuoteCurrency == "" {
		return nil, fmt.Errorf("quote_currency is required")
	}

	tokens := make([]chain.Token, len(file.Tokens))
	for i, t := range file.Tokens {
		mint, err := solana.PublicKeyFromBase58(t.Mint)
		if err != nil {
			return nil, fmt.Errorf("token %s: invalid mint %q: %w", t.Symbol, t.Mint, err)
		}
		tokens[i] = chain.Token{Symbol: t.Symbol, Mint: mint, Decimals: t.Decimals, Native: t.Native}
	}
	book, err := chain.NewTokenBook(tokens)
	if err != nil {
		return nil, err
	}

	defs := make([]pools.Definition, len(file.Pools))
	for i, p := range file.Pools {
		venue := p.Venue
		if venue == "" {
			venue = pools.VenueOrcaTokenSwap
		}
		defs[i] = pools.Definition{
			Key:                 p.Key,
			Venue:               venue,
			ProgramID:           p.ProgramID,
			Address:             p.Address,
			Authority:           p.Authority,
			TokenA:              p.TokenA,
			TokenB:              p.TokenB,
			VaultA:              p.VaultA,
			VaultB:              p.VaultB,
			PoolMint:            p.PoolMint,
			FeeAccount:          p.FeeAccount,
			TradeFeeNumerator:   p.TradeFeeNumerator,
			TradeFeeDenominator: p.TradeFeeDenominator,
			OwnerFeeNumerator:   p.OwnerFeeNumerator,
			OwnerFeeDenominator: p.OwnerFeeDenominator,
		}
	}

	routes := make(map[router.RouteType][]string, len(file.Routes))
	for _, r := range file.Routes {
		t := router.RouteType(r.Type)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: route type %d", router.ErrInvalidRoute, r.Type)
		}
		if _, dup := routes[t]; dup {
			return nil, fmt.Errorf("route type %d is configured twice", r.Type)
		}
		routes[t] = r.Pools
	}

	pairs := make(map[string]router.RouteDescriptor, len(file.Pairs))
	for name, p := range file.Pairs {
		dir, err := router.ParseDirection(p.Dir)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", name, err)
		}
		pairs[name] = router.RouteDescriptor{Type: router.RouteType(p.Type), Direction: dir}
	}

	registry, err := router.NewRegistry(file.QuoteCurrency, book, pairs, routes, defs)
	if err != nil {
		return nil, err
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid exchange config: %w", err)
	}
	return registry, nil
}
