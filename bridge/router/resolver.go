package router

import (
	"context"
	"fmt"

	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
)

// Resolver opens the pool handles of a route.
type Resolver struct {
	registry *Registry
	opener   pools.Opener
}

func NewResolver(registry *Registry, opener pools.Opener) *Resolver {
	return &Resolver{registry: registry, opener: opener}
}

// ResolvePools opens the pools of route. For chained routes the first
// configured pool is the primary when trading left and the secondary when
// trading right.
func (r *Resolver) ResolvePools(ctx context.Context, route RouteDescriptor) (Pools, error) {
	keys, err := r.registry.PoolKeys(route.Type)
	if err != nil {
		return Pools{}, err
	}

	handles := make([]pools.PoolHandle, len(keys))
	for i, key := range keys {
		def, ok := r.registry.Definition(key)
		if !ok {
			return Pools{}, fmt.Errorf("%w: pool %s is not defined", ErrPoolResolution, key)
		}
		if err := def.Validate(); err != nil {
			return Pools{}, fmt.Errorf("%w: %w", ErrPoolResolution, err)
		}
		h, err := r.opener.Open(ctx, def)
		if err != nil {
			return Pools{}, fmt.Errorf("%w: %w", ErrPoolResolution, err)
		}
		handles[i] = h
	}

	if !route.Type.Chained() {
		return Pools{Primary: handles[0]}, nil
	}
	if route.Direction == Right {
		return Pools{Primary: handles[1], Secondary: handles[0]}, nil
	}
	return Pools{Primary: handles[0], Secondary: handles[1]}, nil
}
