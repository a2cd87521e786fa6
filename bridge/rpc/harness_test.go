package rpc_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/zeebo/assert"

	"github.com/zclubweb3/solana-bridge/bridge/assets"
	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/router"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools/orca"
	"github.com/zclubweb3/solana-bridge/bridge/rpc"
	"github.com/zclubweb3/solana-bridge/bridge/wallet"
)

var (
	solToken  = chain.Token{Symbol: "SOL", Mint: solana.SolMint, Decimals: 9, Native: true}
	usdcToken = chain.Token{Symbol: "USDC", Mint: solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"), Decimals: 6}
	autToken  = chain.Token{Symbol: "AUT", Mint: solana.MustPublicKeyFromBase58("AUTeiKm7s4p1qYcxsXaSk6wExJUN7VuNhnoU7eUwgK2H"), Decimals: 6}
	ahtToken  = chain.Token{Symbol: "AHT", Mint: solana.MustPublicKeyFromBase58("AHTYibuZowvxXc5yCzLtjAsAdBzwWemvT1WLjLnpiG1v"), Decimals: 6}

	confirmedSignature = solana.Signature{7, 7, 7}
)

// cluster is a JSON-RPC endpoint answering the calls the bridge makes.
type cluster struct {
	mu       sync.Mutex
	reserves map[solana.PublicKey]uint64
	lamports uint64
	failTx   bool
	sent     atomic.Int64
	methods  map[string]int
}

func newCluster() *cluster {
	return &cluster{
		reserves: map[solana.PublicKey]uint64{},
		lamports: 1_500_000_000,
		methods:  map[string]int{},
	}
}

func (c *cluster) called(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.methods[method]
}

func (c *cluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.methods[req.Method]++
	c.mu.Unlock()

	rpcCtx := map[string]any{"slot": 100}
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "getLatestBlockhash":
		resp["result"] = map[string]any{
			"context": rpcCtx,
			"value":   map[string]any{"blockhash": solana.Hash{1}.String(), "lastValidBlockHeight": 200},
		}
	case "sendTransaction":
		c.sent.Add(1)
		resp["result"] = confirmedSignature.String()
	case "getSignatureStatuses":
		status := map[string]any{"slot": 100, "confirmations": nil, "err": nil, "confirmationStatus": "confirmed"}
		if c.failTx {
			status["err"] = map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 1}}}
		}
		resp["result"] = map[string]any{"context": rpcCtx, "value": []any{status}}
	case "getBalance":
		resp["result"] = map[string]any{"context": rpcCtx, "value": c.lamports}
	case "getTokenAccountsByOwner":
		resp["result"] = map[string]any{"context": rpcCtx, "value": []any{}}
	case "getAccountInfo":
		resp["result"] = map[string]any{"context": rpcCtx, "value": nil}
	case "getMinimumBalanceForRentExemption":
		resp["result"] = 2039280
	case "getMultipleAccounts":
		var keys []string
		_ = json.Unmarshal(req.Params[0], &keys)
		values := make([]any, len(keys))
		for i, k := range keys {
			c.mu.Lock()
			amount, ok := c.reserves[solana.MustPublicKeyFromBase58(k)]
			c.mu.Unlock()
			if !ok {
				values[i] = nil
				continue
			}
			data := make([]byte, chain.TokenAccountSize)
			binary.LittleEndian.PutUint64(data[64:72], amount)
			data[108] = 1
			values[i] = map[string]any{
				"lamports":   2039280,
				"owner":      solana.TokenProgramID.String(),
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
				"rentEpoch":  0,
				"space":      chain.TokenAccountSize,
			}
		}
		resp["result"] = map[string]any{"context": rpcCtx, "value": values}
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// recordingWatcher stands in for the websocket watcher.
type recordingWatcher struct {
	mu       sync.Mutex
	endpoint string
	accounts []solana.PublicKey
	onChange func(ctx context.Context)
	watches  int
}

func (w *recordingWatcher) Watch(endpoint string, accounts []solana.PublicKey, onChange func(ctx context.Context)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.endpoint = endpoint
	w.accounts = accounts
	w.onChange = onChange
	w.watches++
	return nil
}

func (w *recordingWatcher) Stop() {}

func (w *recordingWatcher) fire() {
	w.mu.Lock()
	fn := w.onChange
	w.mu.Unlock()
	fn(context.Background())
}

type harness struct {
	cluster    *cluster
	clusterURL string
	gateway    *chain.Gateway
	watcher    *recordingWatcher
	bridge     *rpc.Bridge
	handler    http.Handler
	vaults     map[string][2]solana.PublicKey
}

func poolDefinition(key, tokenA, tokenB string, vaultA, vaultB solana.PublicKey) pools.Definition {
	addr := func() string { return solana.NewWallet().PublicKey().String() }
	return pools.Definition{
		Key:                 key,
		Venue:               pools.VenueOrcaTokenSwap,
		ProgramID:           "9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP",
		Address:             addr(),
		Authority:           addr(),
		TokenA:              tokenA,
		TokenB:              tokenB,
		VaultA:              vaultA.String(),
		VaultB:              vaultB.String(),
		PoolMint:            addr(),
		FeeAccount:          addr(),
		TradeFeeNumerator:   25,
		TradeFeeDenominator: 10000,
		OwnerFeeNumerator:   5,
		OwnerFeeDenominator: 10000,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cl := newCluster()
	srv := httptest.NewServer(cl)
	t.Cleanup(srv.Close)

	// starts on an unreachable endpoint, initWallet points it at the cluster
	gw := chain.NewGateway(chain.Config{
		RPCURL:         "http://127.0.0.1:1",
		ConfirmTimeout: 500 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	})

	book, err := chain.NewTokenBook([]chain.Token{solToken, usdcToken, autToken, ahtToken})
	assert.NoError(t, err)

	vaults := map[string][2]solana.PublicKey{}
	var defs []pools.Definition
	for _, p := range []struct{ key, a, b string }{
		{"SOL_USDC", "SOL", "USDC"},
		{"AUT_USDC", "AUT", "USDC"},
		{"AHT_USDC", "AHT", "USDC"},
	} {
		va, vb := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
		vaults[p.key] = [2]solana.PublicKey{va, vb}
		defs = append(defs, poolDefinition(p.key, p.a, p.b, va, vb))
	}
	// 1000 AUT against 2000 USDC
	cl.reserves[vaults["AUT_USDC"][0]] = 1_000_000_000
	cl.reserves[vaults["AUT_USDC"][1]] = 2_000_000_000
	// 1000 SOL against 20000 USDC
	cl.reserves[vaults["SOL_USDC"][0]] = 1000_000_000_000
	cl.reserves[vaults["SOL_USDC"][1]] = 20000_000_000
	cl.reserves[vaults["AHT_USDC"][0]] = 1_000_000_000
	cl.reserves[vaults["AHT_USDC"][1]] = 4_000_000_000

	pairs := map[string]router.RouteDescriptor{
		"SOL-USDC": {Type: router.RouteSolUSDC, Direction: router.Left},
		"USDC-SOL": {Type: router.RouteSolUSDC, Direction: router.Right},
		"AUT-USDC": {Type: router.RouteAutUSDC, Direction: router.Left},
		"USDC-AUT": {Type: router.RouteAutUSDC, Direction: router.Right},
		"AUT-SOL":  {Type: router.RouteAutSol, Direction: router.Left},
		"SOL-AUT":  {Type: router.RouteAutSol, Direction: router.Right},
	}
	routes := map[router.RouteType][]string{
		router.RouteSolUSDC: {"SOL_USDC"},
		router.RouteAutUSDC: {"AUT_USDC"},
		router.RouteAhtUSDC: {"AHT_USDC"},
		router.RouteAutSol:  {"SOL_USDC", "AUT_USDC"},
	}
	registry, err := router.NewRegistry("USDC", book, pairs, routes, defs)
	assert.NoError(t, err)
	assert.NoError(t, registry.Validate())

	owner := wallet.NewContext()
	resolver := router.NewResolver(registry, orca.NewVenue(gw, book))
	rt := router.NewRouter(registry, resolver, owner, gw, router.WithQuoteRetry(0, 0))
	facade := assets.NewFacade(gw, owner, book,
		assets.WithSpendingWallet(solana.MustPublicKeyFromBase58("ZCLUB6ueX9iALVEeNPVWQyrgTqvWAHcxozJP2ea2YcC")))

	watcher := &recordingWatcher{}
	bridge := rpc.NewBridge(rpc.Dependencies{
		Endpoint: gw,
		Wallet:   owner,
		Router:   rt,
		Assets:   facade,
		Watcher:  watcher,
		Hub:      rpc.NewEventHub(),
	})

	cfg := rpc.DefaultServerConfig()
	cfg.OTelConfig = nil
	cfg.EnableMetrics = false
	server, err := rpc.NewServer(context.Background(), cfg, bridge)
	assert.NoError(t, err)

	return &harness{
		cluster:    cl,
		clusterURL: srv.URL,
		gateway:    gw,
		watcher:    watcher,
		bridge:     bridge,
		handler:    server.Handler(),
		vaults:     vaults,
	}
}

// call posts a bridge method and decodes the response body into out.
func (h *harness) call(t *testing.T, method string, params any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if params != nil {
		var err error
		body, err = json.Marshal(params)
		assert.NoError(t, err)
	}
	req := httptest.NewRequest(http.MethodPost, "/bridge/"+method, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if out != nil {
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (h *harness) initWallet(t *testing.T) solana.PrivateKey {
	t.Helper()
	key := solana.NewWallet().PrivateKey
	rec := h.call(t, "initWallet", map[string]string{"private_key": key.String(), "url": h.clusterURL}, nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	return key
}
