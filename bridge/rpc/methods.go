package rpc

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/zclubweb3/solana-bridge/bridge/assets"
	"github.com/zclubweb3/solana-bridge/bridge/models"
	"github.com/zclubweb3/solana-bridge/bridge/router"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools"
	"github.com/zclubweb3/solana-bridge/bridge/wallet"
)

// EventWalletAssetChanged is pushed with a fresh coin list whenever a
// watched account of the active wallet changes.
const EventWalletAssetChanged = "onWalletAssetChanged"

// Endpoint is the shared connection initWallet may point elsewhere.
type Endpoint interface {
	Reconfigure(rpcURL string)
	WebsocketURL() string
}

// AccountWatcher reports changes of the active wallet's accounts.
type AccountWatcher interface {
	Watch(endpoint string, accounts []solana.PublicKey, onChange func(ctx context.Context)) error
	Stop()
}

type Dependencies struct {
	Endpoint Endpoint
	Wallet   *wallet.Context
	Router   *router.Router
	Assets   *assets.Facade
	Watcher  AccountWatcher
	Hub      *EventHub
}

type method struct {
	event string
	call  func(ctx context.Context, body []byte) (any, error)
}

// Bridge is the dispatch table of host calls. Every call yields exactly one
// models.Result, which Invoke publishes before handing it back.
type Bridge struct {
	deps    Dependencies
	initMu  sync.Mutex
	methods map[string]method
}

func NewBridge(deps Dependencies) *Bridge {
	if deps.Hub == nil {
		deps.Hub = NewEventHub()
	}
	b := &Bridge{deps: deps}
	b.methods = map[string]method{
		"createdMnemonic":        {"onCreateMnemonics", bind(b.createdMnemonic)},
		"getMnemonicWordList":    {"onGetMnemonicWordList", bind(b.getMnemonicWordList)},
		"createdAccount":         {"onCreateAccount", bind(b.createdAccount)},
		"importAccount":          {"onImportAccount", bind(b.importAccount)},
		"initWallet":             {"onInitWallet", bind(b.initWallet)},
		"transfer":               {"onTransfer", bind(b.transfer)},
		"swap":                   {"onSwap", bind(b.swap)},
		"getPrice":               {"onGetPrice", bind(b.getPrice)},
		"getFee":                 {"onGetFee", bind(b.getFee)},
		"getBalance":             {"onGetBalance", bind(b.getBalance)},
		"getCoinList":            {"onGetCoinList", bind(b.getCoinList)},
		"getAllToken":            {"onGetAllToken", bind(b.getAllToken)},
		"getTokenBalance":        {"onGetTokenBalance", bind(b.getTokenBalance)},
		"getSolBalance":          {"onGetSolBalance", bind(b.getSolBalance)},
		"signTransferToSpending": {"onSignTransferToSpending", bind(b.signTransferToSpending)},
		"transferToCoin":         {"onTransferToCoin", bind(b.transferToCoin)},
		"calcTradeTokenAmount":   {"onCalcTradeTokenAmount", bind(b.calcTradeTokenAmount)},
		"tradeToken":             {"onTradeToken", bind(b.tradeToken)},
	}
	return b
}

// bind decodes the JSON body into the request type of fn.
func bind[T any](fn func(ctx context.Context, req T) (any, error)) func(context.Context, []byte) (any, error) {
	return func(ctx context.Context, body []byte) (any, error) {
		var req T
		if err := models.DecodeParams(body, &req); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidRequest, err)
		}
		return fn(ctx, req)
	}
}

func (b *Bridge) Hub() *EventHub { return b.deps.Hub }

// Methods lists the names of every bridge method.
func (b *Bridge) Methods() []string {
	names := make([]string, 0, len(b.methods))
	for name := range b.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bridge) Has(name string) bool {
	_, ok := b.methods[name]
	return ok
}

// Call runs one bridge method. Errors and panics become failure results.
func (b *Bridge) Call(ctx context.Context, name string, body []byte) (result models.Result) {
	m, ok := b.methods[name]
	if !ok {
		return models.Failure("on"+name, "UNKNOWN_METHOD", fmt.Errorf("%w: %s", errUnknownMethod, name))
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			Logger.Error().Interface("panic", p).Str("method", name).Msg("Panic in bridge method")
			result = models.Failure(m.event, "INTERNAL", fmt.Errorf("internal error"))
		}
		code := "OK"
		if result.Failed {
			code = result.Data.(models.ErrorResponse).Code
		}
		callsTotal.WithLabelValues(name, code).Inc()
		callDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	data, err := m.call(ctx, body)
	if err != nil {
		code, _ := classify(err)
		Logger.Warn().Err(err).Str("method", name).Str("code", code).Msg("Bridge call failed")
		return models.Failure(m.event, code, err)
	}
	return models.Success(m.event, data)
}

// Invoke runs a method and publishes its result to the event stream.
func (b *Bridge) Invoke(ctx context.Context, name string, body []byte) models.Result {
	result := b.Call(ctx, name, body)
	b.deps.Hub.Publish(result)
	return result
}

func (b *Bridge) createdMnemonic(_ context.Context, _ struct{}) (any, error) {
	mnemonic, err := wallet.NewMnemonic()
	if err != nil {
		return nil, err
	}
	return models.MnemonicResponse{Mnemonics: mnemonic, Coin: wallet.Coin}, nil
}

func (b *Bridge) getMnemonicWordList(_ context.Context, _ struct{}) (any, error) {
	return models.WordListResponse{Words: wallet.WordList()}, nil
}

func (b *Bridge) createdAccount(_ context.Context, req models.MnemonicRequest) (any, error) {
	if err := validateRequired("mnemonic", req.Mnemonic); err != nil {
		return nil, err
	}
	acc, err := wallet.AccountFromMnemonic(req.Mnemonic)
	if err != nil {
		return nil, err
	}
	return accountResponse(acc), nil
}

func (b *Bridge) importAccount(_ context.Context, req models.ImportAccountRequest) (any, error) {
	if err := validateRequired("private_key", req.PrivateKey); err != nil {
		return nil, err
	}
	acc, err := wallet.AccountFromPrivateKey(req.PrivateKey)
	if err != nil {
		return nil, err
	}
	return accountResponse(acc), nil
}

func accountResponse(acc *wallet.Account) models.AccountResponse {
	return models.AccountResponse{Address: acc.Address, Coin: acc.Coin, PrivateKey: acc.PrivateKey}
}

// initWallet switches the endpoint when a url is given, installs the new
// identity and re-registers the account subscriptions. Concurrent calls are
// applied one after the other.
func (b *Bridge) initWallet(ctx context.Context, req models.InitWalletRequest) (any, error) {
	if err := validateRequired("private_key", req.PrivateKey); err != nil {
		return nil, err
	}
	acc, err := wallet.AccountFromPrivateKey(req.PrivateKey)
	if err != nil {
		return nil, err
	}
	if req.URL != "" {
		if u, err := url.Parse(req.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("%w: url %q", errInvalidRequest, req.URL)
		}
	}

	b.initMu.Lock()
	defer b.initMu.Unlock()

	if req.URL != "" {
		b.deps.Endpoint.Reconfigure(req.URL)
	}
	b.deps.Wallet.Replace(acc.Identity())
	b.watchAssets(ctx, acc.Identity().PublicKey)
	return struct{}{}, nil
}

// watchAssets subscribes to the owner and its token accounts. Subscription
// trouble is logged and does not fail initWallet.
func (b *Bridge) watchAssets(ctx context.Context, owner solana.PublicKey) {
	if b.deps.Watcher == nil {
		return
	}
	accounts := []solana.PublicKey{owner}
	holdings, err := b.deps.Assets.TokenAccounts(ctx)
	if err != nil {
		Logger.Warn().Err(err).Msg("Could not list token accounts, watching the owner only")
	}
	for _, h := range holdings {
		accounts = append(accounts, h.Account)
	}

	err = b.deps.Watcher.Watch(b.deps.Endpoint.WebsocketURL(), accounts, b.publishCoinList)
	if err != nil {
		Logger.Warn().Err(err).Str("owner", owner.String()).Msg("Asset change notifications unavailable")
	}
}

func (b *Bridge) publishCoinList(ctx context.Context) {
	coins, err := b.deps.Assets.CoinList(ctx)
	if err != nil {
		code, _ := classify(err)
		b.deps.Hub.Publish(models.Failure(EventWalletAssetChanged, code, err))
		return
	}
	b.deps.Hub.Publish(models.Success(EventWalletAssetChanged, coins))
}

func (b *Bridge) transfer(ctx context.Context, req models.TransferRequest) (any, error) {
	if err := validateAddress("toAddress", req.ToAddress); err != nil {
		return nil, err
	}
	spec, err := assets.ParseSpec(b.deps.Assets.Tokens(), req)
	if err != nil {
		return nil, err
	}
	return b.deps.Assets.Transfer(ctx, spec)
}

func (b *Bridge) swap(ctx context.Context, req models.SwapRequest) (any, error) {
	route, err := routeOf(req.Type, req.Dir)
	if err != nil {
		return nil, err
	}
	slippage, err := slippageOf(req.Slippage)
	if err != nil {
		return nil, err
	}
	res := b.deps.Router.Swap(ctx, route, req.Amount, slippage)
	if res.Err != nil {
		return nil, res.Err
	}
	return models.SwapResponse{Swap: res.TransactionID}, nil
}

func (b *Bridge) getPrice(ctx context.Context, req models.PriceRequest) (any, error) {
	route, err := routeOf(req.Type, req.Dir)
	if err != nil {
		return nil, err
	}
	amount := decimal.NewFromInt(1)
	if req.Amount != nil {
		amount = *req.Amount
	}
	price, err := b.deps.Router.Price(ctx, route, amount)
	if err != nil {
		return nil, err
	}
	return models.PriceResponse{
		TokenA: price.TokenA.String(),
		TokenB: price.TokenB.String(),
		Type:   int(price.Type),
	}, nil
}

func (b *Bridge) getFee(ctx context.Context, req models.FeeRequest) (any, error) {
	routeType, err := routeTypeOf(req.Type)
	if err != nil {
		return nil, err
	}
	fee, err := b.deps.Router.Fee(ctx, routeType)
	if err != nil {
		return nil, err
	}
	return models.FeeResponse{Fee: fee.String()}, nil
}

func (b *Bridge) getBalance(ctx context.Context, req models.BalanceRequest) (any, error) {
	if err := validateRequired("name", req.Name); err != nil {
		return nil, err
	}
	return b.deps.Assets.Balance(ctx, req.Name, req.TokenAddress)
}

func (b *Bridge) getCoinList(ctx context.Context, _ struct{}) (any, error) {
	return b.deps.Assets.CoinList(ctx)
}

// getAllToken lists the token accounts of address, or of the active wallet
// when no address is given.
func (b *Bridge) getAllToken(ctx context.Context, req models.AddressRequest) (any, error) {
	address := req.Address
	if address == "" {
		id, ok := b.deps.Wallet.Owner()
		if !ok {
			return nil, wallet.ErrNoOwner
		}
		address = id.PublicKey.String()
	}
	if err := validateAddress("address", address); err != nil {
		return nil, err
	}
	return b.deps.Assets.AllTokens(ctx, address)
}

// getTokenBalance returns mint → amount for every mint the wallet holds.
func (b *Bridge) getTokenBalance(ctx context.Context, _ struct{}) (any, error) {
	raw, err := b.deps.Assets.TokenBalances(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for mint, amount := range raw {
		out[mint] = strconv.FormatUint(amount, 10)
		if pk, err := solana.PublicKeyFromBase58(mint); err == nil {
			if tok, ok := b.deps.Assets.Tokens().ByMint(pk); ok {
				out[mint] = tok.FromUnits(amount).String()
			}
		}
	}
	return out, nil
}

func (b *Bridge) getSolBalance(ctx context.Context, _ struct{}) (any, error) {
	amount, err := b.deps.Assets.NativeBalance(ctx)
	if err != nil {
		return nil, err
	}
	return models.SolBalanceResponse{SOL: amount.String()}, nil
}

func (b *Bridge) signTransferToSpending(ctx context.Context, req models.SpendingTransferRequest) (any, error) {
	if err := validateRequired("asset_name", req.AssetName); err != nil {
		return nil, err
	}
	if err := validateOptionalAddress("token_address", req.TokenAddress); err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	return b.deps.Assets.SignTransferToSpending(ctx, req.AssetName, req.TokenAddress, req.Amount)
}

func (b *Bridge) transferToCoin(ctx context.Context, req models.CoinTransferRequest) (any, error) {
	if err := validateRequired("coin_name", req.CoinName); err != nil {
		return nil, err
	}
	if err := validateAddress("wallet_address", req.WalletAddress); err != nil {
		return nil, err
	}
	if err := validateOptionalAddress("token_address", req.TokenAddress); err != nil {
		return nil, err
	}
	return b.deps.Assets.TransferToCoin(ctx, req.CoinName, req.TokenAddress, req.WalletAddress, req.Amount)
}

func (b *Bridge) calcTradeTokenAmount(ctx context.Context, req models.TradeRequest) (any, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	trade, err := b.deps.Router.CalcTradeAmount(ctx, req.FromCoin, req.ToCoin, req.Amount)
	if err != nil {
		return nil, err
	}
	return models.TradeAmountResponse{
		FromCoin: trade.FromCoin,
		ToCoin:   trade.ToCoin,
		Amount:   trade.Amount.String(),
		TokenA:   trade.TokenA.String(),
		TokenB:   trade.TokenB.String(),
	}, nil
}

func (b *Bridge) tradeToken(ctx context.Context, req models.TradeRequest) (any, error) {
	tolerance := pools.DefaultTolerance
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}
	res := b.deps.Router.TradeToken(ctx, req.FromCoin, req.ToCoin, req.Amount, tolerance)
	if res.Err != nil {
		return nil, res.Err
	}
	return models.SwapResponse{Swap: res.TransactionID}, nil
}

func routeOf(t models.FlexInt, dir string) (router.RouteDescriptor, error) {
	routeType, err := routeTypeOf(t)
	if err != nil {
		return router.RouteDescriptor{}, err
	}
	direction, err := router.ParseDirection(dir)
	if err != nil {
		return router.RouteDescriptor{}, err
	}
	return router.RouteDescriptor{Type: routeType, Direction: direction}, nil
}

// routeTypeOf refuses a missing type rather than reading it as route 0.
func routeTypeOf(t models.FlexInt) (router.RouteType, error) {
	if !t.Valid {
		return 0, fmt.Errorf("%w: route type is required", router.ErrInvalidRoute)
	}
	routeType := router.RouteType(t.Int)
	if !routeType.Valid() {
		return 0, fmt.Errorf("%w: route type %d", router.ErrInvalidRoute, t.Int)
	}
	return routeType, nil
}

func slippageOf(tolerance *decimal.Decimal) (pools.Percentage, error) {
	t := pools.DefaultTolerance
	if tolerance != nil {
		t = *tolerance
	}
	p, err := pools.FromTolerance(t)
	if err != nil {
		return pools.Percentage{}, fmt.Errorf("%w: %w", router.ErrBadSlippage, err)
	}
	return p, nil
}
