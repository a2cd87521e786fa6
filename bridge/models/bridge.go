package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// FlexInt accepts both 3 and "3" in JSON, as the host sends either. Valid is
// false when the field is absent, null or an empty string.
type FlexInt struct {
	Int   int
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = FlexInt{}
		return nil
	}
	data = bytes.TrimSpace(bytes.Trim(data, `"`))
	if len(data) == 0 {
		*f = FlexInt{}
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("expected an integer, got %q", string(data))
	}
	*f = FlexInt{Int: n, Valid: true}
	return nil
}

// MnemonicRequest - POST body of createdAccount
type MnemonicRequest struct {
	Mnemonic string `json:"mnemonic"` // 12 space separated words
}

// ImportAccountRequest - POST body of importAccount
type ImportAccountRequest struct {
	PrivateKey string `json:"private_key"` // base58 of the 64 byte secret key
}

// InitWalletRequest - POST body of initWallet
type InitWalletRequest struct {
	PrivateKey string `json:"private_key"`   // base58 of the 64 byte secret key
	URL        string `json:"url,omitempty"` // optional RPC endpoint to switch to
}

// TransferRequest - POST body of transfer
type TransferRequest struct {
	Type      string           `json:"type"`              // "SOL", a token symbol such as "AUT", or "XNFT"
	ToAddress string           `json:"toAddress"`         // recipient wallet
	Amount    *decimal.Decimal `json:"amount,omitempty"`  // human units, ignored for NFTs
	TokenID   string           `json:"tokenId,omitempty"` // NFT mint
	Dir       string           `json:"dir,omitempty"`     // "in" signs without sending
}

// SwapRequest - POST body of swap
type SwapRequest struct {
	Type     FlexInt          `json:"type"`               // route type 0..5
	Dir      string           `json:"dir"`                // "left" or "right"
	Amount   decimal.Decimal  `json:"amount"`             // human units of the token sold
	Slippage *decimal.Decimal `json:"slippage,omitempty"` // percent, 0.5 if omitted
}

// PriceRequest - POST body of getPrice
type PriceRequest struct {
	Type   FlexInt          `json:"type"`
	Amount *decimal.Decimal `json:"amount,omitempty"` // 1 if omitted
	Dir    string           `json:"dir,omitempty"`
}

// FeeRequest - POST body of getFee
type FeeRequest struct {
	Type FlexInt `json:"type"`
}

// BalanceRequest - POST body of getBalance
type BalanceRequest struct {
	Name         string `json:"name"`          // "SOL" or a token symbol
	TokenAddress string `json:"token_address"` // mint of the token
}

// AddressRequest - POST body of getAllToken
type AddressRequest struct {
	Address string `json:"address"`
}

// SpendingTransferRequest - POST body of signTransferToSpending
type SpendingTransferRequest struct {
	AssetName    string          `json:"asset_name"`    // "SOL" or a token symbol
	TokenAddress string          `json:"token_address"` // mint of the token
	Amount       decimal.Decimal `json:"amount"`
}

// CoinTransferRequest - POST body of transferToCoin
type CoinTransferRequest struct {
	CoinName      string          `json:"coin_name"`
	TokenAddress  string          `json:"token_address"`
	WalletAddress string          `json:"wallet_address"` // recipient
	Amount        decimal.Decimal `json:"amount"`
}

// TradeRequest - POST body of calcTradeTokenAmount and tradeToken
type TradeRequest struct {
	FromCoin  string           `json:"from_coin"` // e.g. "AUT"
	ToCoin    string           `json:"to_coin"`   // e.g. "USDC"
	Amount    decimal.Decimal  `json:"amount"`
	Tolerance *decimal.Decimal `json:"tolerance,omitempty"` // percent, 0.5 if omitted
}

// MnemonicResponse is returned by createdMnemonic
type MnemonicResponse struct {
	Mnemonics string `json:"mnemonics"`
	Coin      string `json:"coin"`
}

// WordListResponse is returned by getMnemonicWordList
type WordListResponse struct {
	Words []string `json:"mnemonics_word_list"`
}

// AccountResponse is returned by createdAccount and importAccount
type AccountResponse struct {
	Address    string `json:"address"`
	Coin       string `json:"coin"`
	PrivateKey string `json:"private_key"`
}

// TransferResponse carries either the id of a confirmed transaction or, in
// sign-only mode, the signed transaction for the host to forward.
type TransferResponse struct {
	Transaction     string `json:"transaction,omitempty"`
	Name            string `json:"name,omitempty"`
	TokenAddress    string `json:"token_address,omitempty"`
	TransactionSign string `json:"transaction_sign,omitempty"` // base64 wire transaction
}

// SwapResponse is returned by swap and tradeToken
type SwapResponse struct {
	Swap string `json:"swap"` // transaction signature
}

// PriceResponse is returned by getPrice
type PriceResponse struct {
	TokenA string `json:"tokenA"`
	TokenB string `json:"tokenB"`
	Type   int    `json:"type"`
}

// FeeResponse is returned by getFee
type FeeResponse struct {
	Fee string `json:"fee"`
}

// BalanceResponse is returned by getBalance
type BalanceResponse struct {
	Name         string `json:"name"`
	Asset        string `json:"asset"` // human amount
	TokenAddress string `json:"token_address"`
	Icon         string `json:"icon"`
}

// CoinInfo is one entry of the coin list
type CoinInfo struct {
	Name         string `json:"name"`
	Asset        string `json:"asset"`
	TokenAddress string `json:"token_address"`
	Icon         string `json:"icon"`
	Fee          string `json:"fee"` // network fee estimate in SOL
}

// CoinListResponse is returned by getCoinList and pushed on asset changes
type CoinListResponse struct {
	Coins []CoinInfo `json:"coins"`
	NFT   []CoinInfo `json:"nft"`
}

// TokenAmount is one token account in the getAllToken listing
type TokenAmount struct {
	Account string `json:"account"`
	Mint    string `json:"mint"`
	Symbol  string `json:"symbol,omitempty"` // empty for mints the bridge does not know
	Amount  string `json:"amount"`
}

// SolBalanceResponse is returned by getSolBalance
type SolBalanceResponse struct {
	SOL string `json:"SOL"`
}

// TradeAmountResponse is returned by calcTradeTokenAmount
type TradeAmountResponse struct {
	FromCoin string `json:"from_coin"`
	ToCoin   string `json:"to_coin"`
	Amount   string `json:"amount"`
	TokenA   string `json:"tokenA"`
	TokenB   string `json:"tokenB"`
}

// ErrorResponse is the payload of every failure event
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"` // e.g. "UNKNOWN_PAIR", "NO_OWNER"
}

// DecodeParams unmarshals a request body into v. An empty body leaves v at
// its zero value.
func DecodeParams(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}
