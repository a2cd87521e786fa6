// Package wallet derives Solana keypairs from mnemonics or exported private
// keys and holds the identity the bridge signs with.
package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/pkg/hdwallet"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/btcsuite/btcutil/base58"
	solana "github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

const (
	// DerivationPath is the first account of the Solana BIP44 tree.
	DerivationPath = "m/44'/501'/0'/0'"
	Coin           = "SOL"

	mnemonicEntropyBits = 128
)

var (
	ErrInvalidMnemonic   = errors.New("invalid mnemonic")
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// Account is a derived keypair in the form the host stores it.
type Account struct {
	Address    string
	PrivateKey string
	Coin       string
	identity   Identity
}

func (a *Account) Identity() Identity { return a.identity }

// Identity is the signing keypair of the active wallet.
type Identity struct {
	PublicKey solana.PublicKey
	SecretKey solana.PrivateKey
}

// NewMnemonic returns a fresh 12 word English mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// WordList returns the BIP39 English word list.
func WordList() []string {
	return bip39.GetWordList()
}

// AccountFromMnemonic derives the account at DerivationPath.
func AccountFromMnemonic(mnemonic string) (*Account, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	derived, err := hdwallet.Derived(DerivationPath, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive %s: %w", DerivationPath, err)
	}
	acc, err := types.AccountFromSeed(derived.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build keypair: %w", err)
	}
	return newAccount(acc), nil
}

// AccountFromPrivateKey imports a base58 encoded 64 byte secret key.
func AccountFromPrivateKey(privateKey string) (*Account, error) {
	raw := base58.Decode(strings.TrimSpace(privateKey))
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, ed25519.PrivateKeySize, len(raw))
	}
	acc, err := types.AccountFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	// the trailing half of a secret key is its public key
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !derived.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidPrivateKey)
	}
	return newAccount(acc), nil
}

func newAccount(acc types.Account) *Account {
	secret := solana.PrivateKey(append([]byte(nil), acc.PrivateKey...))
	return &Account{
		Address:    acc.PublicKey.ToBase58(),
		PrivateKey: base58.Encode(acc.PrivateKey),
		Coin:       Coin,
		identity: Identity{
			PublicKey: secret.PublicKey(),
			SecretKey: secret,
		},
	}
}
