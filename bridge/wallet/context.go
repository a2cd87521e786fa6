package wallet

import (
	"errors"
	"os"
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "wallet").Logger()
}

var ErrNoOwner = errors.New("no wallet initialised")

// Context holds the identity set by the last successful initWallet. It is
// replaced wholesale and never merged with the previous one.
type Context struct {
	mu       sync.RWMutex
	identity *Identity
}

func NewContext() *Context { return &Context{} }

// Replace installs id as the active identity.
func (c *Context) Replace(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &id
	log.Info().Str("address", id.PublicKey.String()).Msg("Wallet identity replaced")
}

// Owner returns the active identity.
func (c *Context) Owner() (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return Identity{}, false
	}
	return *c.identity, true
}

// Signer returns the secret key of the active identity.
func (c *Context) Signer() (solana.PrivateKey, bool) {
	id, ok := c.Owner()
	if !ok {
		return nil, false
	}
	return id.SecretKey, true
}
