// Package watcher subscribes to account changes of the active wallet and
// reports them so the host can refresh its asset view.
package watcher

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "watcher").Logger()
}

// Subscription yields one notification per account change.
type Subscription interface {
	Recv(ctx context.Context) error
	Unsubscribe()
}

// Dialer opens account subscriptions on a pubsub endpoint.
type Dialer interface {
	Subscribe(ctx context.Context, endpoint string, account solana.PublicKey) (Subscription, error)
	Close()
}

// Watcher runs one goroutine per watched account. Watch replaces whatever
// was being watched before.
type Watcher struct {
	mu       sync.Mutex
	newDial  func() Dialer
	dialer   Dialer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce time.Duration
}

type Option func(*Watcher)

// WithDialer replaces the websocket dialer.
func WithDialer(newDial func() Dialer) Option {
	return func(w *Watcher) { w.newDial = newDial }
}

// WithDebounce collapses bursts of changes into one callback.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

func New(opts ...Option) *Watcher {
	w := &Watcher{
		newDial:  func() Dialer { return &wsDialer{} },
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch subscribes to every account and calls onChange after changes.
// Accounts that cannot be subscribed are logged and skipped.
func (w *Watcher) Watch(endpoint string, accounts []solana.PublicKey, onChange func(ctx context.Context)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	dialer := w.newDial()

	type watched struct {
		account solana.PublicKey
		sub     Subscription
	}
	var subs []watched
	for _, acc := range accounts {
		sub, err := dialer.Subscribe(ctx, endpoint, acc)
		if err != nil {
			log.Warn().Err(err).Str("account", acc.String()).Msg("Account subscription failed")
			continue
		}
		subs = append(subs, watched{account: acc, sub: sub})
	}
	if len(subs) == 0 && len(accounts) > 0 {
		cancel()
		dialer.Close()
		return errors.New("no account subscription could be opened")
	}

	changes := make(chan struct{}, 1)
	for _, s := range subs {
		w.wg.Add(1)
		go w.listen(ctx, s.account, s.sub, changes)
	}
	w.wg.Add(1)
	go w.notify(ctx, changes, onChange)

	w.dialer = dialer
	w.cancel = cancel
	log.Info().Int("accounts", len(subs)).Str("endpoint", endpoint).Msg("Watching wallet accounts")
	return nil
}

func (w *Watcher) listen(ctx context.Context, account solana.PublicKey, sub Subscription, changes chan<- struct{}) {
	defer w.wg.Done()
	defer sub.Unsubscribe()
	for {
		if err := sub.Recv(ctx); err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("account", account.String()).Msg("Account subscription ended")
			}
			return
		}
		select {
		case changes <- struct{}{}:
		default:
		}
	}
}

func (w *Watcher) notify(ctx context.Context, changes <-chan struct{}, onChange func(ctx context.Context)) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
		if w.debounce > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.debounce):
			}
		}
		onChange(ctx)
	}
}

// Stop tears down every subscription and waits for the goroutines to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Watcher) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.dialer.Close()
	w.cancel, w.dialer = nil, nil
}

// wsDialer shares one websocket connection between all subscriptions.
type wsDialer struct {
	mu     sync.Mutex
	client *ws.Client
}

func (d *wsDialer) Subscribe(ctx context.Context, endpoint string, account solana.PublicKey) (Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		client, err := ws.Connect(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		d.client = client
	}
	sub, err := d.client.AccountSubscribe(account, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	return &accountSubscription{sub: sub}, nil
}

func (d *wsDialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
}

type accountSubscription struct {
	sub *ws.AccountSubscription
}

func (s *accountSubscription) Recv(ctx context.Context) error {
	_, err := s.sub.Recv(ctx)
	return err
}

func (s *accountSubscription) Unsubscribe() { s.sub.Unsubscribe() }
