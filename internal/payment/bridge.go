package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrUnknownSession = errors.New("unknown or already completed payment session")
	ErrSessionExists  = errors.New("payment session already open")
	ErrNotOwner       = errors.New("payment session belongs to another user")
	ErrAbandoned      = errors.New("payment abandoned")
)

// DefaultSessionTTL bounds how long an unresolved session may block a flow.
const DefaultSessionTTL = 30 * time.Minute

// Relay carries sessions between replicas, so the callback may land on a
// different process than the flow waiting in Open.
type Relay interface {
	// Register records c's session for ttl and returns the channel its
	// result arrives on. done releases the subscription.
	Register(ctx context.Context, c Checkout, ttl time.Duration) (results <-chan Result, done func(), err error)
	// Deliver checks ownership, closes the session and hands r to its waiter.
	Deliver(ctx context.Context, gatewayOrderID, userID string, r Result) error
	// Forget drops an abandoned session.
	Forget(ctx context.Context, gatewayOrderID string)
}

type session struct {
	checkout Checkout
	result   chan Result
}

// Bridge is a Gateway whose completions arrive over HTTP: the browser runs the
// widget and posts its outcome back, which Resolve hands to the waiting Open.
type Bridge struct {
	mu       sync.Mutex
	sessions map[string]*session
	watchers map[string][]chan Checkout
	onOpen   func(Checkout)
	ttl      time.Duration
	relay    Relay
}

// NewBridge creates a bridge. Sessions nobody resolves within ttl count as
// abandoned; a non-positive ttl uses DefaultSessionTTL. relay may be nil for a
// single process.
func NewBridge(ttl time.Duration, relay Relay) *Bridge {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Bridge{
		sessions: make(map[string]*session),
		watchers: make(map[string][]chan Checkout),
		ttl:      ttl,
		relay:    relay,
	}
}

// OnOpen registers fn to be called for every opened session.
func (b *Bridge) OnOpen(fn func(Checkout)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onOpen = fn
}

// Watch returns a channel that receives the next session opened for quoteID.
// The returned func stops watching.
func (b *Bridge) Watch(quoteID string) (<-chan Checkout, func()) {
	ch := make(chan Checkout, 1)

	b.mu.Lock()
	b.watchers[quoteID] = append(b.watchers[quoteID], ch)
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.watchers[quoteID]
		for i, w := range list {
			if w == ch {
				b.watchers[quoteID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(b.watchers[quoteID]) == 0 {
			delete(b.watchers, quoteID)
		}
	}
}

func (b *Bridge) Open(ctx context.Context, c Checkout) (Result, error) {
	id := c.Options.OrderID
	s := &session{checkout: c, result: make(chan Result, 1)}

	b.mu.Lock()
	if _, ok := b.sessions[id]; ok {
		b.mu.Unlock()
		return Result{}, ErrSessionExists
	}
	b.sessions[id] = s
	b.mu.Unlock()
	defer b.drop(id, s)

	ctx, cancel := context.WithTimeout(ctx, b.ttl)
	defer cancel()

	var remote <-chan Result
	if b.relay != nil {
		results, done, err := b.relay.Register(ctx, c, b.ttl)
		if err != nil {
			return Result{}, err
		}
		defer done()
		remote = results
	}

	b.announce(c)

	select {
	case r := <-s.result:
		return r, nil
	case r := <-remote:
		return r, nil
	case <-ctx.Done():
		if b.relay != nil {
			b.relay.Forget(context.WithoutCancel(ctx), id)
		}
		// Resolve may have won the race after the deadline fired.
		select {
		case r := <-s.result:
			return r, nil
		case r := <-remote:
			return r, nil
		default:
		}
		return Result{}, fmt.Errorf("%w: %v", ErrAbandoned, ctx.Err())
	}
}

func (b *Bridge) announce(c Checkout) {
	b.mu.Lock()
	for _, w := range b.watchers[c.QuoteID] {
		select {
		case w <- c:
		default:
		}
	}
	onOpen := b.onOpen
	b.mu.Unlock()

	if onOpen != nil {
		onOpen(c)
	}
}

func (b *Bridge) drop(id string, s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessions[id] == s {
		delete(b.sessions, id)
	}
}

// Resolve completes the session for gatewayOrderID, wherever its flow runs. An
// empty userID skips the ownership check.
func (b *Bridge) Resolve(ctx context.Context, gatewayOrderID, userID string, r Result) error {
	if b.relay != nil {
		return b.relay.Deliver(ctx, gatewayOrderID, userID, r)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[gatewayOrderID]
	if !ok {
		return ErrUnknownSession
	}
	if userID != "" && s.checkout.UserID != "" && s.checkout.UserID != userID {
		return ErrNotOwner
	}
	delete(b.sessions, gatewayOrderID)
	s.result <- r
	return nil
}
