package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/bluemods/xmppconn/constants"
	"github.com/bluemods/xmppconn/settings"
	"golang.org/x/time/rate"
)

// The XMPP engine that actually opens sockets, negotiates TLS and SASL.
// Open must apply d.Mechanisms before SASL negotiation starts.
type Engine interface {
	Open(ctx context.Context, d *Descriptor) error
}

type EngineFunc func(ctx context.Context, d *Descriptor) error

func (f EngineFunc) Open(ctx context.Context, d *Descriptor) error {
	return f(ctx, d)
}

// Runs build-and-open sequences one at a time and throttles how often
// they may start. Safe for use from multiple goroutines.
type Gate struct {
	negotiator *Negotiator
	engine     Engine
	limiter    *rate.Limiter
	mu         sync.Mutex
}

func NewGate(n *Negotiator, engine Engine) *Gate {
	return &Gate{
		negotiator: n,
		engine:     engine,
		limiter:    rate.NewLimiter(rate.Every(constants.CONNECT_ATTEMPT_INTERVAL), constants.CONNECT_ATTEMPT_BURST),
	}
}

// Replaces the attempt rate limit.
func (g *Gate) WithLimit(limit rate.Limit, burst int) *Gate {
	g.limiter = rate.NewLimiter(limit, burst)
	return g
}

// Builds a descriptor for s and hands it to the engine.
// Blocks until the rate limit allows another attempt and no other
// attempt is in progress, or until ctx is done.
func (g *Gate) Connect(ctx context.Context, s settings.ConnectionSettings) (*Descriptor, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("connection attempt to %s throttled: %w", s.ServerName, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := g.negotiator.Build(s)
	if err != nil {
		return nil, err
	}
	if err := g.engine.Open(ctx, d); err != nil {
		return d, fmt.Errorf("opening connection to %s: %w", s.ServerName, err)
	}
	return d, nil
}
