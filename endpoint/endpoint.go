// Package endpoint decides how a custom host override is routed:
// as a literal network address or as a hostname left to the transport.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/bluemods/xmppconn/constants"
)

// Subset of *net.Resolver used for literal address resolution.
type Lookup interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Result of resolving a custom host.
// Exactly one of Addr (valid) or Host (non-empty) is set.
type Endpoint struct {
	Addr netip.Addr
	Host string
}

func (e Endpoint) IsAddress() bool {
	return e.Addr.IsValid()
}

func (e Endpoint) String() string {
	if e.IsAddress() {
		return e.Addr.String()
	}
	return e.Host
}

type Resolver struct {
	Lookup  Lookup
	Timeout time.Duration
	Logger  *slog.Logger
}

// Resolver backed by net.DefaultResolver.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		Lookup:  net.DefaultResolver,
		Timeout: constants.LITERAL_RESOLVE_TIMEOUT,
		Logger:  logger,
	}
}

// Reports whether host looks like an IPv4 or IPv6 literal.
func IsLiteral(host string) bool {
	return constants.IPV4_REGEX.MatchString(host) || constants.IPV6_REGEX.MatchString(host)
}

// Resolves host into a literal address when possible.
// Failures are never returned: the raw string is used as a hostname instead.
func (r *Resolver) Resolve(host string) Endpoint {
	if IsLiteral(host) {
		addr, err := r.resolveLiteral(host)
		if err == nil {
			r.logger().Info("Using custom IP address", "address", addr)
			return Endpoint{Addr: addr}
		}
		r.logger().Warn("Custom host looks like an IP address but did not resolve, using it as a hostname",
			"host", host, "error", err)
	}
	r.logger().Info("Using custom host", "host", host)
	return Endpoint{Host: host}
}

func (r *Resolver) resolveLiteral(host string) (netip.Addr, error) {
	literal := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	// Parsing keeps an IPv6 zone, the resolver would drop it
	if addr, err := netip.ParseAddr(literal); err == nil {
		return addr.Unmap(), nil
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = constants.LITERAL_RESOLVE_TIMEOUT
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	lookup := r.Lookup
	if lookup == nil {
		lookup = net.DefaultResolver
	}

	type result struct {
		addrs []netip.Addr
		err   error
	}
	// Buffered so the goroutine can finish after we stop waiting
	done := make(chan result, 1)
	go func() {
		addrs, err := lookup.LookupNetIP(ctx, "ip", literal)
		done <- result{addrs, err}
	}()

	select {
	case <-ctx.Done():
		return netip.Addr{}, fmt.Errorf("resolving %s: %w", host, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return netip.Addr{}, res.err
		}
		if len(res.addrs) == 0 {
			return netip.Addr{}, errors.New("no addresses for " + host)
		}
		return res.addrs[0].Unmap(), nil
	}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
