// Package connection turns stored account settings into a connection
// descriptor the XMPP engine can open, and serialises connection attempts.
package connection

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluemods/xmppconn/endpoint"
	"github.com/bluemods/xmppconn/proxy"
	"github.com/bluemods/xmppconn/sasl"
	"github.com/bluemods/xmppconn/settings"
	"github.com/bluemods/xmppconn/trust"
	"github.com/bluemods/xmppconn/utils"
	"github.com/google/uuid"
)

var ErrDegradedTrust = errors.New("certificate trust could not be applied")

// Builds connection descriptors.
// Create one with New, configure it with the With* methods, then share it.
// Build itself does not mutate the Negotiator.
type Negotiator struct {
	global      settings.GlobalSettings
	mechanisms  *sasl.Registry
	resolver    *endpoint.Resolver
	selector    *trust.Selector
	strictTrust bool
	logger      *slog.Logger

	// Store created by New, replaced by WithTrustStore
	defaultStore *trust.MemoryStore
}

// Negotiator that checks certificates against the system roots plus an
// empty in-memory store that never prompts, uses the process-wide
// mechanism registry and the default resolver.
func New() *Negotiator {
	logger := slog.Default()
	store := trust.NewMemoryStore(nil, logger)
	return &Negotiator{
		global:       settings.DefaultGlobal(),
		mechanisms:   sasl.Default(),
		resolver:     endpoint.NewResolver(logger),
		selector:     &trust.Selector{Store: store, Logger: logger},
		logger:       logger,
		defaultStore: store,
	}
}

// Memorization store consulted in pinned mode.
// A nil store makes every pinned build fail with trust.ErrNoTrustStore.
func (n *Negotiator) WithTrustStore(store trust.Store) *Negotiator {
	n.selector.Store = store
	n.defaultStore = nil
	return n
}

// Source of the check-certificate and plain-text-auth switches.
func (n *Negotiator) WithGlobalSettings(g settings.GlobalSettings) *Negotiator {
	n.global = g
	return n
}

// Registry the mechanism policy is computed from.
func (n *Negotiator) WithMechanisms(r *sasl.Registry) *Negotiator {
	n.mechanisms = r
	return n
}

// Resolver used for literal custom hosts.
func (n *Negotiator) WithLookup(l endpoint.Lookup) *Negotiator {
	n.resolver.Lookup = l
	return n
}

// Upper bound for resolving a literal custom host.
func (n *Negotiator) WithResolveTimeout(d time.Duration) *Negotiator {
	n.resolver.Timeout = d
	return n
}

// Root pool used for chain verification instead of the system pool.
func (n *Negotiator) WithRoots(f func() (*x509.CertPool, error)) *Negotiator {
	n.selector.Roots = f
	return n
}

// Treat a degraded trust setup as a build failure.
// Without this a degraded descriptor is returned and Descriptor.Trust says so.
func (n *Negotiator) WithStrictTrust() *Negotiator {
	n.strictTrust = true
	return n
}

func (n *Negotiator) WithLogger(logger *slog.Logger) *Negotiator {
	n.logger = logger
	n.resolver.Logger = logger
	n.selector.Logger = logger
	if n.defaultStore != nil {
		n.defaultStore.Logger = logger
	}
	return n
}

// Derives the descriptor for s.
//
// Only trust problems fail a build: a fatal trust setup always does,
// a degraded one only with WithStrictTrust.
func (n *Negotiator) Build(s settings.ConnectionSettings) (*Descriptor, error) {
	defer utils.TimeMethod(n.logger, "descriptor build")()

	d := &Descriptor{
		ID:           uuid.New(),
		Domain:       s.ServerName,
		SecurityMode: s.TLSMode,
		Compression:  s.Compression,
		UserName:     s.UserName,
		Password:     s.Password,
		Resource:     s.Resource,
		SendPresence: false,
	}
	logger := n.logger.With("id", d.ID.String(), "domain", s.ServerName)

	if s.IsCustomHostAndPort() {
		ep := n.resolver.Resolve(s.Host)
		d.HostAddress = ep.Addr
		d.Host = ep.Host
		d.Port = s.Port
	}

	d.Proxy = proxy.Select(s.Proxy)

	res := n.selector.Select(n.global.SecurityCheckCertificate(), s.ServerName)
	d.Trust = res
	d.TLSConfig = res.Config
	d.HostnameVerifier = res.Verifier
	switch {
	case res.Status == trust.StatusFatal:
		return nil, fmt.Errorf("building connection to %s: %w", s.ServerName, res.Err)
	case res.Status == trust.StatusDegraded && n.strictTrust:
		return nil, fmt.Errorf("building connection to %s: %w: %w", s.ServerName, ErrDegradedTrust, res.Err)
	}

	d.Mechanisms = sasl.PolicyFor(n.mechanisms, n.global.ConnectionUsePlainTextAuth())
	if d.Mechanisms.PlainOnly() {
		logger.Warn("Only PLAIN authentication will be offered")
	}

	logger.Info("New connection descriptor",
		"address", d.Address(),
		"security", d.SecurityMode,
		"trust", res.Mode.String()+"/"+res.Status.String(),
		"proxy", d.Proxy != nil)
	return d, nil
}
