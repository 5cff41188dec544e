package trust

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bluemods/xmppconn/constants"
)

type Mode int

const (
	// Verify against system roots, then memorized certificates.
	ModePinned Mode = iota
	// Accept every certificate. Only when the user turned checking off.
	ModeAcceptAll
)

func (m Mode) String() string {
	if m == ModeAcceptAll {
		return "accept-all"
	}
	return "pinned"
}

type Status int

const (
	// Trust policy fully in place.
	StatusApplied Status = iota
	// Policy could not be set up, Config is nil and the engine's default TLS behaviour applies.
	StatusDegraded
	// Policy cannot be honoured at all, the connection must not be attempted.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusDegraded:
		return "degraded"
	case StatusFatal:
		return "fatal"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Outcome of a trust policy selection.
type Result struct {
	Mode     Mode
	Status   Status
	Config   *tls.Config
	Verifier HostnameVerifier
	Err      error
}

type Selector struct {
	// Consulted in pinned mode. Constructed once and shared between builds.
	Store Store
	// Root pool for chain verification, x509.SystemCertPool when nil.
	Roots      func() (*x509.CertPool, error)
	MinVersion uint16
	Logger     *slog.Logger
}

// Builds a fresh TLS config for serverName (the XMPP domain).
func (s *Selector) Select(checkCertificate bool, serverName string) Result {
	if !checkCertificate {
		s.logger().Warn("Certificate checking is disabled, accepting any certificate", "domain", serverName)
		return Result{
			Mode:   ModeAcceptAll,
			Status: StatusApplied,
			Config: &tls.Config{
				ServerName:         serverName,
				MinVersion:         s.minVersion(),
				InsecureSkipVerify: true,
			},
			Verifier: AcceptAllHostnameVerifier,
		}
	}

	if s.Store == nil {
		s.logger().Error("Failed to set up certificate trust", "domain", serverName, "error", ErrNoTrustStore)
		return Result{Mode: ModePinned, Status: StatusFatal, Err: ErrNoTrustStore}
	}

	roots, err := s.roots()
	if err != nil {
		err = fmt.Errorf("failed to load root certificates: %w", err)
		s.logger().Error("Failed to set up certificate trust, using engine defaults", "domain", serverName, "error", err)
		return Result{Mode: ModePinned, Status: StatusDegraded, Err: err}
	}

	verifier := s.Store.WrapHostnameVerifier(StrictHostnameVerifier)
	return Result{
		Mode:   ModePinned,
		Status: StatusApplied,
		Config: &tls.Config{
			ServerName: serverName,
			MinVersion: s.minVersion(),
			// Chain and hostname are checked in VerifyConnection so
			// memorized certificates can override both.
			InsecureSkipVerify: true,
			VerifyConnection:   verifyConnection(s.Store, roots, verifier, serverName),
		},
		Verifier: verifier,
	}
}

func verifyConnection(store Store, roots *x509.CertPool, verifier HostnameVerifier, domain string) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("server presented no certificates")
		}
		hostname := domain
		if hostname == "" {
			hostname = cs.ServerName
		}
		leaf := cs.PeerCertificates[0]
		intermediates := x509.NewCertPool()
		for _, cert := range cs.PeerCertificates[1:] {
			intermediates.AddCert(cert)
		}
		_, err := leaf.Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		if err != nil && !store.IsKnownAndTrusted(leaf) {
			i, ok := store.(Interactive)
			if !ok || !i.Decide(hostname, cs.PeerCertificates, err) {
				return fmt.Errorf("%w: %v", ErrUntrusted, err)
			}
		}
		return verifier.Verify(hostname, leaf)
	}
}

func (s *Selector) roots() (*x509.CertPool, error) {
	if s.Roots != nil {
		return s.Roots()
	}
	return x509.SystemCertPool()
}

func (s *Selector) minVersion() uint16 {
	if s.MinVersion == 0 {
		return constants.CLIENT_TLS_VERSION
	}
	return s.MinVersion
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
