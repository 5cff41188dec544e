// Package trust decides which server certificates are accepted:
// either pinned against the system roots plus certificates the user
// memorized, or everything without verification.
package trust

import (
	"crypto/x509"
	"errors"
)

var (
	ErrNoTrustStore = errors.New("certificate checking is enabled but no trust store was provided")
	ErrUntrusted    = errors.New("server certificate is not trusted")
)

// Checks that cert is valid for hostname.
type HostnameVerifier interface {
	Verify(hostname string, cert *x509.Certificate) error
}

type HostnameVerifierFunc func(hostname string, cert *x509.Certificate) error

func (f HostnameVerifierFunc) Verify(hostname string, cert *x509.Certificate) error {
	return f(hostname, cert)
}

var (
	// Strict RFC 6125 style check of the certificate's names.
	StrictHostnameVerifier HostnameVerifier = HostnameVerifierFunc(func(hostname string, cert *x509.Certificate) error {
		return cert.VerifyHostname(hostname)
	})

	AcceptAllHostnameVerifier HostnameVerifier = HostnameVerifierFunc(func(string, *x509.Certificate) error {
		return nil
	})
)

// Certificates the user approved earlier.
// Implementations persist decisions however they like.
type Store interface {
	IsKnownAndTrusted(cert *x509.Certificate) bool
	// Wraps base so that memorized hostname overrides are honoured
	// before falling back to base.
	WrapHostnameVerifier(base HostnameVerifier) HostnameVerifier
}

// Optionally implemented by a Store that can ask the user about a
// certificate that failed verification. Returns true to accept it.
type Interactive interface {
	Decide(hostname string, chain []*x509.Certificate, cause error) bool
}
