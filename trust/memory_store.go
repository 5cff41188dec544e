package trust

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bluemods/xmppconn/constants"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/pkcs12"
)

// Answer to a trust prompt.
type Decision int

const (
	Reject Decision = iota
	AcceptOnce
	AcceptAlways
)

// Asks the user what to do about a certificate.
// hostname is the XMPP domain, cause is why verification failed.
type PromptFunc func(hostname string, chain []*x509.Certificate, cause error) Decision

// Memorizing trust store kept in memory.
// AcceptAlways decisions stay until Forget is called, AcceptOnce
// decisions expire after constants.SESSION_APPROVAL_TTL.
type MemoryStore struct {
	mu        sync.RWMutex
	permanent map[string]*x509.Certificate
	hostnames map[string]map[string]struct{}

	session *expirable.LRU[string, struct{}]

	Prompt PromptFunc
	Logger *slog.Logger
}

func NewMemoryStore(prompt PromptFunc, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		permanent: make(map[string]*x509.Certificate),
		hostnames: make(map[string]map[string]struct{}),
		session: expirable.NewLRU[string, struct{}](
			constants.SESSION_APPROVAL_CAPACITY, nil, constants.SESSION_APPROVAL_TTL),
		Prompt: prompt,
		Logger: logger,
	}
}

// Hex encoded SHA-256 of the DER certificate.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// Trusts cert until forgotten.
func (s *MemoryStore) Remember(cert *x509.Certificate) {
	fp := Fingerprint(cert)
	s.mu.Lock()
	s.permanent[fp] = cert
	s.mu.Unlock()
	s.Logger.Info("Memorized certificate", "subject", cert.Subject.String(), "sha256", fp)
}

// Trusts cert for this session only.
func (s *MemoryStore) RememberOnce(cert *x509.Certificate) {
	s.session.Add(Fingerprint(cert), struct{}{})
}

// Accepts cert for hostname even though its names do not match.
func (s *MemoryStore) RememberHostname(hostname string, cert *x509.Certificate) {
	host := strings.ToLower(hostname)
	fp := Fingerprint(cert)
	s.mu.Lock()
	defer s.mu.Unlock()
	fps, ok := s.hostnames[host]
	if !ok {
		fps = make(map[string]struct{})
		s.hostnames[host] = fps
	}
	fps[fp] = struct{}{}
}

func (s *MemoryStore) rememberHostnameOnce(hostname string, cert *x509.Certificate) {
	s.session.Add(strings.ToLower(hostname)+"|"+Fingerprint(cert), struct{}{})
}

// Drops every decision about cert.
// Returns true if anything was removed.
func (s *MemoryStore) Forget(cert *x509.Certificate) bool {
	fp := Fingerprint(cert)
	removed := s.session.Remove(fp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permanent[fp]; ok {
		delete(s.permanent, fp)
		removed = true
	}
	for host, fps := range s.hostnames {
		if _, ok := fps[fp]; ok {
			delete(fps, fp)
			removed = true
		}
		if len(fps) == 0 {
			delete(s.hostnames, host)
		}
		s.session.Remove(host + "|" + fp)
	}
	return removed
}

// Fingerprints of permanently trusted certificates, sorted.
func (s *MemoryStore) Fingerprints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fps := make([]string, 0, len(s.permanent))
	for fp := range s.permanent {
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	return fps
}

func (s *MemoryStore) IsKnownAndTrusted(cert *x509.Certificate) bool {
	fp := Fingerprint(cert)
	s.mu.RLock()
	_, ok := s.permanent[fp]
	s.mu.RUnlock()
	return ok || s.session.Contains(fp)
}

func (s *MemoryStore) Decide(hostname string, chain []*x509.Certificate, cause error) bool {
	if s.Prompt == nil || len(chain) == 0 {
		return false
	}
	leaf := chain[0]
	// One answer covers the chain and the certificate's names
	mismatch := hostname != "" && leaf.VerifyHostname(hostname) != nil
	switch s.Prompt(hostname, chain, cause) {
	case AcceptAlways:
		s.Remember(leaf)
		if mismatch {
			s.RememberHostname(hostname, leaf)
		}
		return true
	case AcceptOnce:
		s.RememberOnce(leaf)
		if mismatch {
			s.rememberHostnameOnce(hostname, leaf)
		}
		return true
	default:
		s.Logger.Warn("User rejected certificate", "hostname", hostname, "sha256", Fingerprint(leaf))
		return false
	}
}

func (s *MemoryStore) WrapHostnameVerifier(base HostnameVerifier) HostnameVerifier {
	return HostnameVerifierFunc(func(hostname string, cert *x509.Certificate) error {
		err := base.Verify(hostname, cert)
		if err == nil {
			return nil
		}
		host := strings.ToLower(hostname)
		fp := Fingerprint(cert)

		s.mu.RLock()
		_, known := s.hostnames[host][fp]
		s.mu.RUnlock()
		if known || s.session.Contains(host+"|"+fp) {
			return nil
		}
		if s.Prompt == nil {
			return err
		}
		switch s.Prompt(hostname, []*x509.Certificate{cert}, err) {
		case AcceptAlways:
			s.RememberHostname(hostname, cert)
			return nil
		case AcceptOnce:
			s.rememberHostnameOnce(hostname, cert)
			return nil
		default:
			return err
		}
	})
}

// Trusts every CERTIFICATE block in PEM encoded data.
// Returns the number of certificates added.
func (s *MemoryStore) LoadPEM(data []byte) (int, error) {
	var blocks []*pem.Block
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		blocks = append(blocks, block)
	}
	return s.loadBlocks(blocks)
}

// Trusts every certificate in a PKCS#12 keystore.
func (s *MemoryStore) LoadPKCS12(data []byte, password string) (int, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return 0, fmt.Errorf("failed to decode keystore: %w", err)
	}
	return s.loadBlocks(blocks)
}

func (s *MemoryStore) loadBlocks(blocks []*pem.Block) (int, error) {
	n := 0
	for _, block := range blocks {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return n, fmt.Errorf("failed to parse certificate %d: %w", n, err)
		}
		s.Remember(cert)
		n++
	}
	if n == 0 {
		return 0, errors.New("no certificates found")
	}
	return n, nil
}
