package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/bluemods/xmppconn/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

var serial int64

func newCA(t *testing.T) testCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	serial++
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: "Test Root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return testCA{cert, key}
}

// Leaf for names, signed by ca or self-signed when ca is nil.
func newLeaf(t *testing.T, ca *testCA, names ...string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	serial++
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: names[0]},
		DNSNames:     names,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	parent, signer := tmpl, key
	if ca != nil {
		parent, signer = ca.cert, ca.key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, signer)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func rootsOf(certs ...*x509.Certificate) func() (*x509.CertPool, error) {
	return func() (*x509.CertPool, error) {
		pool := x509.NewCertPool()
		for _, c := range certs {
			pool.AddCert(c)
		}
		return pool, nil
	}
}

func handshake(cfg *tls.Config, chain ...*x509.Certificate) error {
	return cfg.VerifyConnection(tls.ConnectionState{ServerName: cfg.ServerName, PeerCertificates: chain})
}

func TestSelectAcceptAll(t *testing.T) {
	s := &Selector{Logger: utils.NopLogger()}
	res := s.Select(false, "example.com")
	assert.Equal(t, ModeAcceptAll, res.Mode)
	assert.Equal(t, StatusApplied, res.Status)
	require.NotNil(t, res.Config)
	assert.True(t, res.Config.InsecureSkipVerify)
	assert.Nil(t, res.Config.VerifyConnection)
	assert.Equal(t, uint16(tls.VersionTLS12), res.Config.MinVersion)
	assert.NoError(t, res.Verifier.Verify("example.com", newLeaf(t, nil, "other.example")))
}

func TestSelectPinnedWithoutStoreIsFatal(t *testing.T) {
	s := &Selector{Logger: utils.NopLogger()}
	res := s.Select(true, "example.com")
	assert.Equal(t, ModePinned, res.Mode)
	assert.Equal(t, StatusFatal, res.Status)
	assert.Nil(t, res.Config)
	assert.ErrorIs(t, res.Err, ErrNoTrustStore)
}

func TestSelectRootsFailureIsDegraded(t *testing.T) {
	s := &Selector{
		Store:  NewMemoryStore(nil, utils.NopLogger()),
		Roots:  func() (*x509.CertPool, error) { return nil, errors.New("no provider") },
		Logger: utils.NopLogger(),
	}
	res := s.Select(true, "example.com")
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Nil(t, res.Config)
	assert.ErrorContains(t, res.Err, "no provider")
	assert.Equal(t, "degraded", res.Status.String())
}

func TestSelectBuildsFreshConfig(t *testing.T) {
	s := &Selector{Store: NewMemoryStore(nil, utils.NopLogger()), Roots: rootsOf(), Logger: utils.NopLogger()}
	a := s.Select(true, "example.com")
	b := s.Select(true, "example.com")
	assert.NotSame(t, a.Config, b.Config)
}

func TestPinnedAcceptsChainToRoot(t *testing.T) {
	ca := newCA(t)
	s := &Selector{Store: NewMemoryStore(nil, utils.NopLogger()), Roots: rootsOf(ca.cert), Logger: utils.NopLogger()}
	res := s.Select(true, "example.com")
	require.Equal(t, StatusApplied, res.Status)

	assert.NoError(t, handshake(res.Config, newLeaf(t, &ca, "example.com")))
}

func TestPinnedRejectsUnknownCertificate(t *testing.T) {
	s := &Selector{Store: NewMemoryStore(nil, utils.NopLogger()), Roots: rootsOf(), Logger: utils.NopLogger()}
	res := s.Select(true, "example.com")

	err := handshake(res.Config, newLeaf(t, nil, "example.com"))
	assert.ErrorIs(t, err, ErrUntrusted)
	assert.Error(t, handshake(res.Config))
}

func TestPinnedAcceptsMemorizedCertificate(t *testing.T) {
	store := NewMemoryStore(nil, utils.NopLogger())
	leaf := newLeaf(t, nil, "example.com")
	store.Remember(leaf)

	s := &Selector{Store: store, Roots: rootsOf(), Logger: utils.NopLogger()}
	assert.NoError(t, handshake(s.Select(true, "example.com").Config, leaf))
}

func TestPinnedPromptsForUnknownCertificate(t *testing.T) {
	leaf := newLeaf(t, nil, "example.com")
	var decision Decision
	prompts := 0
	store := NewMemoryStore(func(hostname string, chain []*x509.Certificate, cause error) Decision {
		prompts++
		assert.Equal(t, "example.com", hostname)
		assert.Error(t, cause)
		return decision
	}, utils.NopLogger())
	s := &Selector{Store: store, Roots: rootsOf(), Logger: utils.NopLogger()}
	cfg := s.Select(true, "example.com").Config

	decision = Reject
	assert.ErrorIs(t, handshake(cfg, leaf), ErrUntrusted)
	assert.False(t, store.IsKnownAndTrusted(leaf))

	decision = AcceptOnce
	assert.NoError(t, handshake(cfg, leaf))
	assert.True(t, store.IsKnownAndTrusted(leaf))
	assert.Empty(t, store.Fingerprints())

	// remembered for the session, no further prompt
	assert.NoError(t, handshake(cfg, leaf))
	assert.Equal(t, 2, prompts)
}

func TestPinnedHostnameMismatch(t *testing.T) {
	ca := newCA(t)
	leaf := newLeaf(t, &ca, "other.example")
	store := NewMemoryStore(nil, utils.NopLogger())
	s := &Selector{Store: store, Roots: rootsOf(ca.cert), Logger: utils.NopLogger()}
	cfg := s.Select(true, "example.com").Config

	assert.Error(t, handshake(cfg, leaf))

	store.RememberHostname("Example.com", leaf)
	assert.NoError(t, handshake(cfg, leaf))
}

func TestWrappedVerifierPromptAlways(t *testing.T) {
	leaf := newLeaf(t, nil, "other.example")
	store := NewMemoryStore(func(string, []*x509.Certificate, error) Decision { return AcceptAlways }, utils.NopLogger())
	v := store.WrapHostnameVerifier(StrictHostnameVerifier)
	assert.NoError(t, v.Verify("example.com", leaf))

	store.Prompt = nil
	assert.NoError(t, v.Verify("example.com", leaf))
	assert.Error(t, v.Verify("example.org", leaf))
}

func TestMemoryStoreForget(t *testing.T) {
	store := NewMemoryStore(nil, utils.NopLogger())
	leaf := newLeaf(t, nil, "example.com")
	assert.False(t, store.Forget(leaf))

	store.Remember(leaf)
	store.RememberHostname("example.org", leaf)
	assert.Equal(t, []string{Fingerprint(leaf)}, store.Fingerprints())

	assert.True(t, store.Forget(leaf))
	assert.False(t, store.IsKnownAndTrusted(leaf))
	assert.Error(t, store.WrapHostnameVerifier(StrictHostnameVerifier).Verify("example.org", leaf))
}

func TestMemoryStoreLoadPEM(t *testing.T) {
	a := newLeaf(t, nil, "a.example")
	b := newLeaf(t, nil, "b.example")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: a.Raw})
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}})...)
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: b.Raw})...)

	store := NewMemoryStore(nil, utils.NopLogger())
	n, err := store.LoadPEM(data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, store.IsKnownAndTrusted(a))
	assert.True(t, store.IsKnownAndTrusted(b))

	_, err = store.LoadPEM([]byte("nothing here"))
	assert.Error(t, err)
}

func TestMemoryStoreLoadPKCS12Garbage(t *testing.T) {
	_, err := NewMemoryStore(nil, utils.NopLogger()).LoadPKCS12([]byte{0x30, 0x00}, "changeit")
	assert.Error(t, err)
}

func TestPinnedSinglePromptCoversHostnameMismatch(t *testing.T) {
	for _, decision := range []Decision{AcceptOnce, AcceptAlways} {
		leaf := newLeaf(t, nil, "other.example")
		prompts := 0
		store := NewMemoryStore(func(string, []*x509.Certificate, error) Decision {
			prompts++
			return decision
		}, utils.NopLogger())
		s := &Selector{Store: store, Roots: rootsOf(), Logger: utils.NopLogger()}
		cfg := s.Select(true, "example.com").Config

		assert.NoError(t, handshake(cfg, leaf))
		assert.Equal(t, 1, prompts)

		assert.NoError(t, handshake(cfg, leaf))
		assert.Equal(t, 1, prompts)

		// the override is bound to the domain that was approved
		store.Prompt = nil
		assert.Error(t, handshake(s.Select(true, "example.org").Config, leaf))
	}
}
