package sasl

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisteredOrdersByPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(PLAIN, 410)
	r.Register(SCRAM_SHA_1, 110)
	r.Register(X_OAUTH2, 410)
	r.Register(DIGEST_MD5, 210)

	assert.Equal(t, []string{SCRAM_SHA_1, DIGEST_MD5, PLAIN, X_OAUTH2}, r.Registered())

	r.Register(PLAIN, 50)
	assert.Equal(t, []string{PLAIN, SCRAM_SHA_1, DIGEST_MD5, X_OAUTH2}, r.Registered())

	assert.True(t, r.Unregister(DIGEST_MD5))
	assert.False(t, r.Unregister(DIGEST_MD5))
	assert.False(t, r.IsRegistered(DIGEST_MD5))
}

func TestDefaultRegistryIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Contains(t, Default().Registered(), PLAIN)
}

func TestPolicyForPlainText(t *testing.T) {
	r := NewDefaultRegistry()
	p := PolicyFor(r, true)
	assert.Equal(t, []string{PLAIN}, p.Allowed())
	assert.True(t, p.PlainOnly())
	assert.True(t, p.Permits(PLAIN))
	assert.False(t, p.Permits(SCRAM_SHA_1))

	// policy computation leaves the registry alone
	assert.Empty(t, r.Blacklisted())
}

func TestPolicyForNormal(t *testing.T) {
	r := NewDefaultRegistry()
	p := PolicyFor(r, false)
	assert.Equal(t, r.Registered(), p.Allowed())
	assert.False(t, p.PlainOnly())
}

func TestPolicyAllowedIsACopy(t *testing.T) {
	p := PolicyFor(NewDefaultRegistry(), true)
	p.Allowed()[0] = "EXTERNAL"
	assert.Equal(t, []string{PLAIN}, p.Allowed())
}

func TestSetUpPlainTextDeniesEverythingElse(t *testing.T) {
	r := NewDefaultRegistry()
	SetUp(r, true)
	assert.Equal(t, []string{PLAIN}, r.Permitted())
	assert.False(t, r.IsBlacklisted(PLAIN))
	assert.True(t, r.IsBlacklisted(SCRAM_SHA_1))
}

func TestSetUpNormalClearsPriorDenial(t *testing.T) {
	r := NewDefaultRegistry()
	SetUp(r, true)
	SetUp(r, false)
	assert.Equal(t, r.Registered(), r.Permitted())
	assert.Empty(t, r.Blacklisted())
}

func TestSetUpPlainTextAfterPermissiveState(t *testing.T) {
	r := NewDefaultRegistry()
	r.Blacklist(SCRAM_SHA_1)
	SetUp(r, false)
	SetUp(r, true)
	assert.Equal(t, []string{PLAIN}, r.Permitted())
}

func TestPolicySelect(t *testing.T) {
	p := PolicyFor(NewDefaultRegistry(), false)
	offered := []string{PLAIN, SCRAM_SHA_1, "CUSTOM"}
	assert.Equal(t, []string{SCRAM_SHA_1, PLAIN}, p.Select(offered))

	plain := PolicyFor(NewDefaultRegistry(), true)
	assert.Equal(t, []string{PLAIN}, plain.Select(offered))
	assert.Empty(t, plain.Select([]string{SCRAM_SHA_1}))
	assert.Equal(t, "PLAIN", plain.String())
}

func TestApplyConcurrent(t *testing.T) {
	r := NewDefaultRegistry()
	plain := PolicyFor(r, true)
	wg := sync.WaitGroup{}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Apply(plain)
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{PLAIN}, r.Permitted())
}

func TestApplyWithConcurrentRegister(t *testing.T) {
	r := NewDefaultRegistry()
	plain := PolicyFor(r, true)
	wg := sync.WaitGroup{}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			r.Register(name, 300)
			r.Apply(plain)
			assert.True(t, r.IsBlacklisted(name), name)
		}(fmt.Sprintf("X-TEST-%d", i))
	}
	wg.Wait()
	assert.Equal(t, []string{PLAIN}, r.Permitted())
}
