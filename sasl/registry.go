// Package sasl tracks which SASL mechanisms the connection engine knows
// about and which of them may be offered during authentication.
package sasl

import (
	"sort"
	"sync"

	"github.com/bluemods/xmppconn/utils"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RFC 6120 6.4.1 mechanism names
const (
	SCRAM_SHA_1_PLUS = "SCRAM-SHA-1-PLUS"
	SCRAM_SHA_1      = "SCRAM-SHA-1"
	DIGEST_MD5       = "DIGEST-MD5"
	PLAIN            = "PLAIN"
	X_OAUTH2         = "X-OAUTH2"
	ANONYMOUS        = "ANONYMOUS"
	EXTERNAL         = "EXTERNAL"
)

// Mechanisms known to the engine, ordered by preference,
// plus the set of names currently denied for negotiation.
type Registry struct {
	mu         sync.Mutex
	mechanisms *orderedmap.OrderedMap[string, int]
	blacklist  *utils.ConcurrentSet[string]
}

func NewRegistry() *Registry {
	return &Registry{
		mechanisms: orderedmap.New[string, int](),
		blacklist:  utils.NewConcurrentSet[string](),
	}
}

// Registry with the mechanisms a stock client ships with.
// Lower priority values are preferred.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SCRAM_SHA_1_PLUS, 100)
	r.Register(SCRAM_SHA_1, 110)
	r.Register(DIGEST_MD5, 210)
	r.Register(PLAIN, 410)
	r.Register(X_OAUTH2, 410)
	r.Register(ANONYMOUS, 500)
	r.Register(EXTERNAL, 510)
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Process-wide registry for engines that share one.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewDefaultRegistry()
	})
	return defaultRegistry
}

// Adds or re-prioritizes a mechanism.
func (r *Registry) Register(name string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mechanisms.Set(name, priority)
}

// Removes a mechanism. Returns false if it was not registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, present := r.mechanisms.Delete(name)
	return present
}

func (r *Registry) IsRegistered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.mechanisms.Get(name)
	return ok
}

// Registered mechanism names, most preferred first.
// Equal priorities keep registration order.
func (r *Registry) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered()
}

// Caller must hold r.mu.
func (r *Registry) registered() []string {
	type entry struct {
		name     string
		priority int
	}
	entries := make([]entry, 0, r.mechanisms.Len())
	for pair := r.mechanisms.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, entry{pair.Key, pair.Value})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// Denies a mechanism for negotiation.
func (r *Registry) Blacklist(name string) {
	r.blacklist.Add(name)
}

// Allows a previously denied mechanism again.
func (r *Registry) Unblacklist(name string) {
	r.blacklist.Remove(name)
}

func (r *Registry) IsBlacklisted(name string) bool {
	return r.blacklist.Contains(name)
}

// Blacklisted names, sorted.
func (r *Registry) Blacklisted() []string {
	names := r.blacklist.Keys()
	sort.Strings(names)
	return names
}

// Registered mechanisms that are not blacklisted, most preferred first.
func (r *Registry) Permitted() []string {
	var permitted []string
	for _, name := range r.Registered() {
		if !r.blacklist.Contains(name) {
			permitted = append(permitted, name)
		}
	}
	return permitted
}

// Rewrites the blacklist so that only the mechanisms of p stay allowed.
// Holds the registry lock for the whole rewrite, so neither concurrent
// Apply calls nor Register can interleave with it.
func (r *Registry) Apply(p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.registered() {
		r.blacklist.Add(name)
	}
	for _, name := range p.Allowed() {
		r.blacklist.Remove(name)
	}
}
