package sasl

import (
	"slices"
	"strings"
)

// Mechanisms permitted for one connection.
// Carried on the connection descriptor instead of being written
// into shared registry state.
type Policy struct {
	allowed   []string
	plainOnly bool
}

// Computes the policy for a build.
//
// With plainText set only PLAIN is offered, even when the server
// supports stronger mechanisms. Otherwise every mechanism registered
// in r is allowed and the engine picks freely.
func PolicyFor(r *Registry, plainText bool) Policy {
	if plainText {
		return Policy{allowed: []string{PLAIN}, plainOnly: true}
	}
	return Policy{allowed: r.Registered()}
}

// Applies the policy for plainText directly to r, denying everything
// else. Only for engines that read the registry's blacklist themselves.
func SetUp(r *Registry, plainText bool) Policy {
	p := PolicyFor(r, plainText)
	r.Apply(p)
	return p
}

// Allowed mechanism names, most preferred first.
func (p Policy) Allowed() []string {
	return slices.Clone(p.allowed)
}

func (p Policy) Permits(name string) bool {
	return slices.Contains(p.allowed, name)
}

// True when the policy only offers cleartext credentials.
func (p Policy) PlainOnly() bool {
	return p.plainOnly
}

// Filters the server's offered mechanisms down to the allowed ones,
// keeping the policy's preference order.
func (p Policy) Select(offered []string) []string {
	var selected []string
	for _, name := range p.allowed {
		if slices.Contains(offered, name) {
			selected = append(selected, name)
		}
	}
	return selected
}

func (p Policy) String() string {
	return strings.Join(p.allowed, ",")
}
