// Package settings holds the per-account connection settings and the
// two process-wide switches consulted on every descriptor build.
package settings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTLSMode   = errors.New("unknown tls mode")
	ErrUnknownProxyType = errors.New("unknown proxy type")
)

// Whether TLS is attempted and whether it is mandatory.
// This says nothing about which certificates are accepted, see package trust.
type TLSMode string

const (
	TLSRequired TLSMode = "required"
	TLSEnabled  TLSMode = "enabled"
	TLSDisabled TLSMode = "disabled"
)

func ParseTLSMode(s string) (TLSMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "required":
		return TLSRequired, nil
	case "enabled", "ifpossible", "if_possible", "opportunistic", "":
		return TLSEnabled, nil
	case "disabled":
		return TLSDisabled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTLSMode, s)
}

type ProxyType string

const (
	ProxyNone   ProxyType = "none"
	ProxyHTTP   ProxyType = "http"
	ProxySocks4 ProxyType = "socks4"
	ProxySocks5 ProxyType = "socks5"
	// Local Tor relay, always reached through SOCKS5 on localhost:9050
	ProxyOrbot ProxyType = "orbot"
)

func ParseProxyType(s string) (ProxyType, error) {
	switch t := ProxyType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return ProxyNone, nil
	case ProxyNone, ProxyHTTP, ProxySocks4, ProxySocks5, ProxyOrbot:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProxyType, s)
}

type ProxySettings struct {
	Type     ProxyType `mapstructure:"type"`
	Host     string    `mapstructure:"host"`
	Port     int       `mapstructure:"port"`
	User     string    `mapstructure:"user"`
	Password string    `mapstructure:"password"`
}

// Stored settings of a single account.
// Assumed to be validated before they get here.
type ConnectionSettings struct {
	ServerName  string        `mapstructure:"server"`
	CustomHost  bool          `mapstructure:"custom_host"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	TLSMode     TLSMode       `mapstructure:"tls_mode"`
	Compression bool          `mapstructure:"compression"`
	UserName    string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Resource    string        `mapstructure:"resource"`
	Proxy       ProxySettings `mapstructure:"proxy"`
}

// When true, Host and Port override DNS based discovery of the server.
func (s ConnectionSettings) IsCustomHostAndPort() bool {
	return s.CustomHost
}

// Process-wide switches read once per build.
type GlobalSettings interface {
	// False means every certificate is accepted without verification.
	SecurityCheckCertificate() bool
	// True restricts authentication to PLAIN.
	ConnectionUsePlainTextAuth() bool
}

// Fixed GlobalSettings values.
type Global struct {
	CheckCertificate bool `mapstructure:"check_certificate"`
	UsePlainTextAuth bool `mapstructure:"plain_text_auth"`
}

// Certificates are checked unless explicitly turned off.
func DefaultGlobal() Global {
	return Global{CheckCertificate: true}
}

func (g Global) SecurityCheckCertificate() bool   { return g.CheckCertificate }
func (g Global) ConnectionUsePlainTextAuth() bool { return g.UsePlainTextAuth }
