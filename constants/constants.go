package constants

import (
	"crypto/tls"
	"regexp"
	"time"
)

const (
	// Default XMPP client-to-server port
	DEFAULT_CLIENT_PORT = 5222
	// Legacy direct TLS port
	DEFAULT_SSL_PORT = 5223

	// Orbot exposes its SOCKS5 listener here.
	// User supplied proxy values are ignored for the orbot preset.
	ORBOT_PROXY_HOST = "localhost"
	ORBOT_PROXY_PORT = 9050

	// Resolving a literal address should be instant.
	// Anything slower than this falls back to hostname routing.
	LITERAL_RESOLVE_TIMEOUT = 2 * time.Second

	// TLSv1.2 is the lowest version offered to servers.
	// DO NOT use lower than 1.2, as older protocols contain security flaws.
	CLIENT_TLS_VERSION = tls.VersionTLS12

	// One-time certificate approvals are forgotten after this long
	SESSION_APPROVAL_TTL = 12 * time.Hour
	// Max number of one-time approvals kept in memory
	SESSION_APPROVAL_CAPACITY = 256

	// Allow a burst of 3 connection attempts, then one every 5s
	CONNECT_ATTEMPT_INTERVAL = 5 * time.Second
	CONNECT_ATTEMPT_BURST    = 3
)

var (
	IPV4_REGEX *regexp.Regexp = regexp.MustCompile(
		`^((25[0-5]|2[0-4][0-9]|[0-1][0-9]{2}|[1-9][0-9]|[0-9])\.` +
			`(25[0-5]|2[0-4][0-9]|[0-1][0-9]{2}|[1-9][0-9]|[0-9])\.` +
			`(25[0-5]|2[0-4][0-9]|[0-1][0-9]{2}|[1-9][0-9]|[0-9])\.` +
			`(25[0-5]|2[0-4][0-9]|[0-1][0-9]{2}|[1-9][0-9]|[0-9]))$`)

	// Shape check only, the resolver does the real parsing.
	IPV6_REGEX *regexp.Regexp = regexp.MustCompile(
		`^\[?[0-9A-Fa-f]{0,4}(:[0-9A-Fa-f]{0,4}){2,7}(:(\d{1,3}\.){3}\d{1,3})?(%[0-9A-Za-z._-]+)?\]?$`)
)
