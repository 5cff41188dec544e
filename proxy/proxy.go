// Package proxy maps stored proxy settings to the proxy the
// connection engine should tunnel through.
package proxy

import (
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/bluemods/xmppconn/constants"
	"github.com/bluemods/xmppconn/settings"
	xproxy "golang.org/x/net/proxy"
)

var ErrUnsupportedProxy = errors.New("proxy type has no dialer here")

// Proxy the engine connects through. Orbot is resolved to
// Socks5 before it gets here, so Type is http, socks4 or socks5.
type Info struct {
	Type     settings.ProxyType
	Host     string
	Port     int
	User     string
	Password string
}

func ForHTTP(host string, port int, user, password string) *Info {
	return &Info{Type: settings.ProxyHTTP, Host: host, Port: port, User: user, Password: password}
}

func ForSocks4(host string, port int, user, password string) *Info {
	return &Info{Type: settings.ProxySocks4, Host: host, Port: port, User: user, Password: password}
}

func ForSocks5(host string, port int, user, password string) *Info {
	return &Info{Type: settings.ProxySocks5, Host: host, Port: port, User: user, Password: password}
}

// Picks the proxy for the given settings.
// Returns nil for a direct connection.
func Select(p settings.ProxySettings) *Info {
	switch p.Type {
	case settings.ProxyHTTP:
		return ForHTTP(p.Host, p.Port, p.User, p.Password)
	case settings.ProxySocks4:
		return ForSocks4(p.Host, p.Port, p.User, p.Password)
	case settings.ProxySocks5:
		return ForSocks5(p.Host, p.Port, p.User, p.Password)
	case settings.ProxyOrbot:
		// User supplied values are ignored for orbot
		return ForSocks5(constants.ORBOT_PROXY_HOST, constants.ORBOT_PROXY_PORT, "", "")
	default:
		return nil
	}
}

// host:port of the proxy itself.
func (i *Info) Address() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// Proxy as a URL, credentials in the user info when present.
func (i *Info) URL() *url.URL {
	u := &url.URL{Scheme: string(i.Type), Host: i.Address()}
	if i.User != "" || i.Password != "" {
		u.User = url.UserPassword(i.User, i.Password)
	}
	return u
}

// Dialer that tunnels through this proxy using forward for the
// connection to the proxy itself. Only SOCKS5 is supported.
func (i *Info) Dialer(forward xproxy.Dialer) (xproxy.Dialer, error) {
	if i.Type != settings.ProxySocks5 {
		return nil, ErrUnsupportedProxy
	}
	if forward == nil {
		forward = xproxy.Direct
	}
	var auth *xproxy.Auth
	if i.User != "" || i.Password != "" {
		auth = &xproxy.Auth{User: i.User, Password: i.Password}
	}
	return xproxy.SOCKS5("tcp", i.Address(), auth, forward)
}

// Copy of i, nil safe.
func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
