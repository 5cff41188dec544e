package connection

import (
	"bytes"
	"crypto/tls"
	"net"
	"net/netip"
	"strconv"

	"github.com/bluemods/xmppconn/constants"
	"github.com/bluemods/xmppconn/proxy"
	"github.com/bluemods/xmppconn/sasl"
	"github.com/bluemods/xmppconn/settings"
	"github.com/bluemods/xmppconn/trust"
	"github.com/google/uuid"
	"github.com/shabbyrobe/xmlwriter"
)

// Everything the engine needs to open one session.
// Built fresh for every connection attempt and owned by the caller.
type Descriptor struct {
	// Correlates log lines of one attempt
	ID uuid.UUID

	Domain string

	// At most one of HostAddress and Host is set.
	// Neither set means the domain is resolved through normal discovery.
	HostAddress netip.Addr
	Host        string
	// 0 means the engine's default / discovered port
	Port int

	SecurityMode settings.TLSMode
	Compression  bool

	UserName string
	Password string
	Resource string

	// nil when Trust.Status is degraded, the engine then uses its own defaults
	TLSConfig        *tls.Config
	HostnameVerifier trust.HostnameVerifier
	Trust            trust.Result

	// nil means a direct connection
	Proxy *proxy.Info

	Mechanisms sasl.Policy

	// Presence is announced explicitly after login, never by the engine.
	SendPresence bool
}

// Reports whether the engine should skip discovery and dial directly.
func (d *Descriptor) HasCustomEndpoint() bool {
	return d.HostAddress.IsValid() || d.Host != ""
}

// host:port the engine should dial, empty when discovery is used.
func (d *Descriptor) Address() string {
	port := d.effectivePort()
	switch {
	case d.HostAddress.IsValid():
		return netip.AddrPortFrom(d.HostAddress, uint16(port)).String()
	case d.Host != "":
		return net.JoinHostPort(d.Host, strconv.Itoa(port))
	}
	return ""
}

func (d *Descriptor) effectivePort() int {
	if d.Port == 0 {
		return constants.DEFAULT_CLIENT_PORT
	}
	return d.Port
}

// XML summary of the descriptor for diagnostics. Passwords are never written.
func (d *Descriptor) XML() string {
	buf := new(bytes.Buffer)
	w := xmlwriter.Open(buf)
	w.StartElem(xmlwriter.Elem{Name: "connection"})
	w.WriteAttr(xmlwriter.Attr{Name: "id", Value: d.ID.String()})
	w.WriteAttr(xmlwriter.Attr{Name: "domain", Value: d.Domain})
	w.WriteAttr(xmlwriter.Attr{Name: "security", Value: string(d.SecurityMode)})
	w.WriteAttr(xmlwriter.Attr{Name: "compression", Value: strconv.FormatBool(d.Compression)})
	w.WriteAttr(xmlwriter.Attr{Name: "send-presence", Value: strconv.FormatBool(d.SendPresence)})

	if d.HasCustomEndpoint() {
		w.StartElem(xmlwriter.Elem{Name: "endpoint"})
		if d.HostAddress.IsValid() {
			w.WriteAttr(xmlwriter.Attr{Name: "address", Value: d.HostAddress.String()})
		} else {
			w.WriteAttr(xmlwriter.Attr{Name: "host", Value: d.Host})
		}
		w.WriteAttr(xmlwriter.Attr{Name: "port", Value: strconv.Itoa(d.effectivePort())})
		w.EndElem("endpoint")
	}

	w.StartElem(xmlwriter.Elem{Name: "auth"})
	w.WriteAttr(xmlwriter.Attr{Name: "user", Value: d.UserName})
	w.WriteAttr(xmlwriter.Attr{Name: "resource", Value: d.Resource})
	for _, name := range d.Mechanisms.Allowed() {
		w.StartElem(xmlwriter.Elem{Name: "mechanism"})
		w.WriteText(name)
		w.EndElem("mechanism")
	}
	w.EndElem("auth")

	w.StartElem(xmlwriter.Elem{Name: "trust"})
	w.WriteAttr(xmlwriter.Attr{Name: "mode", Value: d.Trust.Mode.String()})
	w.WriteAttr(xmlwriter.Attr{Name: "status", Value: d.Trust.Status.String()})
	if d.Trust.Err != nil {
		w.WriteText(d.Trust.Err.Error())
	}
	w.EndElem("trust")

	if d.Proxy != nil {
		w.StartElem(xmlwriter.Elem{Name: "proxy"})
		w.WriteAttr(xmlwriter.Attr{Name: "type", Value: string(d.Proxy.Type)})
		w.WriteAttr(xmlwriter.Attr{Name: "host", Value: d.Proxy.Host})
		w.WriteAttr(xmlwriter.Attr{Name: "port", Value: strconv.Itoa(d.Proxy.Port)})
		if d.Proxy.User != "" {
			w.WriteAttr(xmlwriter.Attr{Name: "user", Value: d.Proxy.User})
		}
		w.EndElem("proxy")
	}

	w.EndAllFlush()
	return buf.String()
}
