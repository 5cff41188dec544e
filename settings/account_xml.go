package settings

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	xpp "github.com/mmcdole/goxpp"
)

// Reads an exported account.
//
//	<account server="example.com" user="alice" resource="phone" tls="required" compression="false">
//	  <password>secret</password>
//	  <host port="5223">10.0.0.5</host>
//	  <proxy type="socks5" host="127.0.0.1" port="1080" user="bob">
//	    <password>hunter2</password>
//	  </proxy>
//	</account>
func DecodeAccount(r io.Reader) (*ConnectionSettings, error) {
	crReader := func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	parser := xpp.NewXMLPullParser(r, false, crReader)
	for {
		event, err := parser.Next()
		if err != nil {
			return nil, err
		}
		if event == xpp.EndDocument {
			return nil, errors.New("no account element found")
		}
		if event == xpp.StartTag {
			break
		}
	}
	if parser.Name != "account" {
		return nil, fmt.Errorf("expected account tag, got %s", parser.Name)
	}

	s := &ConnectionSettings{
		ServerName: parser.Attribute("server"),
		UserName:   parser.Attribute("user"),
		Resource:   parser.Attribute("resource"),
		Proxy:      ProxySettings{Type: ProxyNone},
	}
	var err error
	if s.TLSMode, err = ParseTLSMode(parser.Attribute("tls")); err != nil {
		return nil, err
	}
	s.Compression = parser.Attribute("compression") == "true"

	for {
		event, err := parser.Next()
		if err != nil {
			return nil, err
		}
		switch event {
		case xpp.EndTag:
			return s, nil
		case xpp.EndDocument:
			return nil, errors.New("unexpected end of document inside account")
		case xpp.StartTag:
			if err := decodeAccountChild(parser, s); err != nil {
				return nil, err
			}
		}
	}
}

func decodeAccountChild(parser *xpp.XMLPullParser, s *ConnectionSettings) error {
	switch parser.Name {
	case "password":
		text, err := parser.NextText()
		if err != nil {
			return err
		}
		s.Password = text
	case "host":
		port, err := parsePort(parser.Attribute("port"))
		if err != nil {
			return err
		}
		text, err := parser.NextText()
		if err != nil {
			return err
		}
		s.CustomHost = true
		s.Host = strings.TrimSpace(text)
		s.Port = port
	case "proxy":
		return decodeProxy(parser, &s.Proxy)
	default:
		return parser.Skip()
	}
	return nil
}

func decodeProxy(parser *xpp.XMLPullParser, p *ProxySettings) error {
	t, err := ParseProxyType(parser.Attribute("type"))
	if err != nil {
		return err
	}
	port, err := parsePort(parser.Attribute("port"))
	if err != nil {
		return err
	}
	p.Type = t
	p.Host = parser.Attribute("host")
	p.Port = port
	p.User = parser.Attribute("user")

	for {
		event, err := parser.Next()
		if err != nil {
			return err
		}
		switch event {
		case xpp.EndTag:
			return nil
		case xpp.EndDocument:
			return errors.New("unexpected end of document inside proxy")
		case xpp.StartTag:
			if parser.Name != "password" {
				if err := parser.Skip(); err != nil {
					return err
				}
				continue
			}
			text, err := parser.NextText()
			if err != nil {
				return err
			}
			p.Password = text
		}
	}
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 0xFFFF {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
