package settings

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "XMPPCONN"

	KEY_CHECK_CERTIFICATE = "global.check_certificate"
	KEY_PLAIN_TEXT_AUTH   = "global.plain_text_auth"
)

// Contents of a settings file.
//
//	global:
//	  check_certificate: true
//	  plain_text_auth: false
//	account:
//	  server: example.com
//	  user: alice
//	  tls_mode: required
//	  proxy:
//	    type: orbot
type File struct {
	Global  Global             `mapstructure:"global"`
	Account ConnectionSettings `mapstructure:"account"`
}

// Reads settings from path (yaml, json or toml).
// Environment variables such as XMPPCONN_GLOBAL_PLAIN_TEXT_AUTH override file values.
func Load(path string) (*File, *viper.Viper, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}
	f := new(File)
	err := v.Unmarshal(f, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToTLSModeHook,
		stringToProxyTypeHook,
	)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode settings %s: %w", path, err)
	}
	if f.Account.TLSMode == "" {
		f.Account.TLSMode = TLSEnabled
	}
	if f.Account.Proxy.Type == "" {
		f.Account.Proxy.Type = ProxyNone
	}
	return f, v, nil
}

// Viper instance with defaults and env overrides set up.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault(KEY_CHECK_CERTIFICATE, true)
	v.SetDefault(KEY_PLAIN_TEXT_AUTH, false)
	v.SetDefault("account.tls_mode", string(TLSEnabled))
	v.SetDefault("account.proxy.type", string(ProxyNone))
	return v
}

// GlobalSettings backed by viper, so every build sees the current values.
type Live struct {
	V *viper.Viper
}

func (l Live) SecurityCheckCertificate() bool   { return l.V.GetBool(KEY_CHECK_CERTIFICATE) }
func (l Live) ConnectionUsePlainTextAuth() bool { return l.V.GetBool(KEY_PLAIN_TEXT_AUTH) }

func stringToTLSModeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(TLSMode("")) {
		return data, nil
	}
	return ParseTLSMode(data.(string))
}

func stringToProxyTypeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(ProxyType("")) {
		return data, nil
	}
	return ParseProxyType(data.(string))
}
