package model

import (
	"fmt"
	"strings"
)

// Protocol identifies a proxy protocol family. Values are always lowercase.
type Protocol string

const (
	ProtocolHysteria2   Protocol = "hysteria2"
	ProtocolShadowsocks Protocol = "shadowsocks"
	ProtocolVMess       Protocol = "vmess"
	ProtocolTUIC        Protocol = "tuic"
	ProtocolTrojan      Protocol = "trojan"
	ProtocolHTTP        Protocol = "http"
	ProtocolSOCKS       Protocol = "socks"
)

// ParseProtocol normalizes a protocol tag from a source payload. Common
// aliases map onto the canonical tag; unknown tags are rejected.
func ParseProtocol(s string) (Protocol, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hysteria2", "hy2":
		return ProtocolHysteria2, true
	case "shadowsocks", "ss":
		return ProtocolShadowsocks, true
	case "vmess":
		return ProtocolVMess, true
	case "tuic":
		return ProtocolTUIC, true
	case "trojan":
		return ProtocolTrojan, true
	case "http", "https":
		return ProtocolHTTP, true
	case "socks", "socks5":
		return ProtocolSOCKS, true
	default:
		return "", false
	}
}

// Hysteria2Params are the hysteria2-only descriptor fields.
type Hysteria2Params struct {
	Password string
	UpMbps   int
	DownMbps int
}

// ShadowsocksParams are the shadowsocks-only descriptor fields.
type ShadowsocksParams struct {
	Method   string
	Password string
}

// VMessParams are the vmess-only descriptor fields.
type VMessParams struct {
	UUID      string
	Transport string // "tcp", "ws", "grpc", ...
	Path      string
	Host      string
}

// TUICParams are the tuic-only descriptor fields.
type TUICParams struct {
	UUID     string
	Password string
}

// TrojanParams are the trojan-only descriptor fields.
type TrojanParams struct {
	Password string
}

// Descriptor is one normalized candidate proxy endpoint. Exactly the variant
// matching Protocol is non-nil; http and socks carry no extra fields.
// Descriptors are immutable once produced by the parser.
type Descriptor struct {
	Protocol Protocol
	Host     string
	Port     int
	Remark   string // optional display name from the source
	Source   string // originating subscription URL

	Hysteria2   *Hysteria2Params
	Shadowsocks *ShadowsocksParams
	VMess       *VMessParams
	TUIC        *TUICParams
	Trojan      *TrojanParams
}

// Valid reports whether the descriptor has a usable endpoint.
func (d Descriptor) Valid() bool {
	return d.Protocol != "" && d.Host != "" && d.Port >= 1 && d.Port <= 65535
}

// Addr returns the dialable "host:port" form.
func (d Descriptor) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Endpoint is the dedupe key: one (protocol, host, port) triple may appear
// at most once in a selection.
func (d Descriptor) Endpoint() string {
	return fmt.Sprintf("%s|%s:%d", d.Protocol, d.Host, d.Port)
}
