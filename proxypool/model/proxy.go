package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ProtocolKind 是代理协议类型。
type ProtocolKind string

const (
	KindHTTP   ProtocolKind = "HTTP"
	KindHTTPS  ProtocolKind = "HTTPS"
	KindSOCKS4 ProtocolKind = "SOCKS4"
	KindSOCKS5 ProtocolKind = "SOCKS5"
)

// Kinds lists every supported protocol kind in display order.
var Kinds = []ProtocolKind{KindHTTP, KindHTTPS, KindSOCKS4, KindSOCKS5}

// ParseKind accepts any casing ("socks5", "Socks5", "SOCKS5").
func ParseKind(s string) (ProtocolKind, bool) {
	s = strings.TrimSpace(s)
	for _, k := range Kinds {
		if strings.EqualFold(s, string(k)) {
			return k, true
		}
	}
	return "", false
}

// Scheme returns the lower-case URL scheme for the kind, e.g. "socks5".
func (k ProtocolKind) Scheme() string {
	return strings.ToLower(string(k))
}

// ProxyDescriptor 定义了一个待验证的代理。
// ID 是在添加时分配的稳定标识，之后的查找和删除都使用它，而不是表格中的位置。
type ProxyDescriptor struct {
	ID   string       `json:"id"`
	Host string       `json:"host"`
	Port int          `json:"port"`
	Kind ProtocolKind `json:"kind"`
}

// Address returns "host:port" (IPv6 hosts are bracketed).
func (d ProxyDescriptor) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// URL returns the descriptor as "{scheme}://{host}:{port}".
func (d ProxyDescriptor) URL() string {
	return fmt.Sprintf("%s://%s", d.Kind.Scheme(), d.Address())
}

func (d ProxyDescriptor) String() string {
	return d.URL()
}

// ParsePort parses a user-supplied port. An empty string is reported as missing.
func ParsePort(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, false
	}
	return port, true
}
