package httpserver

import (
	"net"
	"net/http"
	"strings"
)

// proxyHeaders is the fixed precedence for source IP resolution behind a
// trusted reverse proxy. X-Forwarded-For is scanned left to right and
// the first public hop wins.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Real-IP", "X-Forwarded-For"}

var nonPublicNets []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"100.64.0.0/10", // CGNAT
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err == nil {
			nonPublicNets = append(nonPublicNets, n)
		}
	}
}

func isPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range nonPublicNets {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}

// ClientIP resolves the request's source IP. With trustProxy set it
// walks the proxy headers in precedence order and returns the first
// public address; spoofed private or CGNAT values are skipped. Without
// proxy trust, or when no header yields a public IP, the socket peer
// address is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range proxyHeaders {
			v := r.Header.Get(h)
			if v == "" {
				continue
			}
			for _, part := range strings.Split(v, ",") {
				candidate := strings.TrimSpace(part)
				if ip := net.ParseIP(candidate); isPublicIP(ip) {
					return ip.String()
				}
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
