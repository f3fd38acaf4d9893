package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds configuration for client IP extraction. Forwarding headers
// are honored only when the request arrives from a trusted proxy, so a
// caller cannot spoof the IP recorded against a login attempt.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ClientIP extracts the real client IP address from the request.
//
// Flow:
// 1. If request is from a trusted proxy, check X-Forwarded-For
// 2. If request is from a trusted proxy, check X-Real-IP
// 3. Fall back to RemoteAddr
func (c *IPConfig) ClientIP(r *http.Request) string {
	remoteIP := remoteAddr(r)

	if c != nil && c.fromTrustedProxy(remoteIP) {
		// X-Forwarded-For can contain multiple IPs, take the first valid one
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if net.ParseIP(ip) != nil {
					return ip
				}
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	return remoteIP
}

// remoteAddr extracts the IP address from RemoteAddr (removing port if present)
func remoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return "unknown"
}

// fromTrustedProxy checks if an IP address is within any trusted proxy CIDR range
func (c *IPConfig) fromTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}
