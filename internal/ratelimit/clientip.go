package ratelimit

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"
)

// GetClientIP returns the caller's IP. Forwarding headers are only read
// when trustProxy is set; then the rightmost public X-Forwarded-For entry
// wins, since that is the one our proxy appended.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop != "" && !isPrivateIP(hop) {
					return hop
				}
			}
			return strings.TrimSpace(hops[len(hops)-1])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if addrPort, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return addrPort.Addr().String()
	}
	if addr, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		return addr.String()
	}
	// host:port with an odd host form, e.g. a zone or a bare hostname
	if i := strings.LastIndex(r.RemoteAddr, ":"); i != -1 {
		if addr, err := netip.ParseAddr(r.RemoteAddr[:i]); err == nil {
			return addr.String()
		}
	}
	return r.RemoteAddr
}

// isPrivateIP reports whether s is a private, loopback or link-local
// address. IPv4-mapped IPv6 addresses are judged as IPv4.
func isPrivateIP(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}

// SanitizeIdentifier masks an e-mail address or phone number for logs.
func SanitizeIdentifier(identifier string) string {
	identifier = normalizeAddress(identifier)
	if local, domain, ok := strings.Cut(identifier, "@"); ok {
		if len(local) > 2 {
			return local[:2] + "***@" + domain
		}
		return "***@" + domain
	}
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}

// LogRateLimitExceeded logs a blocked auth request without the raw
// identifier.
func LogRateLimitExceeded(limitType, identifier, ip, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Auth rate limit exceeded")
}
