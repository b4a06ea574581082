// Package netguard restricts routes to allow-listed source networks.
package netguard

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"ferrylink/internal/shared/utils/response"
	"ferrylink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Allowlist is an immutable set of prefixes
type Allowlist struct {
	prefixes []netip.Prefix
}

// Parse accepts CIDRs and bare addresses; bare addresses become single-host prefixes
func Parse(entries []string) (*Allowlist, error) {
	al := &Allowlist{}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", entry, err)
			}
			al.prefixes = append(al.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", entry, err)
		}
		al.prefixes = append(al.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return al, nil
}

// Contains reports whether ip falls inside any allowed prefix
func (a *Allowlist) Contains(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (a *Allowlist) Len() int {
	return len(a.prefixes)
}

// Middleware rejects requests from outside the allowlist with 403. When enabled is false every request passes.
func Middleware(al *Allowlist, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if al == nil || !al.Contains(ip) {
			logger.GetDefault().LogWebhookRejected(c.Request.Context(), "source_not_allowed", "", ip)
			response.RespondJSON(c, "error", http.StatusForbidden, "Source address not allowed", nil, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
