package middleware

import (
	"fmt"
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

// NewIPExtractor decides how echo resolves c.RealIP(), which keys the rate
// limiter. With no trusted proxies the peer address is used and forwarding
// headers are ignored. Otherwise X-Forwarded-For is only honored when the
// peer is inside one of the given CIDR ranges.
func NewIPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	var ranges []*net.IPNet
	for _, cidr := range trustedProxies {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		ranges = append(ranges, ipNet)
	}
	if len(ranges) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range ranges {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}
