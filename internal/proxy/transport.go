package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// restrictedTransport only permits connections to the configured upstream
// host. The gateway never dials anywhere else, so a request that smuggles a
// different destination through path or header tricks fails at the dialer.
func restrictedTransport(allowedHost string) *http.Transport {
	allowed := strings.ToLower(allowedHost)

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			if !strings.EqualFold(host, allowed) {
				return nil, fmt.Errorf("dial to %q is denied, upstream is %q", host, allowed)
			}

			dialer := &net.Dialer{Timeout: 5 * time.Second}
			return dialer.DialContext(ctx, network, addr)
		},
	}
}
