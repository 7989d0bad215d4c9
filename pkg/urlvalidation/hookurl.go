// Package urlvalidation guards outgoing hook calls against requests to
// internal addresses.
package urlvalidation

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strings"
)

// ErrForbiddenURL is returned for URLs that must not be called.
var ErrForbiddenURL = errors.New("forbidden hook URL")

// Option configures URL validation behavior.
type Option func(*validationConfig)

type validationConfig struct {
	allowPrivate bool
	allowHosts   []string
	lookup       func(host string) ([]string, error)
}

// AllowPrivateIPs disables the private address check. Use for tests and for
// deployments where menu hooks live on the operator network.
func AllowPrivateIPs() Option {
	return func(c *validationConfig) {
		c.allowPrivate = true
	}
}

// AllowHosts exempts the named hosts from the address check.
func AllowHosts(hosts ...string) Option {
	return func(c *validationConfig) {
		for _, h := range hosts {
			c.allowHosts = append(c.allowHosts, strings.ToLower(h))
		}
	}
}

// WithLookup replaces DNS resolution.
func WithLookup(fn func(host string) ([]string, error)) Option {
	return func(c *validationConfig) {
		c.lookup = fn
	}
}

// ValidateHookURL checks that rawURL is an http(s) URL whose host does not
// resolve to a private, loopback or otherwise reserved address.
func ValidateHookURL(rawURL string, opts ...Option) error {
	cfg := validationConfig{lookup: net.LookupHost}
	for _, opt := range opts {
		opt(&cfg)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrForbiddenURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q not allowed", ErrForbiddenURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrForbiddenURL)
	}
	if cfg.allowPrivate || slices.Contains(cfg.allowHosts, host) {
		return nil
	}

	addrs := []string{host}
	if _, err := netip.ParseAddr(host); err != nil {
		addrs, err = cfg.lookup(host)
		if err != nil {
			return fmt.Errorf("%w: cannot resolve %q: %w", ErrForbiddenURL, host, err)
		}
	}

	for _, a := range addrs {
		ip, err := netip.ParseAddr(a)
		if err != nil {
			continue
		}
		if Reserved(ip) {
			return fmt.Errorf("%w: %s resolves to reserved address %s", ErrForbiddenURL, host, ip)
		}
	}
	return nil
}

var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Reserved reports whether ip is in a private or reserved range.
func Reserved(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range reservedPrefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
