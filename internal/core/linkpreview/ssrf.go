package linkpreview

import (
	"context"
	"net"
	"net/url"
	"strings"
)

// reservedNets are IPv4/IPv6 ranges that must never be reachable through a
// user-supplied URL: private networks, link-local, CGNAT, documentation and
// benchmark ranges, multicast, and the reserved block. Parsed once at init.
var reservedNets []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8",       // current network
		"10.0.0.0/8",      // RFC1918
		"100.64.0.0/10",   // CGNAT
		"169.254.0.0/16",  // link-local
		"172.16.0.0/12",   // RFC1918
		"192.0.0.0/24",    // IETF protocol assignments
		"192.0.2.0/24",    // TEST-NET-1
		"192.168.0.0/16",  // RFC1918
		"198.18.0.0/15",   // benchmarking
		"198.51.100.0/24", // TEST-NET-2
		"203.0.113.0/24",  // TEST-NET-3
		"224.0.0.0/4",     // multicast
		"240.0.0.0/4",     // reserved, includes broadcast
		"fc00::/7",        // IPv6 unique-local
		"fe80::/10",       // IPv6 link-local
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("linkpreview: bad reserved CIDR " + cidr)
		}
		reservedNets = append(reservedNets, n)
	}
}

// blockedHostnames is the static hostname deny-list checked before DNS is ever
// consulted. DNS answers are screened separately; this just fails the obvious
// cases fast.
var blockedHostnames = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
	"ip6-localhost":         {},
	"ip6-loopback":          {},
}

// IsPrivateIP reports whether ip must not be reached from a user-supplied URL.
// It is the single source of truth for that decision and is applied to literal
// URL hosts, DNS answers, and redirect targets alike. Hostname checks alone are
// insufficient because DNS is attacker-influenced (rebinding); callers must
// re-derive and re-check the concrete IP immediately before use.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Validator performs the static (pre-DNS) SSRF checks on a URL.
type Validator struct {
	// allowLoopback permits loopback targets, for local development and tests.
	// All other reserved ranges remain blocked.
	allowLoopback bool
}

// NewValidator builds a Validator from config.
func NewValidator(cfg Config) *Validator {
	return &Validator{allowLoopback: cfg.AllowLoopback}
}

// CheckIP returns a FETCH_BLOCKED error if ip is in a disallowed range.
func (v *Validator) CheckIP(ip net.IP) error {
	if v.allowLoopback && ip.IsLoopback() {
		return nil
	}
	if IsPrivateIP(ip) {
		return newError(KindFetchBlocked, "address %s is in a private or reserved range", ip)
	}
	return nil
}

// ValidateURL performs the syntactic SSRF check: scheme, hostname deny-list,
// and a direct range check when the host is an IP literal. Hostnames that are
// not literals pass here and are screened again after DNS resolution.
func (v *Validator) ValidateURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return newError(KindInvalidURL, "unsupported scheme %q", u.Scheme)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return newError(KindInvalidURL, "URL has no hostname")
	}

	if _, blocked := blockedHostnames[host]; blocked {
		if v.allowLoopback {
			return nil
		}
		return newError(KindFetchBlocked, "hostname %q is not allowed", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		return v.CheckIP(ip)
	}
	return nil
}

// LookupIPFunc resolves A and AAAA records for a hostname. It matches the
// signature of net.Resolver.LookupIP with network "ip".
type LookupIPFunc func(ctx context.Context, host string) ([]net.IP, error)

// Resolver resolves hostnames and screens every answer through the validator.
type Resolver struct {
	lookup    LookupIPFunc
	validator *Validator
}

// NewResolver creates a Resolver backed by the system resolver.
func NewResolver(validator *Validator) *Resolver {
	return &Resolver{
		lookup: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
		validator: validator,
	}
}

// NewResolverWithLookup creates a Resolver with a custom lookup, for tests.
func NewResolverWithLookup(validator *Validator, lookup LookupIPFunc) *Resolver {
	return &Resolver{lookup: lookup, validator: validator}
}

// Resolve returns the addresses for host, failing closed: a lookup error, an
// empty answer, or a single disallowed address among the answers all block the
// resolution. The attacker chooses which answer the HTTP client would dial, so
// no "the other address is public" reasoning is attempted.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	// IP literals skip DNS but still get screened.
	if ip := net.ParseIP(host); ip != nil {
		if err := r.validator.CheckIP(ip); err != nil {
			return nil, err
		}
		return []net.IP{ip}, nil
	}

	ips, err := r.lookup(ctx, host)
	if err != nil {
		return nil, newError(KindFetchBlocked, "no DNS records for %q: %v", host, err)
	}
	if len(ips) == 0 {
		return nil, newError(KindFetchBlocked, "no DNS records for %q", host)
	}
	for _, ip := range ips {
		if err := r.validator.CheckIP(ip); err != nil {
			return nil, newError(KindFetchBlocked, "hostname %q resolves to private IP %s", host, ip)
		}
	}
	return ips, nil
}
