package linkpreview

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		// loopback
		{"127.0.0.1", true},
		{"127.8.8.8", true},
		{"::1", true},
		// RFC1918
		{"10.0.0.5", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		// link-local
		{"169.254.169.254", true},
		{"fe80::1", true},
		// CGNAT
		{"100.64.0.1", true},
		{"100.127.255.254", true},
		// current network / unspecified
		{"0.0.0.0", true},
		{"0.1.2.3", true},
		{"::", true},
		// documentation and benchmark ranges
		{"192.0.2.1", true},
		{"198.51.100.7", true},
		{"203.0.113.99", true},
		{"198.18.0.1", true},
		{"192.0.0.1", true},
		// multicast, reserved, broadcast
		{"224.0.0.1", true},
		{"240.0.0.1", true},
		{"255.255.255.255", true},
		// IPv6 unique-local
		{"fc00::1", true},
		{"fd12:3456::1", true},
		// public addresses
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"93.184.216.34", false},
		{"172.15.0.1", false},
		{"172.32.0.1", false},
		{"100.128.0.1", false},
		{"2607:f8b0:4004:800::200e", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			require.NotNil(t, ip, "test IP must parse")
			assert.Equal(t, tt.private, IsPrivateIP(ip))
		})
	}
}

func TestValidator_ValidateURL(t *testing.T) {
	v := NewValidator(DefaultConfig())

	tests := []struct {
		name     string
		url      string
		wantKind Kind
	}{
		{"public hostname passes", "https://shop.example.com/item", ""},
		{"localhost blocked", "http://localhost/admin", KindFetchBlocked},
		{"localhost with trailing dot blocked", "http://localhost./admin", KindFetchBlocked},
		{"loopback literal blocked", "http://127.0.0.1/", KindFetchBlocked},
		{"ipv6 loopback literal blocked", "http://[::1]/", KindFetchBlocked},
		{"metadata endpoint literal blocked", "http://169.254.169.254/latest/meta-data", KindFetchBlocked},
		{"rfc1918 literal blocked", "http://10.0.0.5/", KindFetchBlocked},
		{"ftp scheme rejected", "ftp://example.com/", KindInvalidURL},
		{"public literal passes", "http://93.184.216.34/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)

			err = v.ValidateURL(u)
			if tt.wantKind == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, IsKind(err, tt.wantKind), "expected %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestValidator_AllowLoopback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowLoopback = true
	v := NewValidator(cfg)

	u, err := url.Parse("http://127.0.0.1:8080/page")
	require.NoError(t, err)
	assert.NoError(t, v.ValidateURL(u), "loopback should pass when allowed")

	// Everything else stays blocked.
	u, err = url.Parse("http://169.254.169.254/")
	require.NoError(t, err)
	assert.Error(t, v.ValidateURL(u), "link-local must stay blocked")

	u, err = url.Parse("http://10.0.0.5/")
	require.NoError(t, err)
	assert.Error(t, v.ValidateURL(u), "RFC1918 must stay blocked")
}

func staticLookup(ips ...string) LookupIPFunc {
	return func(ctx context.Context, host string) ([]net.IP, error) {
		var out []net.IP
		for _, s := range ips {
			out = append(out, net.ParseIP(s))
		}
		return out, nil
	}
}

func TestResolver_BlocksPrivateAnswer(t *testing.T) {
	v := NewValidator(DefaultConfig())
	r := NewResolverWithLookup(v, staticLookup("10.0.0.5"))

	_, err := r.Resolve(context.Background(), "internal.example.com")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFetchBlocked))
}

func TestResolver_BlocksMixedAnswers(t *testing.T) {
	// One private answer poisons the whole resolution; the client's address
	// selection is not under our control, so fail closed.
	v := NewValidator(DefaultConfig())
	r := NewResolverWithLookup(v, staticLookup("93.184.216.34", "192.168.0.10"))

	_, err := r.Resolve(context.Background(), "rebind.example.com")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFetchBlocked))
}

func TestResolver_BlocksPrivateIPv6Answer(t *testing.T) {
	v := NewValidator(DefaultConfig())
	r := NewResolverWithLookup(v, staticLookup("fd00::1"))

	_, err := r.Resolve(context.Background(), "ula.example.com")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFetchBlocked))
}

func TestResolver_NoRecords(t *testing.T) {
	v := NewValidator(DefaultConfig())

	empty := NewResolverWithLookup(v, staticLookup())
	_, err := empty.Resolve(context.Background(), "nowhere.example.com")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFetchBlocked))

	failing := NewResolverWithLookup(v, func(ctx context.Context, host string) ([]net.IP, error) {
		return nil, errors.New("NXDOMAIN")
	})
	_, err = failing.Resolve(context.Background(), "nxdomain.example.com")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFetchBlocked))
}

func TestResolver_PublicAnswersPass(t *testing.T) {
	v := NewValidator(DefaultConfig())
	r := NewResolverWithLookup(v, staticLookup("93.184.216.34", "2607:f8b0:4004:800::200e"))

	ips, err := r.Resolve(context.Background(), "shop.example.com")
	require.NoError(t, err)
	assert.Len(t, ips, 2)
}
