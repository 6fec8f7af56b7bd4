package linkpreview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_CanonicalForm(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases host",
			in:   "https://Shop.Example.COM/item",
			want: "https://shop.example.com/item",
		},
		{
			name: "strips default https port",
			in:   "https://shop.example.com:443/item",
			want: "https://shop.example.com/item",
		},
		{
			name: "strips default http port",
			in:   "http://shop.example.com:80/item",
			want: "http://shop.example.com/item",
		},
		{
			name: "keeps non-default port",
			in:   "https://shop.example.com:8443/item",
			want: "https://shop.example.com:8443/item",
		},
		{
			name: "removes fragment",
			in:   "https://shop.example.com/item#reviews",
			want: "https://shop.example.com/item",
		},
		{
			name: "strips trailing slash on non-root path",
			in:   "https://shop.example.com/item/",
			want: "https://shop.example.com/item",
		},
		{
			name: "keeps root path slash",
			in:   "https://shop.example.com/",
			want: "https://shop.example.com/",
		},
		{
			name: "sorts query parameters",
			in:   "https://shop.example.com/item?z=1&a=2&m=3",
			want: "https://shop.example.com/item?a=2&m=3&z=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_DropsTrackingParams(t *testing.T) {
	got, err := Normalize("https://shop.example/item?id=1&utm_source=ig&fbclid=x")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/item?id=1", got)
}

func TestNormalize_TrackingParamsCaseInsensitive(t *testing.T) {
	got, err := Normalize("https://shop.example/item?id=1&UTM_Campaign=spring&GCLID=abc")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/item?id=1", got)
}

func TestNormalize_AllParamsTracking(t *testing.T) {
	got, err := Normalize("https://shop.example/item?utm_source=ig&ref=home")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/item", got)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://Shop.Example.COM:443/item/?z=1&a=2&utm_medium=email#frag",
		"http://example.com",
		"https://example.com/a/b/c/?id=5",
		"https://example.com/search?q=gift+ideas&page=2",
	}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err, "first pass: %s", in)
		twice, err := Normalize(once)
		require.NoError(t, err, "second pass: %s", once)
		assert.Equal(t, once, twice, "normalize must be idempotent for %s", in)
	}
}

func TestNormalize_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"ftp scheme", "ftp://example.com/file"},
		{"javascript scheme", "javascript:alert(1)"},
		{"relative url", "/just/a/path"},
		{"empty", ""},
		{"garbage", "::::not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInvalidURL), "expected INVALID_URL, got %v", err)
		})
	}
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "shop.example.com", ExtractDomain("https://www.shop.example.com/item"))
	assert.Equal(t, "example.com", ExtractDomain("http://example.com:8080/x"))
	assert.Equal(t, "", ExtractDomain("::::not a url"))
}
