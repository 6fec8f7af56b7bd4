package linkpreview

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query parameters stripped during normalization: analytics
// campaign tags and click IDs from the major ad/social platforms, plus the
// generic referral params shops append to shared links. Keys are matched
// case-insensitively; anything starting with "utm_" is dropped regardless.
var trackingParams = map[string]struct{}{
	"fbclid":       {},
	"gclid":        {},
	"gbraid":       {},
	"wbraid":       {},
	"dclid":        {},
	"msclkid":      {},
	"twclid":       {},
	"ttclid":       {},
	"igshid":       {},
	"yclid":        {},
	"srsltid":      {},
	"mc_cid":       {},
	"mc_eid":       {},
	"ref":          {},
	"source":       {},
	"affiliate_id": {},
	"aff_id":       {},
}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	_, ok := trackingParams[k]
	return ok
}

// Normalize canonicalizes a URL for cache keying: lower-cased host, default
// port stripped, tracking parameters removed, remaining parameters sorted,
// fragment cleared, single trailing slash on non-root paths removed.
// Normalization is idempotent and has no side effects.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", newError(KindInvalidURL, "failed to parse URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", newError(KindInvalidURL, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", newError(KindInvalidURL, "URL has no host")
	}

	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if isTrackingParam(key) {
				delete(q, key)
			}
		}
		u.RawQuery = encodeSorted(q)
	}

	u.Fragment = ""
	u.RawFragment = ""

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}

	return u.String(), nil
}

// encodeSorted encodes query values sorted by key for a deterministic cache
// key. url.Values.Encode already sorts, but is wrapped here so the ordering
// guarantee is explicit and covered by tests.
func encodeSorted(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// ExtractDomain returns the hostname with a leading "www." stripped, for
// display purposes. It never fails; unparseable input yields "".
func ExtractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
