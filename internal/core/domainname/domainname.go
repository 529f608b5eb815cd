// Package domainname turns user and provider supplied hosts into the canonical
// registrable form used as a key everywhere else
package domainname

import (
	"net"
	"net/url"
	"strings"

	perr "seochecker/internal/platform/errors"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var profile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(true),
)

// Normalize lowercases raw, drops scheme, path, port and a leading www.,
// converts it to ASCII and checks it ends in a known public suffix
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", perr.InvalidArgf("empty domain")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "invalid domain %q", raw)
	}
	host := u.Hostname()
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", perr.InvalidArgf("invalid domain %q", raw)
	}
	if net.ParseIP(host) != nil {
		return "", perr.InvalidArgf("ip addresses are not domains: %q", raw)
	}

	ascii, err := profile.ToASCII(host)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "invalid domain %q", raw)
	}

	suffix, icann := publicsuffix.PublicSuffix(ascii)
	if !icann && !strings.Contains(suffix, ".") {
		return "", perr.InvalidArgf("unknown public suffix in %q", raw)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(ascii); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "invalid domain %q", raw)
	}
	return ascii, nil
}

// FromURL is the lenient form used on provider payloads and returns
// its input unchanged when it cannot be normalized
func FromURL(raw string) string {
	d, err := Normalize(raw)
	if err != nil {
		return raw
	}
	return d
}
