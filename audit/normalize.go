package audit

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// ErrInvalidURL is returned by Normalize for values that do not form a
// well-formed absolute URL.
var ErrInvalidURL = errors.New("invalid URL format")

// Normalize trims raw and prefixes https:// when it has no http(s) scheme.
// Already-schemed ASCII URLs are returned unchanged; internationalised host
// names are converted to their punycode form.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !hasHTTPScheme(s) {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", ErrInvalidURL
	}

	host := u.Hostname()
	if isASCII(host) {
		return s, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", ErrInvalidURL
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(ascii, port)
	} else {
		u.Host = ascii
	}
	return u.String(), nil
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
