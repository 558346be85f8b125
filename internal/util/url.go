package util

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsafeRedirectURI is returned for redirect URIs that cannot be registered.
var ErrUnsafeRedirectURI = errors.New("unsafe redirect uri")

// ValidateRedirectURI checks that a URI is fit to be registered for a service:
// an absolute http(s) URL with a host, no fragment and no control characters.
// Registered URIs are later compared byte-for-byte against incoming requests.
func ValidateRedirectURI(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrUnsafeRedirectURI)
	}
	if strings.ContainsAny(raw, "\r\n\t ") {
		return fmt.Errorf("%w: contains whitespace", ErrUnsafeRedirectURI)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeRedirectURI, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrUnsafeRedirectURI, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrUnsafeRedirectURI)
	}
	if u.Fragment != "" || strings.Contains(raw, "#") {
		return fmt.Errorf("%w: fragment not allowed", ErrUnsafeRedirectURI)
	}
	return nil
}

// AppendFragment returns base with params encoded into its fragment, the way
// an implicit-style grant hands a token back to the browser.
func AppendFragment(base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#" + params.Encode(), nil
}
