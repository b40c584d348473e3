package codec

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonwraymond/precache/domain"
)

// Sentinel errors for key encoding and decoding.
var (
	ErrEmptyCombination = errors.New("codec: combination is empty")
	ErrMalformedKey     = errors.New("codec: malformed key")
)

// Prefix returns the key prefix shared by every key Encode produces for
// the given handler. Useful for counting or filtering one handler's
// entries in a store shared by several handlers.
func Prefix(handler string) string {
	return url.QueryEscape(handler) + "?"
}

// Encode produces the canonical cache key for one handler's combination.
//
// Contract:
// - Determinism: identical (handler, pairs) input always produces a
//   byte-identical key.
// - Injectivity: distinct combinations never collide, and keys from
//   distinct handlers never collide; the handler, names and values are
//   percent-escaped so the separators cannot be forged.
func Encode(handler string, combo domain.Combination) (string, error) {
	if len(combo) == 0 {
		return "", ErrEmptyCombination
	}
	var b strings.Builder
	b.WriteString(url.QueryEscape(handler))
	b.WriteByte('?')
	for i, p := range combo {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(string(p.Value)))
	}
	return b.String(), nil
}

// Decode rehydrates a persisted key into a typed combination, validating
// it against the handler name and domain set. It fails with
// ErrMalformedKey on syntactically broken input or a key belonging to a
// different handler, and with the domain package's errors when the key
// names unknown parameters or out-of-domain values.
//
// Decode is the inverse of Encode for every key Encode can produce over
// the same handler and domains.
func Decode(key, handler string, domains []domain.Domain) (domain.Combination, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrMalformedKey)
	}
	rest, found := strings.CutPrefix(key, Prefix(handler))
	if !found {
		return nil, fmt.Errorf("%w: key %q is not for handler %q", ErrMalformedKey, key, handler)
	}
	parts := strings.Split(rest, "&")
	if len(parts) != len(domains) {
		return nil, fmt.Errorf("%w: %d pairs, want %d", ErrMalformedKey, len(parts), len(domains))
	}
	combo := make(domain.Combination, len(parts))
	for i, part := range parts {
		name, rawValue, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("%w: pair %q has no separator", ErrMalformedKey, part)
		}
		unescapedName, err := url.QueryUnescape(name)
		if err != nil {
			return nil, fmt.Errorf("%w: bad name escaping in %q: %v", ErrMalformedKey, part, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: bad value escaping in %q: %v", ErrMalformedKey, part, err)
		}

		d := domains[i]
		if unescapedName != d.Name {
			return nil, fmt.Errorf("%w: parameter %q at position %d, want %q", ErrMalformedKey, unescapedName, i, d.Name)
		}
		if !d.Contains(domain.Value(value)) {
			return nil, fmt.Errorf("%w: parameter %q value %q", domain.ErrUnknownValue, d.Name, value)
		}
		combo[i] = domain.Pair{Name: d.Name, Value: domain.Value(value)}
	}
	return combo, nil
}
