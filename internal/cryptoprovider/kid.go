package cryptoprovider

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// kidPattern mirrors spec §6's KID regex:
// ^[A-Z0-9_-]+-\d{8}-\d{6}-[A-F0-9]{8}$
var kidPattern = regexp.MustCompile(`^[A-Z0-9_-]+-[0-9]{8}-[0-9]{6}-[A-F0-9]{8}$`)

// suffixLen is the fixed length of "-YYYYMMDD-HHMMSS-HEX8" (1+8+1+6+1+8).
const suffixLen = 25

// MintKID mints a KID of the form DOMAIN-YYYYMMDD-HHMMSS-HEX8 (spec §3),
// where HEX8 is 8 upper-case hex digits of 4 cryptographically random bytes.
// domain is assumed already normalized by the caller.
func (p *RSAProvider) MintKID(domain string) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("cryptoprovider: empty domain")
	}
	nonce := make([]byte, 4)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cryptoprovider: read nonce: %w", err)
	}
	now := time.Now().UTC()
	kid := fmt.Sprintf("%s-%s-%s-%s",
		domain,
		now.Format("20060102"),
		now.Format("150405"),
		hex.EncodeToString(nonce),
	)
	// hex.EncodeToString is lower-case; the spec fixes HEX8 as upper-case.
	kid = upperHexSuffix(kid)
	return kid, nil
}

// upperHexSuffix upper-cases just the trailing 8 hex digits, leaving the
// domain (which may itself contain lower/mixed case before normalization
// upstream) and the numeric date/time segments untouched.
func upperHexSuffix(kid string) string {
	if len(kid) < 8 {
		return kid
	}
	head, tail := kid[:len(kid)-8], kid[len(kid)-8:]
	upper := make([]byte, len(tail))
	for i := 0; i < len(tail); i++ {
		c := tail[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}
	return head + string(upper)
}

// ParseKID decomposes a KID into domain/date/time/uniqueId. The first
// '-'-separated segment is the domain per spec §3, but since a normalized
// domain may itself contain '-', parsing walks from the right using the
// suffix's fixed width rather than splitting on '-' from the left.
func (p *RSAProvider) ParseKID(kid string) (ParsedKID, bool) {
	if !kidPattern.MatchString(kid) {
		return ParsedKID{}, false
	}
	if len(kid) <= suffixLen {
		return ParsedKID{}, false
	}
	domain := kid[:len(kid)-suffixLen]
	rest := kid[len(kid)-suffixLen+1:] // drop the separating '-' before date
	date := rest[0:8]
	timePart := rest[9:15]
	uid := rest[16:24]
	return ParsedKID{
		Domain:   domain,
		Date:     date,
		Time:     timePart,
		UniqueID: uid,
	}, true
}

// CanonicalHash returns the hex SHA-256 digest of value's canonical JSON
// serialization: keys sorted, no insignificant whitespace (spec §4.1).
func (p *RSAProvider) CanonicalHash(value any) (string, error) {
	canonical, err := canonicalJSON(value)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON re-marshals value with map keys sorted at every level.
// encoding/json already sorts map[string]any keys; this additionally
// normalizes arbitrary nested structures by round-tripping through a generic
// representation so struct field order never leaks into the hash.
func canonicalJSON(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cryptoprovider: marshal value: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("cryptoprovider: normalize value: %w", err)
	}
	return marshalSorted(generic)
}

func marshalSorted(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalSorted(t[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil
	case []any:
		out := []byte("[")
		for i, e := range t {
			if i > 0 {
				out = append(out, ',')
			}
			eb, err := marshalSorted(e)
			if err != nil {
				return nil, err
			}
			out = append(out, eb...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(t)
	}
}
