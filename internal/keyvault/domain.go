package keyvault

import (
	"regexp"
	"strings"
)

// domainPattern is spec §3's post-normalization shape: [A-Z0-9_-]+.
var domainPattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// NormalizeDomain upper-cases and trims a domain identifier, per spec §3,
// and rejects anything that doesn't match [A-Z0-9_-]+ afterward.
func NormalizeDomain(domain string) (string, error) {
	norm := strings.ToUpper(strings.TrimSpace(domain))
	if norm == "" {
		return "", newError(InvalidArgument, "normalize domain", nil, "domain is empty")
	}
	if !domainPattern.MatchString(norm) {
		return "", newError(InvalidArgument, "normalize domain", nil, "domain %q does not match [A-Z0-9_-]+ after normalization", norm)
	}
	return norm, nil
}
