// Package cryptoprovider implements the CryptoProvider external collaborator
// spec §4.1 names: RSA keypair generation, PEM<->JWK conversion, PEM->opaque
// signing key import, raw signing, and KID minting/parsing. Spec §1 treats
// this as "interface only" from the core's point of view; this package is
// the concrete, runnable default the rest of the module is tested against.
package cryptoprovider

import (
	"crypto/rsa"
)

// SigningKey is the opaque, non-extractable handle §4.1 describes. Callers
// outside this package only ever pass it back into Sign.
type SigningKey struct {
	key *rsa.PrivateKey
}

// JWK is the JSON Web Key shape spec §6 fixes for published keys:
// {kty, n, e, kid, use, alg}.
type JWK struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
}

// ParsedKID is the structured decomposition spec §4.1's ParseKID returns.
type ParsedKID struct {
	Domain   string
	Date     string // YYYYMMDD
	Time     string // HHMMSS
	UniqueID string // 8 upper-case hex digits
}

// Provider is the CryptoProvider contract spec §4.1 defines.
type Provider interface {
	GenerateKeyPair() (publicPEM string, privatePEM string, err error)
	ImportPrivateKey(privatePEM string) (SigningKey, error)
	Sign(key SigningKey, data []byte) (string, error)
	PemToJWK(publicPEM, kid string) (JWK, error)
	MintKID(domain string) (string, error)
	ParseKID(kid string) (ParsedKID, bool)
	CanonicalHash(value any) (string, error)
}

// RSAProvider is the default Provider: RSA-4096, SPKI/PKCS#8 PEM,
// RSASSA-PKCS1-v1_5 with SHA-256, per spec §6's cryptographic constants.
type RSAProvider struct {
	// KeyBits overrides the RSA modulus size; zero means 4096 (spec default).
	KeyBits int
}

func (p *RSAProvider) bits() int {
	if p.KeyBits <= 0 {
		return 4096
	}
	return p.KeyBits
}
