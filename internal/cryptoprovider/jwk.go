package cryptoprovider

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"

	josejwk "github.com/go-jose/go-jose/v3"
)

// PemToJWK converts a PEM-encoded SPKI public key into the JWK shape spec §6
// fixes, using go-jose to do the RSA-to-JWK field encoding (n, e) correctly
// rather than hand-rolling big.Int byte trimming.
func (p *RSAProvider) PemToJWK(publicPEM, kid string) (JWK, error) {
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil {
		return JWK{}, fmt.Errorf("cryptoprovider: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return JWK{}, fmt.Errorf("cryptoprovider: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return JWK{}, fmt.Errorf("cryptoprovider: public key is not RSA")
	}

	jwk := josejwk.JSONWebKey{
		Key:       rsaPub,
		KeyID:     kid,
		Algorithm: "RS256",
		Use:       "sig",
	}
	raw, err := jwk.MarshalJSON()
	if err != nil {
		return JWK{}, fmt.Errorf("cryptoprovider: marshal jwk: %w", err)
	}

	// go-jose emits kty/n/e/use/alg/kid already; decode into our fixed shape
	// so callers get exactly the §6 field set regardless of library additions.
	var decoded struct {
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return JWK{}, fmt.Errorf("cryptoprovider: decode jwk: %w", err)
	}

	return JWK{
		Kty: decoded.Kty,
		N:   decoded.N,
		E:   decoded.E,
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
	}, nil
}
