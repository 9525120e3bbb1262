package cryptoprovider

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// GenerateKeyPair generates an RSA key pair and returns SPKI/PEM public and
// PKCS#8/PEM private encodings, per spec §4.1.
func (p *RSAProvider) GenerateKeyPair() (string, string, error) {
	priv, err := rsa.GenerateKey(rand.Reader, p.bits())
	if err != nil {
		return "", "", fmt.Errorf("cryptoprovider: generate key: %w", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("cryptoprovider: marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("cryptoprovider: marshal private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})

	return string(pubPEM), string(privPEM), nil
}

// ImportPrivateKey parses a PKCS#8 PEM private key into an opaque SigningKey
// bound to RSASSA-PKCS1-v1_5/SHA-256 (spec §4.1).
func (p *RSAProvider) ImportPrivateKey(privatePEM string) (SigningKey, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return SigningKey{}, fmt.Errorf("cryptoprovider: no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return SigningKey{}, fmt.Errorf("cryptoprovider: parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return SigningKey{}, fmt.Errorf("cryptoprovider: private key is not RSA")
	}
	return SigningKey{key: rsaKey}, nil
}

// Sign computes the raw RSASSA-PKCS1-v1_5/SHA-256 signature over data and
// returns it base64url-encoded without padding, per RFC 7515 (spec §4.1).
func (p *RSAProvider) Sign(key SigningKey, data []byte) (string, error) {
	if key.key == nil {
		return "", fmt.Errorf("cryptoprovider: empty signing key")
	}
	sum := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key.key, crypto.SHA256, sum[:])
	if err != nil {
		return "", fmt.Errorf("cryptoprovider: sign: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}
