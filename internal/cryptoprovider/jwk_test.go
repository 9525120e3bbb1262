package cryptoprovider

import "testing"

func TestPemToJWKRoundTrip(t *testing.T) {
	p := &RSAProvider{KeyBits: 2048}
	pub, priv, err := p.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if pub == "" || priv == "" {
		t.Fatal("GenerateKeyPair returned empty PEM")
	}

	jwk, err := p.PemToJWK(pub, "USER-20260109-133000-ABCDEF01")
	if err != nil {
		t.Fatalf("PemToJWK: %v", err)
	}
	if jwk.Kty != "RSA" {
		t.Errorf("Kty = %q, want RSA", jwk.Kty)
	}
	if jwk.Alg != "RS256" {
		t.Errorf("Alg = %q, want RS256", jwk.Alg)
	}
	if jwk.Use != "sig" {
		t.Errorf("Use = %q, want sig", jwk.Use)
	}
	if jwk.N == "" || jwk.E == "" {
		t.Error("N/E must not be empty")
	}
}

func TestSignVerifiesUnderImportedKey(t *testing.T) {
	p := &RSAProvider{KeyBits: 2048}
	_, priv, err := p.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	key, err := p.ImportPrivateKey(priv)
	if err != nil {
		t.Fatalf("ImportPrivateKey: %v", err)
	}
	sig, err := p.Sign(key, []byte("signing-input"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig == "" {
		t.Error("Sign returned empty signature")
	}
}
