package keyvault

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// TestSignVerifiesUnderActiveKeyJWK exercises spec §8's round-trip law: a
// token produced by Sign verifies under the JWK published for the signing
// domain's active KID.
func TestSignVerifiesUnderActiveKeyJWK(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	kid, err := h.generator.Generate(ctx, "USER")
	require.NoError(t, err)
	_, err = h.resolver.SetActive("USER", kid)
	require.NoError(t, err)

	token, err := h.signer.Sign(ctx, "USER", map[string]any{"sub": "u1"}, SignOptions{})
	require.NoError(t, err)

	pub, err := h.repo.ReadPublicPEM(ctx, kid)
	require.NoError(t, err)
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pub))
	require.NoError(t, err)

	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		require.Equal(t, kid, tok.Header["kid"])
		return pubKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, "u1", claims["sub"])
}
