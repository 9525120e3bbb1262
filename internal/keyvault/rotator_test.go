package keyvault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itsGurdevSingh/keyvault/internal/blobstore"
	"github.com/itsGurdevSingh/keyvault/internal/cryptoprovider"
	"github.com/itsGurdevSingh/keyvault/internal/lockstore"
	"github.com/itsGurdevSingh/keyvault/internal/txsession"
)

type harness struct {
	repo      *KeyRepository
	metadata  *MetadataManager
	registry  *ActiveKidRegistry
	resolver  *KeyResolver
	signer    *Signer
	jwks      *JwksBuilder
	janitor   *Janitor
	generator *Generator
	locks     *lockstore.InMemory
	rotator   *Rotator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := blobstore.New(t.TempDir())
	require.NoError(t, err)

	crypto := &cryptoprovider.RSAProvider{KeyBits: 2048}
	repo := NewKeyRepository(store, crypto, nil)
	metadata := NewMetadataManager(store)
	registry := NewActiveKidRegistry()
	resolver := NewKeyResolver(registry, repo)
	signer := NewSigner(resolver, crypto, 0, 0, nil)
	jwks := NewJwksBuilder(repo, crypto, nil)
	janitor := NewJanitor(repo, metadata, signer, jwks, time.Hour, nil, nil)
	generator := NewGenerator(crypto, repo, metadata, nil)
	locks := lockstore.NewInMemory()
	rotator := NewRotator(generator, resolver, janitor, locks, nil, nil)

	return &harness{
		repo: repo, metadata: metadata, registry: registry, resolver: resolver,
		signer: signer, jwks: jwks, janitor: janitor, generator: generator,
		locks: locks, rotator: rotator,
	}
}

func noopCb(Session) error { return nil }

func TestRotatorBootstrapAndSign(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	k1, err := h.generator.Generate(ctx, "USER")
	require.NoError(t, err)
	_, err = h.resolver.SetActive("USER", k1)
	require.NoError(t, err)

	token, err := h.signer.Sign(ctx, "USER", map[string]any{"sub": "u1"}, SignOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	active, err := h.resolver.ActiveKID("USER")
	require.NoError(t, err)
	require.Equal(t, k1, active)
}

func TestRotatorHappyRotation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	k1, err := h.generator.Generate(ctx, "USER")
	require.NoError(t, err)
	_, err = h.resolver.SetActive("USER", k1)
	require.NoError(t, err)

	session := txsession.NewInMemory()
	newActive, err := h.rotator.RotateKeys(ctx, "USER", noopCb, session)
	require.NoError(t, err)
	require.NotEmpty(t, newActive)
	require.NotEqual(t, k1, newActive)

	active, err := h.resolver.ActiveKID("USER")
	require.NoError(t, err)
	require.Equal(t, newActive, active)

	_, err = h.repo.ReadPrivatePEM(ctx, k1)
	require.Error(t, err)

	pub, err := h.repo.ReadPublicPEM(ctx, k1)
	require.NoError(t, err)
	require.NotEmpty(t, pub)

	rec, err := h.metadata.Read(ctx, "USER", k1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, rec.ExpiredAt)
}

func TestRotatorCallbackFailureRollback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	k1, err := h.generator.Generate(ctx, "USER")
	require.NoError(t, err)
	_, err = h.resolver.SetActive("USER", k1)
	require.NoError(t, err)

	session := txsession.NewInMemory()
	failingCb := func(Session) error { return errors.New("db callback boom") }

	result, err := h.rotator.RotateKeys(ctx, "USER", failingCb, session)
	require.Error(t, err)
	require.True(t, IsKind(err, Conflict), "expected a Conflict error for a rolled-back rotation, got %v", err)
	require.Empty(t, result)

	active, err := h.resolver.ActiveKID("USER")
	require.NoError(t, err)
	require.Equal(t, k1, active)

	rec, err := h.metadata.Read(ctx, "USER", k1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Nil(t, rec.ExpiredAt)

	require.Contains(t, session.Calls, "abort")
	require.Contains(t, session.Calls, "end")
}

func TestRotatorLeaseContention(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	k1, err := h.generator.Generate(ctx, "USER")
	require.NoError(t, err)
	_, err = h.resolver.SetActive("USER", k1)
	require.NoError(t, err)

	_, ok, err := h.locks.Acquire(ctx, "rotation:USER", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	session := txsession.NewInMemory()
	result, err := h.rotator.RotateKeys(ctx, "USER", noopCb, session)
	require.NoError(t, err)
	require.Empty(t, result)
	require.Empty(t, session.Calls)

	active, err := h.resolver.ActiveKID("USER")
	require.NoError(t, err)
	require.Equal(t, k1, active)
}

func TestJanitorReap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	k1, err := h.generator.Generate(ctx, "USER")
	require.NoError(t, err)

	_, err = h.metadata.AddExpiry(ctx, "USER", k1, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	err = h.janitor.CleanDomain(ctx)
	require.NoError(t, err)

	_, err = h.repo.ReadPublicPEM(ctx, k1)
	require.Error(t, err)

	// Origin metadata is untouched by the reaper (spec scenario 5): AddExpiry
	// only ever wrote the archive record, so the origin record read here is
	// the original one, with no expiredAt of its own.
	rec, err := h.metadata.Read(ctx, "USER", k1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Nil(t, rec.ExpiredAt)
}
