package main

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/go-hclog"
	gometrics "github.com/hashicorp/go-metrics"

	"github.com/itsGurdevSingh/keyvault/internal/blobstore"
	"github.com/itsGurdevSingh/keyvault/internal/config"
	"github.com/itsGurdevSingh/keyvault/internal/cryptoprovider"
	"github.com/itsGurdevSingh/keyvault/internal/keyvault"
	"github.com/itsGurdevSingh/keyvault/internal/lockstore"
	"github.com/itsGurdevSingh/keyvault/internal/policystore"
	"github.com/itsGurdevSingh/keyvault/internal/txsession"
)

/* --------- reference collaborator wiring; replace with production
   PolicyStore/LockStore/Session backends before deploying --------- */

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "keyvaultd",
		Level: hclog.Info,
	})

	sink, err := gometrics.NewGlobal(gometrics.DefaultConfig("keyvaultd"), gometrics.NewInmemSink(10*time.Second, time.Minute))
	if err != nil {
		logger.Warn("metrics sink init failed, continuing without metrics", "error", err)
		sink = nil
	}
	metrics := keyvault.WrapMetrics(sink)

	store, err := blobstore.New(cfg.StorageRoot)
	if err != nil {
		logger.Error("init blobstore", "error", err)
		return
	}

	crypto := &cryptoprovider.RSAProvider{KeyBits: cfg.RSAKeyBits}

	repo := keyvault.NewKeyRepository(store, crypto, metrics)
	metadata := keyvault.NewMetadataManager(store)
	registry := keyvault.NewActiveKidRegistry()
	resolver := keyvault.NewKeyResolver(registry, repo)
	signer := keyvault.NewSigner(resolver, crypto, cfg.SignerDefaultTTL.Seconds(), cfg.SignerMaxPayloadBytes, metrics)
	jwks := keyvault.NewJwksBuilder(repo, crypto, metrics)
	janitor := keyvault.NewJanitor(repo, metadata, signer, jwks, cfg.GracePeriod, logger, metrics)
	generator := keyvault.NewGenerator(crypto, repo, metadata, metrics)

	// TODO: replace with a real distributed LockStore (e.g. backed by the
	// same database the PolicyStore lives in) before running more than one
	// instance of this process.
	locks := lockstore.NewInMemory()
	rotator := keyvault.NewRotator(generator, resolver, janitor, locks, logger, metrics)

	// TODO: replace with a real PolicyStore; newSession wires a fresh
	// TransactionSession per rotation attempt.
	policies := policystore.NewInMemory(func() txsession.Session { return txsession.NewInMemory() })
	scheduler := keyvault.NewRotationScheduler(rotator, policies, cfg.MaxRetries, time.Duration(cfg.RetryIntervalMs)*time.Millisecond, logger)

	ctx := context.Background()

	// Example bootstrap: mint and activate a first key for a domain, so
	// RotateKeys has something to rotate and Sign has something to sign
	// with. Replace "DEFAULT" and the rotation interval with real tenant
	// onboarding logic.
	const bootstrapDomain = "DEFAULT"
	kid, err := generator.Generate(ctx, bootstrapDomain)
	if err != nil {
		logger.Error("bootstrap generate failed", "error", err)
		return
	}
	if _, err := resolver.SetActive(bootstrapDomain, kid); err != nil {
		logger.Error("bootstrap set active failed", "error", err)
		return
	}
	policies.Upsert(bootstrapDomain, 90*24*time.Hour)

	token, err := signer.Sign(ctx, bootstrapDomain, map[string]any{"sub": "bootstrap"}, keyvault.SignOptions{})
	if err != nil {
		logger.Error("bootstrap sign failed", "error", err)
		return
	}
	logger.Info("bootstrap signed token", "domain", bootstrapDomain, "kid", kid, "token", token)

	set, err := jwks.GetJWKS(ctx, bootstrapDomain)
	if err != nil {
		logger.Error("bootstrap jwks failed", "error", err)
		return
	}
	logger.Info("bootstrap jwks", "domain", bootstrapDomain, "keyCount", len(set.Keys))

	// TODO: mount this behind whatever process supervisor runs the
	// scheduler on an interval (the public HTTP/JWKS endpoint and the
	// process CLI are external collaborators per spec and not built here).
	summary, err := scheduler.RunScheduled(ctx)
	if err != nil {
		logger.Error("scheduled sweep failed", "error", err)
		return
	}
	logger.Info("sweep complete", "success", summary.Success, "failed", summary.Failed, "skipped", summary.Skipped)

	if err := janitor.CleanDomain(ctx); err != nil {
		logger.Warn("clean domain finished with errors", "error", err)
	}
}
