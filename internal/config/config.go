// Package config loads runtime configuration for the keyvault service from
// the environment, following the same plain os.Getenv + defaults pattern the
// rest of this codebase's lineage uses (no config framework).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable named in spec §6's "Configuration (recognized
// options)" table plus the storage root and lease knobs needed to wire the
// in-memory/filesystem default collaborators.
type Config struct {
	// StorageRoot is the filesystem root for the default BlobStore (§6's
	// "storage" directory).
	StorageRoot string

	// RetryIntervalMs is the scheduler's fixed sleep between sweep attempts.
	RetryIntervalMs int
	// MaxRetries bounds the scheduler's sweep attempts.
	MaxRetries    int
	MinRetries    int
	MaxRetriesCap int
	MinIntervalMs int
	MaxIntervalMs int

	// GracePeriod is the interval between a key's retirement and its reaping.
	GracePeriod time.Duration

	// SignerDefaultTTL is the default token lifetime when the caller doesn't
	// supply one.
	SignerDefaultTTL time.Duration
	// SignerMaxPayloadBytes bounds the canonical-JSON size of a signed payload.
	SignerMaxPayloadBytes int

	// RotationLeaseTTL is loaded and defaulted here but is not passed to the
	// Rotator, which always takes its rotation lease with a fixed 300-second
	// TTL.
	RotationLeaseTTL time.Duration

	// RSAKeyBits is the modulus size used by the default CryptoProvider.
	RSAKeyBits int
}

// FromEnv builds a Config from the process environment, applying the
// defaults spec §6 documents.
func FromEnv() (Config, error) {
	cfg := Config{
		StorageRoot:           envOr("KEYVAULT_STORAGE_ROOT", "./data/keyvault"),
		MinIntervalMs:         envIntOr("KEYVAULT_MIN_RETRY_INTERVAL_MS", 60_000),
		MaxIntervalMs:         envIntOr("KEYVAULT_MAX_RETRY_INTERVAL_MS", 600_000),
		MinRetries:            envIntOr("KEYVAULT_MIN_RETRIES", 1),
		MaxRetriesCap:         envIntOr("KEYVAULT_MAX_RETRIES_CAP", 10),
		GracePeriod:           envDurationOr("KEYVAULT_GRACE_PERIOD", 7*24*time.Hour),
		SignerDefaultTTL:      envDurationOr("KEYVAULT_SIGNER_DEFAULT_TTL", 2_592_000*time.Second),
		SignerMaxPayloadBytes: envIntOr("KEYVAULT_SIGNER_MAX_PAYLOAD_BYTES", 4096),
		RotationLeaseTTL:      envDurationOr("KEYVAULT_ROTATION_LEASE_TTL", 300*time.Second),
		RSAKeyBits:            envIntOr("KEYVAULT_RSA_KEY_BITS", 4096),
	}
	cfg.RetryIntervalMs = envIntOr("KEYVAULT_RETRY_INTERVAL_MS", 60_000)
	cfg.MaxRetries = envIntOr("KEYVAULT_MAX_RETRIES", 3)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values before any field is committed to a
// running scheduler (spec §9: "reject invalid values before committing any
// field").
func (c Config) Validate() error {
	if c.RetryIntervalMs < c.MinIntervalMs || c.RetryIntervalMs > c.MaxIntervalMs {
		return fmt.Errorf("config: retryIntervalMs %d out of range [%d, %d]", c.RetryIntervalMs, c.MinIntervalMs, c.MaxIntervalMs)
	}
	if c.MaxRetries < c.MinRetries || c.MaxRetries > c.MaxRetriesCap {
		return fmt.Errorf("config: maxRetries %d out of range [%d, %d]", c.MaxRetries, c.MinRetries, c.MaxRetriesCap)
	}
	if strings.TrimSpace(c.StorageRoot) == "" {
		return fmt.Errorf("config: storage root is empty; set KEYVAULT_STORAGE_ROOT")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
