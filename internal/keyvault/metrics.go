package keyvault

import (
	"time"

	gometrics "github.com/hashicorp/go-metrics"
)

// metricsSink is satisfied by *gometrics.Metrics; narrowed to the calls this
// package makes so a nil sink (the zero value) can no-op cleanly.
type metricsSink interface {
	IncrCounter(key []string, val float32)
	MeasureSince(key []string, start time.Time)
	SetGauge(key []string, val float32)
}

// nullSink discards every metric; used when no *gometrics.Metrics is wired,
// so every call site can unconditionally call the sink without a nil check.
type nullSink struct{}

func (nullSink) IncrCounter(_ []string, _ float32)    {}
func (nullSink) MeasureSince(_ []string, _ time.Time) {}
func (nullSink) SetGauge(_ []string, _ float32)       {}

func defaultMetrics() metricsSink { return nullSink{} }

// WrapMetrics adapts a configured *gometrics.Metrics (sinks: statsd,
// prometheus, in-memory, ...) into the sink this package consumes. Pass nil
// to get a no-op sink.
func WrapMetrics(m *gometrics.Metrics) metricsSink {
	if m == nil {
		return nullSink{}
	}
	return gometricsAdapter{m}
}

type gometricsAdapter struct{ m *gometrics.Metrics }

func (a gometricsAdapter) IncrCounter(key []string, val float32) { a.m.IncrCounter(key, val) }
func (a gometricsAdapter) MeasureSince(key []string, start time.Time) {
	a.m.MeasureSince(key, start)
}
func (a gometricsAdapter) SetGauge(key []string, val float32) { a.m.SetGauge(key, val) }

var (
	metricKeyGenerate       = []string{"keyvault", "generate"}
	metricKeyRotateSuccess  = []string{"keyvault", "rotate", "success"}
	metricKeyRotateRollback = []string{"keyvault", "rotate", "rollback"}
	metricKeySign           = []string{"keyvault", "sign"}
	metricKeyJWKS           = []string{"keyvault", "jwks", "build"}
	metricKeyReap           = []string{"keyvault", "janitor", "reaped"}
	metricKeyCacheHit       = []string{"keyvault", "cache", "hit"}
	metricKeyCacheMiss      = []string{"keyvault", "cache", "miss"}
)
