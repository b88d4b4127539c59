package metrics

import (
	"strconv"
	"time"

	"github.com/chwrapper/chwrapper/internal/observability"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

// Registry client metrics
const (
	RegistryRequestsTotal       = "registry_requests_total"
	RegistryRequestDuration     = "registry_request_duration_ms"
	RegistryRateLimitWaitsTotal = "registry_rate_limit_waits_total"
	RegistryRateLimitWait       = "registry_rate_limit_wait_ms"
	RegistryQuotaRemaining      = "registry_quota_remaining"
)

// RegistryObserver feeds client measurements into the global telemetry
// system. The zero value is ready to use; it records nothing while
// observability.TelemetrySystem is nil.
type RegistryObserver struct{}

var _ companieshouse.Observer = RegistryObserver{}

// ObserveResponse records one completed registry round trip.
func (RegistryObserver) ObserveResponse(endpoint string, status int, elapsed time.Duration) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}

	labels := map[string]string{
		"endpoint": endpoint,
		"status":   strconv.Itoa(status),
	}
	_ = sys.Counter(RegistryRequestsTotal, 1, labels)
	_ = sys.Histogram(RegistryRequestDuration, elapsed, labels)
}

// ObserveRateLimitWait records a suspension caused by an exhausted quota.
func (RegistryObserver) ObserveRateLimitWait(endpoint string, wait time.Duration) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}

	labels := map[string]string{"endpoint": endpoint}
	_ = sys.Counter(RegistryRateLimitWaitsTotal, 1, labels)
	_ = sys.Histogram(RegistryRateLimitWait, wait, labels)
}

// RecordQuota publishes the remaining quota reported by the registry.
// States without a numeric remain header are skipped.
func RecordQuota(state companieshouse.RateLimitState) {
	sys := observability.TelemetrySystem
	if sys == nil || !state.RemainPresent {
		return
	}
	remain, err := strconv.Atoi(state.Remain)
	if err != nil {
		return
	}
	_ = sys.Gauge(RegistryQuotaRemaining, float64(remain), nil)
}
