/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-tokenguard/internal/libinfo"
)

const PrometheusNamespace = "go_tokenguard"

const DefaultPrometheusLibInstanceLabel = "default"

const (
	PrometheusLibInstanceLabel = "lib_instance"
	PrometheusLibSourceLabel   = "lib_source"
)

const (
	SourceTokenIntrospector = "token_introspector"
	SourceTokenCache        = "token_cache"
	SourceHTTPMiddleware    = "http_middleware"
)

func PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{"lib_version": libinfo.GetLibVersion()}
}

const (
	HTTPClientRequestLabelMethod     = "method"
	HTTPClientRequestLabelURL        = "url"
	HTTPClientRequestLabelStatusCode = "status_code"
	HTTPClientRequestLabelError      = "error"

	TokenValidationLabelStatus  = "status"
	TokenCacheLookupLabelResult = "result"
)

const (
	HTTPRequestErrorDo                   = "do_request_error"
	HTTPRequestErrorTimeout              = "timeout_error"
	HTTPRequestErrorDecodeBody           = "decode_body_error"
	HTTPRequestErrorUnexpectedStatusCode = "unexpected_status_code"
)

// Token validation statuses.
const (
	TokenValidationStatusCached    = "cached"
	TokenValidationStatusActive    = "active"
	TokenValidationStatusNotActive = "not_active"
	TokenValidationStatusMalformed = "malformed"
	TokenValidationStatusError     = "error"
	TokenValidationStatusForbidden = "forbidden"
)

const (
	TokenCacheLookupResultHit  = "hit"
	TokenCacheLookupResultMiss = "miss"
)

var requestDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	prometheusMetrics     *PrometheusMetrics
	prometheusMetricsOnce sync.Once
)

// PrometheusMetrics represents the collector of metrics.
type PrometheusMetrics struct {
	HTTPClientRequestDuration *prometheus.HistogramVec
	TokenValidationsTotal     *prometheus.CounterVec
	TokenCacheLookupsTotal    *prometheus.CounterVec
	TokenCacheSweptTotal      *prometheus.CounterVec
	TokenCacheEntries         *prometheus.GaugeVec
}

func GetPrometheusMetrics(instance string, source string) *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetrics = newPrometheusMetrics()
		prometheusMetrics.MustRegister()
	})
	if instance == "" {
		instance = DefaultPrometheusLibInstanceLabel
	}
	return prometheusMetrics.MustCurryWith(map[string]string{
		PrometheusLibInstanceLabel: instance,
		PrometheusLibSourceLabel:   source,
	})
}

func newPrometheusMetrics() *PrometheusMetrics {
	curriedLabelNames := []string{PrometheusLibInstanceLabel, PrometheusLibSourceLabel}
	makeLabelNames := func(names ...string) []string {
		l := append(make([]string, 0, len(curriedLabelNames)+len(names)), curriedLabelNames...)
		return append(l, names...)
	}

	httpClientReqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   PrometheusNamespace,
			Name:        "http_client_request_duration_seconds",
			Help:        "A histogram of the http client request durations to the authorization server.",
			Buckets:     requestDurationBuckets,
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(HTTPClientRequestLabelMethod, HTTPClientRequestLabelURL,
			HTTPClientRequestLabelStatusCode, HTTPClientRequestLabelError),
	)
	tokenValidations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "token_validations_total",
			Help:        "A counter of bearer token validations grouped by the outcome.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(TokenValidationLabelStatus),
	)
	tokenCacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "token_cache_lookups_total",
			Help:        "A counter of token cache lookups grouped by the result (hit or miss).",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(TokenCacheLookupLabelResult),
	)
	tokenCacheSwept := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "token_cache_swept_entries_total",
			Help:        "A counter of expired entries removed from the token cache by the periodic sweep.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(),
	)
	tokenCacheEntries := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   PrometheusNamespace,
			Name:        "token_cache_entries",
			Help:        "A number of entries currently stored in the token caches of the lib instance.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(),
	)

	return &PrometheusMetrics{
		HTTPClientRequestDuration: httpClientReqDuration,
		TokenValidationsTotal:     tokenValidations,
		TokenCacheLookupsTotal:    tokenCacheLookups,
		TokenCacheSweptTotal:      tokenCacheSwept,
		TokenCacheEntries:         tokenCacheEntries,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		HTTPClientRequestDuration: pm.HTTPClientRequestDuration.MustCurryWith(labels).(*prometheus.HistogramVec),
		TokenValidationsTotal:     pm.TokenValidationsTotal.MustCurryWith(labels),
		TokenCacheLookupsTotal:    pm.TokenCacheLookupsTotal.MustCurryWith(labels),
		TokenCacheSweptTotal:      pm.TokenCacheSweptTotal.MustCurryWith(labels),
		TokenCacheEntries:         pm.TokenCacheEntries.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.HTTPClientRequestDuration,
		pm.TokenValidationsTotal,
		pm.TokenCacheLookupsTotal,
		pm.TokenCacheSweptTotal,
		pm.TokenCacheEntries,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.HTTPClientRequestDuration)
	prometheus.Unregister(pm.TokenValidationsTotal)
	prometheus.Unregister(pm.TokenCacheLookupsTotal)
	prometheus.Unregister(pm.TokenCacheSweptTotal)
	prometheus.Unregister(pm.TokenCacheEntries)
}

func (pm *PrometheusMetrics) ObserveHTTPClientRequest(
	method string, targetURL string, statusCode int, elapsed time.Duration, errorType string,
) {
	pm.HTTPClientRequestDuration.With(prometheus.Labels{
		HTTPClientRequestLabelMethod:     method,
		HTTPClientRequestLabelURL:        targetURL,
		HTTPClientRequestLabelStatusCode: strconv.Itoa(statusCode),
		HTTPClientRequestLabelError:      errorType,
	}).Observe(elapsed.Seconds())
}

func (pm *PrometheusMetrics) IncTokenValidationsTotal(status string) {
	pm.TokenValidationsTotal.WithLabelValues(status).Inc()
}

func (pm *PrometheusMetrics) IncTokenCacheLookupsTotal(hit bool) {
	if hit {
		pm.TokenCacheLookupsTotal.WithLabelValues(TokenCacheLookupResultHit).Inc()
		return
	}
	pm.TokenCacheLookupsTotal.WithLabelValues(TokenCacheLookupResultMiss).Inc()
}

func (pm *PrometheusMetrics) AddTokenCacheSweptTotal(n int) {
	pm.TokenCacheSweptTotal.WithLabelValues().Add(float64(n))
}

// AddTokenCacheEntries changes the entries gauge by delta.
// Caches sharing the same lib instance label contribute to the same gauge.
func (pm *PrometheusMetrics) AddTokenCacheEntries(delta int) {
	if delta == 0 {
		return
	}
	pm.TokenCacheEntries.WithLabelValues().Add(float64(delta))
}
