package httpx

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	tokensIssuedTotal  *prometheus.CounterVec
	tokenErrorsTotal   *prometheus.CounterVec
	tenantResolveTotal *prometheus.CounterVec
)

// RegisterMetrics inicializa las métricas y devuelve el handler para /metrics.
func RegisterMetrics(reg prometheus.Registerer) (http.Handler, error) {
	registry := reg
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		tokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_tokens_issued_total",
			Help: "Tokens emitidos por grant type",
		}, []string{"grant_type"})

		tokenErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_token_errors_total",
			Help: "Errores del token endpoint por código OAuth",
		}, []string{"error"})

		tenantResolveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_resolutions_total",
			Help: "Resoluciones de tenant por resultado",
		}, []string{"result"}) // result: hit|miss|error

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			tokensIssuedTotal, tokenErrorsTotal, tenantResolveTotal,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}
	return promhttp.Handler(), nil
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ObserveRequest alimenta las métricas HTTP; lo llama el middleware de logging.
func ObserveRequest(method, path string, status int, dur time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}

// TrackInflight marca entrada/salida de un request en vuelo.
func TrackInflight(method, path string, delta float64) {
	if httpInflight == nil {
		return
	}
	httpInflight.WithLabelValues(method, path).Add(delta)
}

// CountTokenIssued registra una emisión exitosa.
func CountTokenIssued(grantType string) {
	if tokensIssuedTotal == nil {
		return
	}
	tokensIssuedTotal.WithLabelValues(grantType).Inc()
}

// CountTokenError registra un error de protocolo en /oauth/token.
func CountTokenError(code string) {
	if tokenErrorsTotal == nil {
		return
	}
	tokenErrorsTotal.WithLabelValues(code).Inc()
}

// CountTenantResolve registra el resultado de una resolución de tenant.
func CountTenantResolve(result string) {
	if tenantResolveTotal == nil {
		return
	}
	tenantResolveTotal.WithLabelValues(result).Inc()
}
