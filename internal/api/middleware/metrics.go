// metrics.go — Prometheus HTTP метрики сервисов конвейера.
// Регистрирует метрики: {ns}_http_requests_total, {ns}_http_request_duration_seconds.
// Бизнес-метрики (файлы, записи журнала) регистрируются в соответствующих
// пакетах и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics возвращает HTTP middleware для сбора Prometheus метрик.
// namespace — префикс метрик сервиса ("ws" для watcher, "ls" для logger).
// Записывает количество запросов и длительность для каждого endpoint.
func Metrics(namespace string) func(http.Handler) http.Handler {
	requestsTotal := promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Общее количество HTTP-запросов",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов в секундах",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := wrapWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.status)

			requestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}
