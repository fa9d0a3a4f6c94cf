package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricVotesCast         = "dvote_votes_cast_total"
	MetricPermissionToggles = "dvote_permission_toggles_total"
	MetricResultsPublished  = "dvote_results_published_total"
	MetricPublishDuration   = "dvote_result_publish_duration_seconds"
	MetricUpstreamErrors    = "dvote_upstream_error_count"
)

// MetricService owns a private registry so tests can build as many as they like.
type MetricService struct {
	registry          *prometheus.Registry
	votesCast         *prometheus.CounterVec
	permissionToggles *prometheus.CounterVec
	resultsPublished  *prometheus.CounterVec
	publishDuration   prometheus.Histogram
	upstreamErrors    *prometheus.CounterVec
}

func NewMetricService() *MetricService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ms := &MetricService{
		registry: registry,
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricVotesCast,
			Help: "Votes recorded per voting topic",
		}, []string{"topic"}),
		permissionToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPermissionToggles,
			Help: "Voting permission toggles per topic and resulting state",
		}, []string{"topic", "enabled"}),
		resultsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricResultsPublished,
			Help: "Results stored from the voting contract",
		}, []string{"topic"}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPublishDuration,
			Help:    "Duration of result publication including contract reads",
			Buckets: prometheus.DefBuckets,
		}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricUpstreamErrors,
			Help: "Failed calls to the voting contract per method",
		}, []string{"method"}),
	}
	registry.MustRegister(
		ms.votesCast,
		ms.permissionToggles,
		ms.resultsPublished,
		ms.publishDuration,
		ms.upstreamErrors,
	)
	return ms
}

func (m *MetricService) VoteCast(votingTopicID string) {
	m.votesCast.WithLabelValues(votingTopicID).Inc()
}

func (m *MetricService) PermissionToggled(votingTopicID string, enabled bool) {
	label := "false"
	if enabled {
		label = "true"
	}
	m.permissionToggles.WithLabelValues(votingTopicID, label).Inc()
}

func (m *MetricService) ResultPublished(votingTopicID string, elapsed time.Duration) {
	m.resultsPublished.WithLabelValues(votingTopicID).Inc()
	m.publishDuration.Observe(elapsed.Seconds())
}

func (m *MetricService) UpstreamFailed(op string) {
	m.upstreamErrors.WithLabelValues(op).Inc()
}

func (m *MetricService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
