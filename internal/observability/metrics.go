package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "globeqa"

// Metrics holds the Prometheus counters, histograms, and gauges for a QC run.
type Metrics struct {
	FetchRequests      *prometheus.CounterVec // labels: source={api,file,s3,cache}, outcome={success,error}
	FetchDuration      prometheus.Histogram
	ObservationsParsed prometheus.Counter
	FeaturesSkipped    *prometheus.CounterVec // labels: reason
	QualityFlags       *prometheus.CounterVec // labels: flag
	FiguresRendered    prometheus.Counter
	FiguresSkipped     prometheus.Counter
	PipelineRunning    prometheus.Gauge

	// Land check metrics.
	LandCheckRequests *prometheus.CounterVec // labels: outcome={land,water,error}
	LandCheckCache    *prometheus.CounterVec // labels: result={hit,miss}
	LandCheckDuration prometheus.Histogram

	FlagsPublished    prometheus.Counter
	FlagPublishErrors prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Observation payload fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a GLOBE API download including retries.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ObservationsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_parsed_total",
			Help:      "Observations parsed from API payloads.",
		}),
		FeaturesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_skipped_total",
			Help:      "GeoJSON features that did not yield an observation, by reason.",
		}, []string{"reason"}),
		QualityFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_flags_total",
			Help:      "Quality flag incidences by flag code.",
		}, []string{"flag"}),
		FiguresRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "figures_rendered_total",
			Help:      "Figure files written.",
		}),
		FiguresSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "figures_skipped_total",
			Help:      "Figures skipped because their input was empty.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LandCheckRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "land_check_requests_total",
			Help:      "Land checker lookups by outcome.",
		}, []string{"outcome"}),
		LandCheckCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "land_check_cache_total",
			Help:      "Land check cache lookups by result.",
		}, []string{"result"}),
		LandCheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "land_check_api_duration_seconds",
			Help:      "Mapbox reverse geocoding request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		FlagsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flags_published_total",
			Help:      "Flagged observations written to Kafka.",
		}),
		FlagPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flag_publish_errors_total",
			Help:      "Failed Kafka batch writes of flagged observations.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchRequests,
		m.FetchDuration,
		m.ObservationsParsed,
		m.FeaturesSkipped,
		m.QualityFlags,
		m.FiguresRendered,
		m.FiguresSkipped,
		m.PipelineRunning,
		m.LandCheckRequests,
		m.LandCheckCache,
		m.LandCheckDuration,
		m.FlagsPublished,
		m.FlagPublishErrors,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
