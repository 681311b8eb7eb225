package lyrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "songline"

var (
	segmentationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lyrics",
			Name:      "segmentations_total",
			Help:      "Section lists computed, by source",
		},
		[]string{"source"},
	)

	sectionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lyrics",
			Name:      "section_cache_lookups_total",
			Help:      "Section cache lookups by result",
		},
		[]string{"result"},
	)
)

func recordSegmentation(source string) {
	segmentationsTotal.WithLabelValues(source).Inc()
}

func recordCacheLookup(result string) {
	sectionCacheLookups.WithLabelValues(result).Inc()
}
