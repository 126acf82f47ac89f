package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cuterank_dedup_checks_total",
	Help: "Duplicate checks by outcome",
}, []string{"outcome"})

var candidatesScanned = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "cuterank_dedup_candidates_scanned",
	Help:    "Perceptual candidates compared per check",
	Buckets: prometheus.ExponentialBuckets(1, 4, 8),
})
