package clients

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cuterank_collaborator_calls_total",
	Help: "Collaborator calls by service and result",
}, []string{"service", "result"})

var callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "cuterank_collaborator_call_duration_seconds",
	Help:    "Collaborator call latency including retries",
	Buckets: prometheus.DefBuckets,
}, []string{"service"})
