package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "cuterank_task_queue_depth",
	Help: "Tasks waiting for the worker",
}, []string{"driver"})

var droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cuterank_task_queue_dropped_total",
	Help: "Tasks dropped because the queue was full",
}, []string{"driver", "type"})

var handledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cuterank_task_queue_handled_total",
	Help: "Stream messages handled by the consumer",
}, []string{"result"})
