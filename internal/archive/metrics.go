package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var archiveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cuterank_archive_uploads_total",
	Help: "Archive uploads by result",
}, []string{"result"})

var repairTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cuterank_cache_repairs_total",
	Help: "Cache repair attempts by result",
}, []string{"result"})
