package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cuterank_submissions_total",
	Help: "Submissions by terminal status",
}, []string{"status"})

var nsfwFailOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cuterank_nsfw_fail_open_total",
	Help: "Submissions let through because the classifier failed",
})

var moderationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cuterank_moderation_actions_total",
	Help: "Moderation actions by kind",
}, []string{"action"})
