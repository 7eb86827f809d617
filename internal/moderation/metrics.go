package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_moderation_actions",
	Help: "Number of moderation actions, by action and outcome",
}, []string{"action", "outcome"})

var autoBanCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_auto_bans",
	Help: "Number of bans issued for reaching the warning limit",
})
