package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_commands",
	Help: "Number of commands handled, by command and outcome",
}, []string{"command", "outcome"})

var commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "modbot_command_duration_sec",
	Help: "Duration of command handling, including platform calls",
}, []string{"command"})
