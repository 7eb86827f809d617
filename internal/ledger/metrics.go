package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ledgerSaveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modbot_ledger_save_failures",
	Help: "Number of ledger documents that could not be persisted",
}, []string{"doc"})
