package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var roleLookupRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modbot_role_lookup_retries",
	Help: "Number of live role lookups retried after a transient failure",
})
