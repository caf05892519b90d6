package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hebocon_commands_total",
	Help: "Tournament commands by type and outcome.",
}, []string{"command", "result"})

var subscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "hebocon_subscribers",
	Help: "Connected overlay and control panel clients.",
})

func ObserveCommand(command string, err error) {
	result := "applied"
	if err != nil {
		result = "rejected"
	}
	commandsTotal.WithLabelValues(command, result).Inc()
}

func SetSubscribers(n int) { subscribers.Set(float64(n)) }
