package broadcast

import "github.com/prometheus/client_golang/prometheus"

var (
	SubscriberLagged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_subscriber_lagged_total",
		Help: "Records dropped from a subscriber's buffer because it was full.",
	})
	SubscriberDead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_subscriber_dead_total",
		Help: "Subscriptions removed after two consecutive delivery failures.",
	})
)

func init() {
	prometheus.MustRegister(SubscriberLagged, SubscriberDead)
}
