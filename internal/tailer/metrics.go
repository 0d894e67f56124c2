package tailer

import "github.com/prometheus/client_golang/prometheus"

var FileRotated = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "logserver_file_rotated_total",
	Help: "Files whose size shrank or identity changed, triggering a position reset.",
})

func init() {
	prometheus.MustRegister(FileRotated)
}
