package frame

import "github.com/prometheus/client_golang/prometheus"

var (
	FrameRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_frame_rejected_total",
		Help: "Frames whose JSON body failed to parse.",
	})
	RequiredFieldMissing = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_frame_required_field_missing_total",
		Help: "Frames rejected for missing a required attribute.",
	})
	CidMismatch = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_frame_cid_mismatch_total",
		Help: "Frames where the marker cid disagreed with the JSON body's correlationId.",
	})
	FrameTooLarge = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_frame_too_large_total",
		Help: "Frames dropped for exceeding the maximum frame size.",
	})
)

func init() {
	prometheus.MustRegister(FrameRejected, RequiredFieldMissing, CidMismatch, FrameTooLarge)
}
