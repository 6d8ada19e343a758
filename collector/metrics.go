package collector

import "github.com/prometheus/client_golang/prometheus"

var sessionOutcomesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
  Name: "vitals_collector_session_outcomes_total",
  Help: "Device sessions by outcome.",
}, []string{"device", "outcome"})

var malformedFramesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
  Name: "vitals_collector_malformed_frames_total",
  Help: "Notification frames dropped because they could not be decoded.",
}, []string{"device"})

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(sessionOutcomesCounter, malformedFramesCounter)
}
