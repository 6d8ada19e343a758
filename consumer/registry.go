package consumer

import "github.com/robertof/go-vitals-collector/metrics"

const (
  NameLog = "log"
  NamePrometheus = "prometheus"
  NameMQTT = "mqtt"
  NameRedis = "redis"
)

// DefaultRegistry returns a registry with every built-in consumer. The prometheus consumer feeds
// the given store.
func DefaultRegistry(store *metrics.Store) *Registry {
  r := NewRegistry()

  r.Register(NameLog, NewLog)
  r.Register(NamePrometheus, NewPrometheusFactory(store))
  r.Register(NameMQTT, NewMQTT)
  r.Register(NameRedis, NewRedis)

  return r
}
