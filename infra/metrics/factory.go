package metrics

import coremetrics "github.com/fleetops/dispatchd/core/metrics"

// NewSink builds the metrics sink described by the configuration. With no
// sinks enabled it returns a NopSink; with several it returns a MultiSink.
func NewSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.Prometheus.Enabled {
		prom, err := NewPromSink()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.Influx.URL != "" {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
