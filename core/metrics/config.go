package metrics

// Config defines settings for metrics sinks. Empty sections disable the
// corresponding sink.
type Config struct {
	Prometheus PrometheusConfig `json:"prometheus" yaml:"prometheus"`
	Influx     InfluxConfig     `json:"influx" yaml:"influx"`
}

// PrometheusConfig enables the Prometheus sink.
type PrometheusConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// InfluxConfig enables the InfluxDB sink when URL is set.
type InfluxConfig struct {
	URL    string `json:"url" yaml:"url"`
	Token  string `json:"token" yaml:"token"`
	Org    string `json:"org" yaml:"org"`
	Bucket string `json:"bucket" yaml:"bucket"`
}
