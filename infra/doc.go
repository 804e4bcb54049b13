// Package infra holds the technical adapters: the zerolog logger, the MQTT
// event publisher and the Prometheus and InfluxDB metrics sinks. Everything
// here implements an interface declared by a core package, never the other
// way around.
package infra
