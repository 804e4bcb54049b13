// Package mqtt publishes planning events to an MQTT broker using Eclipse
// Paho, for dispatcher frontends and fleet integrations that subscribe to
// session transitions.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetops/dispatchd/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string      `json:"broker" yaml:"broker"`
	ClientID   string      `json:"client_id" yaml:"client_id"`
	Username   string      `json:"username" yaml:"username"`
	Password   string      `json:"password" yaml:"password"`
	EventTopic string      `json:"event_topic" yaml:"event_topic"`
	QoS        byte        `json:"qos" yaml:"qos"`
	UseTLS     bool        `json:"use_tls" yaml:"use_tls"`
	ClientCert string      `json:"client_cert" yaml:"client_cert"`
	ClientKey  string      `json:"client_key" yaml:"client_key"`
	CABundle   string      `json:"ca_bundle" yaml:"ca_bundle"`
	LWTTopic   string      `json:"lwt_topic" yaml:"lwt_topic"`
	LWTPayload string      `json:"lwt_payload" yaml:"lwt_payload"`
	MaxRetries int         `json:"max_retries" yaml:"max_retries"`
	BackoffMS  int         `json:"backoff_ms" yaml:"backoff_ms"`
	TLSConfig  *tls.Config `json:"-" yaml:"-"`
}

// pahoClient is the slice of the Paho API the publisher needs, so tests can
// swap in a fake.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// connect dials the broker and returns the connected client.
func connect(cfg Config, log logger.Logger) (pahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("MQTT connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.QoS, false)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
