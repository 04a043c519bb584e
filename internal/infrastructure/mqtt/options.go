package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sws-bridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds, as paho expects.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	// willQoS is used for the LWT regardless of the configured QoS.
	willQoS = 1

	tlsMinVersion = tls.VersionTLS12
)

// clientID returns the configured client ID, or one derived from the site.
// Two bridges with the same ID would kick each other off the broker.
func clientID(cfg config.MQTTConfig, site string) string {
	if cfg.Broker.ClientID != "" {
		return cfg.Broker.ClientID
	}
	return "swsbridge-" + site
}

// brokerURL returns the paho broker URL, ssl:// when TLS is enabled.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildClientOptions maps the MQTT config onto paho options. Sessions are
// clean: subscriptions are restored by the client itself on reconnect.
func buildClientOptions(cfg config.MQTTConfig, site string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg)).
		SetClientID(clientID(cfg, site)).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT registers the retained "offline" will on the status topic.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics) {
	will := buildStatusPayload(statusPayload{
		Status:   "offline",
		Site:     topics.Site,
		ClientID: opts.ClientID,
		Reason:   "unexpected_disconnect",
	})
	opts.SetWill(topics.SystemStatus(), will, willQoS, true)
}

// statusPayload is the JSON body published on the status topic.
type statusPayload struct {
	Status    string `json:"status"`
	Site      string `json:"site"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildStatusPayload stamps p with the current time and encodes it.
func buildStatusPayload(p statusPayload) string {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	//nolint:errchkjson // statusPayload only holds strings
	data, _ := json.Marshal(p)
	return string(data)
}
