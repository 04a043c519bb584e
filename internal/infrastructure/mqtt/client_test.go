package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nerrad567/sws-bridge/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "sws-bridge-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Site: "observatory"}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "AxisPosition", got: topics.AxisPosition("axis1"), expected: "sws/observatory/axis/axis1/position"},
		{name: "RelayStats", got: topics.RelayStats(), expected: "sws/observatory/system/relay"},
		{name: "SystemStatus", got: topics.SystemStatus(), expected: "sws/observatory/system/status"},
		{name: "Command", got: topics.Command(), expected: "sws/observatory/command"},
		{name: "Response", got: topics.Response(), expected: "sws/observatory/response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.MQTTConfig)
		wantBroker string
		wantUser   string
	}{
		{
			name:       "plain tcp",
			mutate:     func(*config.MQTTConfig) {},
			wantBroker: "tcp://127.0.0.1:1883",
		},
		{
			name: "tls",
			mutate: func(c *config.MQTTConfig) {
				c.Broker.TLS = true
				c.Broker.Port = 8883
			},
			wantBroker: "ssl://127.0.0.1:8883",
		},
		{
			name: "credentials",
			mutate: func(c *config.MQTTConfig) {
				c.Auth.Username = "sws"
				c.Auth.Password = "secret"
			},
			wantBroker: "tcp://127.0.0.1:1883",
			wantUser:   "sws",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			opts := buildClientOptions(cfg, "dome")

			if len(opts.Servers) != 1 || opts.Servers[0].String() != tt.wantBroker {
				t.Errorf("Servers = %v, want [%s]", opts.Servers, tt.wantBroker)
			}
			if opts.ClientID != "sws-bridge-test" {
				t.Errorf("ClientID = %q", opts.ClientID)
			}
			if opts.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", opts.Username, tt.wantUser)
			}
			if tt.wantBroker[:3] == "ssl" && opts.TLSConfig == nil {
				t.Error("TLSConfig not set for TLS broker")
			}
			if !opts.AutoReconnect {
				t.Error("AutoReconnect = false, want true")
			}
		})
	}
}

func TestClientID(t *testing.T) {
	cfg := testConfig()
	if got := clientID(cfg, "dome"); got != "sws-bridge-test" {
		t.Errorf("clientID() = %q, want configured ID", got)
	}

	cfg.Broker.ClientID = ""
	if got := clientID(cfg, "dome"); got != "swsbridge-dome" {
		t.Errorf("clientID() = %q, want %q", got, "swsbridge-dome")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig(), "dome")
	configureLWT(opts, Topics{Site: "dome"})

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "sws/dome/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("WillRetained = %v, WillQos = %d", opts.WillRetained, opts.WillQos)
	}

	var p statusPayload
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if p.Status != "offline" || p.Reason != "unexpected_disconnect" || p.ClientID != "sws-bridge-test" || p.Site != "dome" {
		t.Errorf("will payload = %+v", p)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	raw := buildStatusPayload(statusPayload{Status: "online", Site: "dome", ClientID: "id-1"})

	if strings.Contains(raw, "reason") {
		t.Errorf("online payload should omit reason: %s", raw)
	}

	var p statusPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.Status != "online" || p.Site != "dome" || p.ClientID != "id-1" || p.Timestamp == "" {
		t.Errorf("payload = %+v", p)
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}

	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := &Client{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{name: "empty topic", topic: "", qos: 1, wantErr: ErrInvalidTopic},
		{name: "invalid qos", topic: "sws/test", qos: 3, wantErr: ErrInvalidQoS},
		{name: "oversized payload", topic: "sws/test", qos: 1, payload: make([]byte, maxPayloadSize+1), wantErr: ErrPublishFailed},
		{name: "disconnected", topic: "sws/test", qos: 1, payload: []byte("x"), wantErr: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{name: "empty topic", topic: "", qos: 1, handler: handler, wantErr: ErrInvalidTopic},
		{name: "invalid qos", topic: "sws/test", qos: 3, handler: handler, wantErr: ErrInvalidQoS},
		{name: "nil handler", topic: "sws/test", qos: 1, handler: nil, wantErr: ErrSubscribeFailed},
		{name: "disconnected", topic: "sws/test", qos: 1, handler: handler, wantErr: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// fakeToken is a paho token that completes immediately or never.
type fakeToken struct {
	done bool
	err  error
}

func (f fakeToken) Wait() bool                     { return f.done }
func (f fakeToken) WaitTimeout(time.Duration) bool { return f.done }
func (f fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if f.done {
		close(ch)
	}
	return ch
}
func (f fakeToken) Error() error { return f.err }

func TestAwait(t *testing.T) {
	brokerErr := errors.New("not authorised")

	tests := []struct {
		name    string
		token   fakeToken
		wantErr []error
	}{
		{name: "acknowledged", token: fakeToken{done: true}},
		{name: "rejected", token: fakeToken{done: true, err: brokerErr}, wantErr: []error{ErrPublishFailed, brokerErr}},
		{name: "no acknowledgment", token: fakeToken{}, wantErr: []error{ErrPublishFailed, ErrTimeout}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := await(tt.token, ErrPublishFailed)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("await() error = %v, want nil", err)
				}
				return
			}
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("await() error = %v, want %v", err, want)
				}
			}
		})
	}
}

// fakeMessage is an inbound paho message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// recordingLogger counts warnings and errors.
type recordingLogger struct {
	warns, errs int
}

func (l *recordingLogger) Warn(string, ...any)  { l.warns++ }
func (l *recordingLogger) Error(string, ...any) { l.errs++ }

func TestWrapHandler_CountsMessagesAndErrors(t *testing.T) {
	c := &Client{
		connects:      xsync.NewCounter(),
		received:      xsync.NewCounter(),
		handlerErrors: xsync.NewCounter(),
	}
	log := &recordingLogger{}
	c.SetLogger(log)

	var got []string
	ok := c.wrapHandler(func(topic string, payload []byte) error {
		got = append(got, topic+"="+string(payload))
		return nil
	})
	failing := c.wrapHandler(func(string, []byte) error { return errors.New("bad command") })
	panicking := c.wrapHandler(func(string, []byte) error { panic("boom") })

	var pc pahomqtt.Client
	ok(pc, fakeMessage{topic: "sws/dome/command", payload: []byte(":GR#")})
	failing(pc, fakeMessage{topic: "sws/dome/command"})
	panicking(pc, fakeMessage{topic: "sws/dome/command"})

	if len(got) != 1 || got[0] != "sws/dome/command=:GR#" {
		t.Errorf("handler saw %v", got)
	}
	if log.warns != 1 || log.errs != 1 {
		t.Errorf("logged warns=%d errs=%d, want 1 and 1", log.warns, log.errs)
	}

	stats := c.Stats()
	if stats.Received != 3 || stats.HandlerErrors != 2 {
		t.Errorf("Stats() = %+v, want Received=3 HandlerErrors=2", stats)
	}
}

func TestStats_Reconnects(t *testing.T) {
	c := &Client{connects: xsync.NewCounter(), received: xsync.NewCounter(), handlerErrors: xsync.NewCounter()}

	if got := c.Stats().Reconnects; got != 0 {
		t.Errorf("Reconnects before connect = %d, want 0", got)
	}

	c.connects.Add(3)
	if got := c.Stats().Reconnects; got != 2 {
		t.Errorf("Reconnects = %d, want 2", got)
	}
}

func TestStats_ZeroClient(t *testing.T) {
	stats := (&Client{}).Stats()
	if stats.Connected || stats.Received != 0 || stats.Subscriptions != 0 {
		t.Errorf("Stats() = %+v, want zero", stats)
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := &Client{}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("sws/test/command"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg, "test")
	if err == nil {
		t.Fatal("Connect() should fail for refused connection")
	}

	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
