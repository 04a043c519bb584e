package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/sws-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/sws-bridge/internal/relay"
	"github.com/nerrad567/sws-bridge/internal/scheduler"
)

// MessageBus is the MQTT surface the command bridge needs.
type MessageBus interface {
	MessagePublisher
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Commands relays controller commands received over MQTT.
//
// Each message on sws/{site}/command is one command; its response is
// published on sws/{site}/response. Commands are relayed one at a time with
// the execution token held, exactly like /ajax/cmd.
type Commands struct {
	bus    MessageBus
	sched  *scheduler.Scheduler
	relay  *relay.Relay
	qos    byte
	logger Logger

	ctx context.Context
}

// NewCommands creates the command bridge.
func NewCommands(bus MessageBus, sched *scheduler.Scheduler, rel *relay.Relay, qos byte, logger Logger) *Commands {
	return &Commands{
		bus:    bus,
		sched:  sched,
		relay:  rel,
		qos:    qos,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Start subscribes to the command topic. Relays in progress stop waiting for
// the token once ctx is cancelled.
func (c *Commands) Start(ctx context.Context) error {
	c.ctx = ctx
	topic := c.bus.Topics().Command()
	if err := c.bus.Subscribe(topic, c.qos, c.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	if c.logger != nil {
		c.logger.Info("accepting controller commands over MQTT", "topic", topic)
	}
	return nil
}

// Stop unsubscribes from the command topic.
func (c *Commands) Stop() error {
	topic := c.bus.Topics().Command()
	if err := c.bus.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}
	return nil
}

// handle relays one command message.
func (c *Commands) handle(_ string, payload []byte) error {
	cmd := strings.TrimSpace(string(payload))
	if cmd == "" {
		return nil
	}

	var resp string
	if err := c.sched.Exec(c.ctx, func() {
		resp = c.relay.RunCommand(c.ctx, cmd)
	}); err != nil {
		return fmt.Errorf("relaying %q: %w", cmd, err)
	}

	if err := c.bus.Publish(c.bus.Topics().Response(), []byte(resp), c.qos, false); err != nil {
		return fmt.Errorf("publishing response to %q: %w", cmd, err)
	}
	return nil
}
