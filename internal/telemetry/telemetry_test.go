package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/sws-bridge/internal/controller/fake"
	"github.com/nerrad567/sws-bridge/internal/encoder"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/sws-bridge/internal/relay"
	"github.com/nerrad567/sws-bridge/internal/scheduler"
)

type message struct {
	topic    string
	payload  string
	retained bool
}

// fakeBus records publishes and keeps subscription handlers.
type fakeBus struct {
	mu       sync.Mutex
	messages []message
	handlers map[string]mqtt.MessageHandler
	err      error
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBus) Topics() mqtt.Topics { return mqtt.Topics{Site: "test"} }

func (b *fakeBus) Publish(topic string, payload []byte, _ byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, message{topic: topic, payload: string(payload), retained: retained})
	return nil
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

func (b *fakeBus) on(topic string) []message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []message
	for _, m := range b.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type point struct {
	axis     string
	position int32
}

type fakeInflux struct {
	mu        sync.Mutex
	positions []point
	stats     []influxdb.RelayStats
}

func (f *fakeInflux) WriteAxisPosition(_, axis string, position int32, _ time.Time) {
	f.mu.Lock()
	f.positions = append(f.positions, point{axis: axis, position: position})
	f.mu.Unlock()
}

func (f *fakeInflux) WriteRelayStats(_ string, stats influxdb.RelayStats, _ time.Time) {
	f.mu.Lock()
	f.stats = append(f.stats, stats)
	f.mu.Unlock()
}

func testAxes() (*encoder.Axes, *encoder.Encoder, *encoder.Encoder) {
	a1 := encoder.New(encoder.Config{Name: "axis1"}, nil)
	a2 := encoder.New(encoder.Config{Name: "axis2"}, nil)
	return encoder.NewAxes(a1, a2), a1, a2
}

func TestNewPublisher_RequiresAxes(t *testing.T) {
	_, err := NewPublisher(Config{}, Deps{})
	assert.Error(t, err)
}

func TestPublisher_PublishesPositions(t *testing.T) {
	axes, a1, a2 := testAxes()
	a1.Write(1200)
	a2.Write(-7)

	bus := newFakeBus()
	influx := &fakeInflux{}
	p, err := NewPublisher(Config{Site: "test"}, Deps{
		Axes:   axes,
		MQTT:   bus,
		Influx: influx,
		Stats: func() influxdb.RelayStats {
			return influxdb.RelayStats{Commands: 3}
		},
	})
	require.NoError(t, err)

	p.Sample()
	p.publish(<-p.samples)

	msgs := bus.on("sws/test/axis/axis1/position")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)

	var pos PositionMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[0].payload), &pos))
	assert.Equal(t, "axis1", pos.Axis)
	assert.Equal(t, int32(1200), pos.Position)
	assert.NotEmpty(t, pos.Timestamp)

	assert.Len(t, bus.on("sws/test/axis/axis2/position"), 1)
	assert.Equal(t, []point{{"axis1", 1200}, {"axis2", -7}}, influx.positions)

	stats := bus.on("sws/test/system/relay")
	require.Len(t, stats, 1)
	assert.False(t, stats[0].retained)
	require.Len(t, influx.stats, 1)
	assert.Equal(t, int64(3), influx.stats[0].Commands)
}

func TestPublisher_MQTTOnlyOnChange(t *testing.T) {
	axes, a1, _ := testAxes()
	bus := newFakeBus()
	influx := &fakeInflux{}
	p, err := NewPublisher(Config{Site: "test"}, Deps{Axes: axes, MQTT: bus, Influx: influx})
	require.NoError(t, err)

	for _, v := range []int32{5, 5, 6} {
		a1.Write(v)
		p.Sample()
		p.publish(<-p.samples)
	}

	assert.Len(t, bus.on("sws/test/axis/axis1/position"), 2)
	assert.Len(t, influx.positions, 6, "influx receives every sample of both axes")
}

func TestPublisher_RetriesAfterPublishFailure(t *testing.T) {
	axes, a1, _ := testAxes()
	a1.Write(9)
	bus := newFakeBus()
	bus.err = errors.New("not connected")
	p, err := NewPublisher(Config{}, Deps{Axes: axes, MQTT: bus})
	require.NoError(t, err)

	p.Sample()
	p.publish(<-p.samples)
	assert.Empty(t, bus.on("sws/test/axis/axis1/position"))

	bus.mu.Lock()
	bus.err = nil
	bus.mu.Unlock()

	p.Sample()
	p.publish(<-p.samples)
	assert.Len(t, bus.on("sws/test/axis/axis1/position"), 1)
}

func TestPublisher_DropsWhenBusy(t *testing.T) {
	axes, _, _ := testAxes()
	p, err := NewPublisher(Config{}, Deps{Axes: axes})
	require.NoError(t, err)

	p.Sample()
	p.Sample()
	p.Sample()

	stats := p.Stats()
	assert.Equal(t, uint64(3), stats.Sampled)
	assert.Equal(t, uint64(2), stats.Dropped)
}

func TestPublisher_ScheduledRun(t *testing.T) {
	axes, a1, _ := testAxes()
	a1.Write(42)
	influx := &fakeInflux{}
	p, err := NewPublisher(Config{Interval: 5 * time.Millisecond}, Deps{Axes: axes, Influx: influx})
	require.NoError(t, err)

	sched := scheduler.New(scheduler.Config{Tick: time.Millisecond})
	p.Schedule(sched)
	p.Schedule(sched)
	assert.Equal(t, 1, sched.Stats().Timers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)
	go p.Run(ctx)

	require.Eventually(t, func() bool { return p.Stats().Published >= 2 }, 2*time.Second, 5*time.Millisecond)

	influx.mu.Lock()
	defer influx.mu.Unlock()
	assert.Equal(t, point{"axis1", 42}, influx.positions[0])
}

// pins is a settable PinReader.
type pins struct {
	mu     sync.Mutex
	levels map[int]bool
	err    error
}

func (p *pins) Get(pin int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels[pin], p.err
}

func (p *pins) set(cw, ccw bool) {
	p.mu.Lock()
	p.levels[1], p.levels[2] = cw, ccw
	p.mu.Unlock()
}

type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *logRecorder) add(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}
func (l *logRecorder) Debug(msg string, _ ...any) { l.add("debug:" + msg) }
func (l *logRecorder) Info(msg string, _ ...any)  { l.add("info:" + msg) }
func (l *logRecorder) Warn(msg string, _ ...any)  { l.add("warn:" + msg) }
func (l *logRecorder) Error(msg string, _ ...any) { l.add("error:" + msg) }

func TestPollAxes(t *testing.T) {
	p := &pins{levels: map[int]bool{}}
	enc := encoder.New(encoder.Config{Name: "axis1", CWPin: 1, CCWPin: 2}, p)
	logs := &logRecorder{}

	sched := scheduler.New(scheduler.Config{})
	PollAxes(sched, []AxisPoll{{Encoder: enc, Interval: time.Millisecond}}, logs)
	ctx := context.Background()

	// dispatch waits for the poll timer to come due and runs it once.
	dispatch := func() {
		before := sched.Stats().Dispatches
		require.Eventually(t, func() bool {
			_ = sched.Dispatch(ctx)
			return sched.Stats().Dispatches > before
		}, time.Second, time.Millisecond)
	}

	dispatch() // primes at 00
	for _, s := range [][2]bool{{true, false}, {true, true}, {false, true}, {false, false}} {
		p.set(s[0], s[1])
		dispatch()
	}
	assert.Equal(t, int32(4), enc.Read())

	p.mu.Lock()
	p.err = errors.New("gpio unexported")
	p.mu.Unlock()
	dispatch()
	dispatch()

	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
	dispatch()

	logs.mu.Lock()
	defer logs.mu.Unlock()
	assert.Equal(t, []string{"warn:axis encoder read failing", "info:axis encoder read recovered"}, logs.lines)
}

func TestCommands(t *testing.T) {
	bus := newFakeBus()
	ctrl := fake.New().Reply(":GR#", "12:34:56")
	sched := scheduler.New(scheduler.Config{})
	rel := relay.New(ctrl, sched.Yield, relay.Config{})

	c := NewCommands(bus, sched, rel, 1, nil)
	require.NoError(t, c.Start(context.Background()))

	handler, ok := bus.handlers["sws/test/command"]
	require.True(t, ok)

	require.NoError(t, handler("sws/test/command", []byte(":GR#\n")))
	require.NoError(t, handler("sws/test/command", []byte("  ")))

	resp := bus.on("sws/test/response")
	require.Len(t, resp, 1)
	assert.Equal(t, "12:34:56", resp[0].payload)
	assert.False(t, resp[0].retained)
	assert.Equal(t, 1, ctrl.Count(":GR#"))
	assert.Equal(t, uint64(1), sched.Stats().Yields)

	require.NoError(t, c.Stop())
	_, ok = bus.handlers["sws/test/command"]
	assert.False(t, ok)
}

func TestCommands_CancelledWhileWaiting(t *testing.T) {
	bus := newFakeBus()
	sched := scheduler.New(scheduler.Config{})
	rel := relay.New(fake.New(), sched.Yield, relay.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	c := NewCommands(bus, sched, rel, 1, nil)
	require.NoError(t, c.Start(ctx))

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = sched.Exec(context.Background(), func() {
			close(held)
			<-release
		})
	}()
	<-held
	cancel()

	err := bus.handlers["sws/test/command"]("sws/test/command", []byte(":GR#"))
	close(release)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, bus.on("sws/test/response"))
}
