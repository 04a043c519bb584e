package encoder

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forward is one full quadrature cycle in the counting-up direction.
var forward = [][2]bool{
	{true, false},  // 10
	{true, true},   // 11
	{false, true},  // 01
	{false, false}, // 00
}

func step(e *Encoder, n int, reverse bool) {
	for i := 0; i < n; i++ {
		idx := i % len(forward)
		if reverse {
			// Walking the cycle backwards from 00: 01, 11, 10, 00.
			idx = (len(forward) - 2 - i%len(forward) + len(forward)) % len(forward)
		}
		s := forward[idx]
		e.Update(s[0], s[1])
	}
}

func primed() *Encoder {
	e := New(Config{Name: "axis1", CWPin: 14, CCWPin: 12}, nil)
	e.Update(false, false)
	return e
}

func TestEncoder_ForwardCounts(t *testing.T) {
	e := primed()
	step(e, 8, false)
	assert.Equal(t, int32(8), e.Read())
}

func TestEncoder_ReverseCounts(t *testing.T) {
	e := primed()
	step(e, 6, true)
	assert.Equal(t, int32(-6), e.Read())
}

func TestEncoder_WriteThenMove(t *testing.T) {
	tests := []struct {
		name string
		base int32
		inc  int
		dec  int
	}{
		{name: "home at zero", base: 0, inc: 5, dec: 2},
		{name: "negative base", base: -1000, inc: 3, dec: 7},
		{name: "large base", base: 1 << 20, inc: 12, dec: 0},
		{name: "no motion", base: 42, inc: 0, dec: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := primed()
			e.Write(tt.base)
			// Increments end back on 00 only on multiples of four, so
			// decrement from wherever the forward walk stopped.
			for i := 0; i < tt.inc; i++ {
				s := forward[i%4]
				e.Update(s[0], s[1])
			}
			for i := 0; i < tt.dec; i++ {
				// Reverse step from the current state.
				cur := e.state
				prev := prevState(cur)
				e.Update(prev&0b10 != 0, prev&0b01 != 0)
			}
			assert.Equal(t, tt.base+int32(tt.inc)-int32(tt.dec), e.Read())
			assert.Zero(t, e.MissedEdges())
		})
	}
}

// prevState returns the state one step behind s in the forward sequence.
func prevState(s uint8) uint8 {
	switch s {
	case 0b10:
		return 0b00
	case 0b11:
		return 0b10
	case 0b01:
		return 0b11
	default:
		return 0b01
	}
}

func TestEncoder_DoubleBitJumpIgnored(t *testing.T) {
	tests := []struct {
		name     string
		from, to [2]bool
	}{
		{name: "00 to 11", from: [2]bool{false, false}, to: [2]bool{true, true}},
		{name: "11 to 00", from: [2]bool{true, true}, to: [2]bool{false, false}},
		{name: "01 to 10", from: [2]bool{false, true}, to: [2]bool{true, false}},
		{name: "10 to 01", from: [2]bool{true, false}, to: [2]bool{false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Config{Name: "axis2"}, nil)
			e.Update(tt.from[0], tt.from[1])
			e.Write(10)

			got := e.Update(tt.to[0], tt.to[1])

			assert.Equal(t, int32(10), got)
			assert.Equal(t, uint64(1), e.MissedEdges())
		})
	}
}

func TestEncoder_FirstSamplePrimes(t *testing.T) {
	e := New(Config{Name: "axis1"}, nil)
	e.Update(true, true)
	assert.Equal(t, int32(0), e.Read())
	assert.Zero(t, e.MissedEdges())
}

func TestEncoder_ReadIsNonDestructive(t *testing.T) {
	e := primed()
	step(e, 3, false)
	assert.Equal(t, e.Read(), e.Read())
}

func TestEncoder_ConcurrentWriteAndUpdate(t *testing.T) {
	e := primed()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		step(e, 4000, false)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			e.Write(0)
			_ = e.Read()
		}
	}()
	wg.Wait()

	// After the last write nothing else moved the counter backwards, so it is
	// bounded by the number of forward steps.
	assert.GreaterOrEqual(t, e.Read(), int32(0))
	assert.LessOrEqual(t, e.Read(), int32(4000))
	assert.Zero(t, e.MissedEdges())
}

type mapPins map[int]bool

func (m mapPins) Get(pin int) (bool, error) {
	v, ok := m[pin]
	if !ok {
		return false, errors.New("no such pin")
	}
	return v, nil
}

func TestEncoder_Poll(t *testing.T) {
	pins := mapPins{14: false, 12: false}
	e := New(Config{Name: "axis1", CWPin: 14, CCWPin: 12}, pins)

	require.NoError(t, e.Poll())
	pins[14] = true
	require.NoError(t, e.Poll())
	pins[12] = true
	require.NoError(t, e.Poll())

	assert.Equal(t, int32(2), e.Read())
}

func TestEncoder_PollErrors(t *testing.T) {
	e := New(Config{Name: "axis1", CWPin: 1, CCWPin: 2}, mapPins{1: true})
	assert.Error(t, e.Poll())

	noPins := New(Config{Name: "axis1"}, nil)
	assert.Error(t, noPins.Poll())
}

func TestAxes(t *testing.T) {
	a1 := New(Config{Name: "axis1"}, nil)
	a2 := New(Config{Name: "axis2"}, nil)
	dup := New(Config{Name: "axis1"}, nil)

	axes := NewAxes(a1, a2, dup)

	assert.Equal(t, 2, axes.Len())
	assert.Equal(t, []*Encoder{a1, a2}, axes.All())

	got, err := axes.Get("axis2")
	require.NoError(t, err)
	assert.Same(t, a2, got)

	_, err = axes.Get("axis9")
	assert.ErrorIs(t, err, ErrUnknownAxis)
}

func TestSysfsPins(t *testing.T) {
	root := t.TempDir()
	for pin, value := range map[int]string{5: "1\n", 4: "0\n"} {
		dir := filepath.Join(root, "gpio"+strconv.Itoa(pin))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "value"), []byte(value), 0o600))
	}

	pins := SysfsPins{Root: root}

	high, err := pins.Get(5)
	require.NoError(t, err)
	assert.True(t, high)

	low, err := pins.Get(4)
	require.NoError(t, err)
	assert.False(t, low)

	_, err = pins.Get(99)
	assert.Error(t, err)
}
