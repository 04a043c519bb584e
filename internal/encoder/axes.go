package encoder

import "errors"

// ErrUnknownAxis is returned when an axis name is not registered.
var ErrUnknownAxis = errors.New("encoder: unknown axis")

// Axes is an ordered set of named axis encoders.
// It is built once at startup and read-only afterwards.
type Axes struct {
	order  []string
	byName map[string]*Encoder
}

// NewAxes builds the registry. Later encoders with a duplicate name are ignored.
func NewAxes(encoders ...*Encoder) *Axes {
	a := &Axes{byName: make(map[string]*Encoder, len(encoders))}
	for _, e := range encoders {
		if _, exists := a.byName[e.Name()]; exists {
			continue
		}
		a.order = append(a.order, e.Name())
		a.byName[e.Name()] = e
	}
	return a
}

// Get returns the encoder for the named axis.
func (a *Axes) Get(name string) (*Encoder, error) {
	e, ok := a.byName[name]
	if !ok {
		return nil, ErrUnknownAxis
	}
	return e, nil
}

// All returns the encoders in registration order.
func (a *Axes) All() []*Encoder {
	out := make([]*Encoder, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.byName[name])
	}
	return out
}

// Len returns the number of axes.
func (a *Axes) Len() int {
	return len(a.order)
}
