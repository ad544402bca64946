// Package param shapes values set on graph value inputs.
//
// Shaping happens when a value is set, never when it is read: Set clamps the
// value to the declared range and optionally starts a linear ramp towards it.
// SetNormalized maps a position in [0, 1] through the declared curve first.
package param

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidRange is returned when range minimum is not below maximum.
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidCurve is returned when curve cannot be applied to the range.
	ErrInvalidCurve = errors.New("invalid curve")
	// ErrInvalidRamp is returned for negative ramp length.
	ErrInvalidRamp = errors.New("invalid ramp")
)

// Curve maps normalized positions to values.
type Curve uint8

// Supported curves.
const (
	Linear Curve = iota
	Logarithmic
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case Logarithmic:
		return "log"
	}
	return fmt.Sprintf("curve(%d)", uint8(c))
}

// ParseCurve returns curve by its name. Empty name is linear.
func ParseCurve(s string) (Curve, error) {
	switch s {
	case "", "linear":
		return Linear, nil
	case "log", "logarithmic":
		return Logarithmic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCurve, s)
}

// Spec describes shaping of a value input.
type Spec struct {
	Min, Max float32
	// Bounded is true when Min and Max are set.
	Bounded bool
	Curve   Curve
	// Ramp is number of ticks a new value takes to reach its target.
	Ramp int
}

// Range returns a bounded linear spec.
func Range(min, max float32) Spec {
	return Spec{Min: min, Max: max, Bounded: true}
}

// Validate checks spec consistency.
func (s Spec) Validate() error {
	if s.Ramp < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRamp, s.Ramp)
	}
	if !s.Bounded {
		if s.Curve != Linear {
			return fmt.Errorf("%w: %v curve needs a range", ErrInvalidCurve, s.Curve)
		}
		return nil
	}
	if !(s.Min < s.Max) {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, s.Min, s.Max)
	}
	if s.Curve == Logarithmic && s.Min <= 0 {
		return fmt.Errorf("%w: log curve needs positive range, got [%v, %v]", ErrInvalidCurve, s.Min, s.Max)
	}
	return nil
}

// Clamp limits v to the range.
func (s Spec) Clamp(v float32) float32 {
	if !s.Bounded {
		return v
	}
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// Denormalize maps x in [0, 1] to the range with the curve. Unbounded specs
// return x as is.
func (s Spec) Denormalize(x float32) float32 {
	if !s.Bounded {
		return x
	}
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	switch s.Curve {
	case Logarithmic:
		ratio := float64(s.Max) / float64(s.Min)
		return s.Clamp(float32(float64(s.Min) * math.Pow(ratio, float64(x))))
	default:
		return s.Min + x*(s.Max-s.Min)
	}
}

// Ramp moves a value linearly towards a target.
type Ramp struct {
	step      float32
	target    float32
	remaining int
}

// Start begins a ramp from current to target over n ticks. Zero ticks
// completes it on the next advance.
func (r *Ramp) Start(current, target float32, n int) {
	if n < 1 {
		n = 1
	}
	r.target = target
	r.remaining = n
	r.step = (target - current) / float32(n)
}

// Active reports if ramp has remaining ticks.
func (r *Ramp) Active() bool {
	return r.remaining > 0
}

// Stop cancels the ramp.
func (r *Ramp) Stop() {
	r.remaining = 0
}

// Advance moves v one tick. The last tick sets v to the exact target.
func (r *Ramp) Advance(v *float32) {
	if r.remaining == 0 {
		return
	}
	r.remaining--
	if r.remaining == 0 {
		*v = r.target
		return
	}
	*v += r.step
}

// Input applies a spec to a value stored elsewhere.
type Input struct {
	Spec Spec
	ramp Ramp
}

// Set shapes v and writes it to dst. It starts a ramp when Spec.Ramp is set.
func (in *Input) Set(dst *float32, v float32) {
	v = in.Spec.Clamp(v)
	if in.Spec.Ramp > 0 {
		in.ramp.Start(*dst, v, in.Spec.Ramp)
		return
	}
	in.ramp.Stop()
	*dst = v
}

// SetNormalized maps x through the curve and sets the result.
func (in *Input) SetNormalized(dst *float32, x float32) {
	in.Set(dst, in.Spec.Denormalize(x))
}

// SetWithRamp starts a ramp of n ticks whatever Spec.Ramp is.
func (in *Input) SetWithRamp(dst *float32, v float32, n int) {
	in.ramp.Start(*dst, in.Spec.Clamp(v), n)
}

// Advance moves active ramp one tick.
func (in *Input) Advance(dst *float32) {
	in.ramp.Advance(dst)
}

// Ramping reports if a ramp is in progress.
func (in *Input) Ramping() bool {
	return in.ramp.Active()
}
