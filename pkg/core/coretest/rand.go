// Package coretest provides test doubles for the core interfaces.
package coretest

// ScriptedRand implements core.Rand by replaying fixed draws.
// Once a script is exhausted it falls back to the configured defaults, so a
// ScriptedRand with no floats and a default of 1 never re-dirties a room.
type ScriptedRand struct {
	floats []float64
	ints   []int

	DefaultFloat float64
	DefaultInt   int

	// Call tracking
	FloatCalls int
	IntCalls   int
}

// NewScriptedRand returns a ScriptedRand whose Float64 draws default to 0.99,
// above every probability threshold used by the simulation.
func NewScriptedRand() *ScriptedRand {
	return &ScriptedRand{DefaultFloat: 0.99}
}

// WithFloats appends values returned by successive Float64 calls.
func (r *ScriptedRand) WithFloats(values ...float64) *ScriptedRand {
	r.floats = append(r.floats, values...)
	return r
}

// WithInts appends values returned by successive IntN calls. Each value is
// reduced modulo n at draw time.
func (r *ScriptedRand) WithInts(values ...int) *ScriptedRand {
	r.ints = append(r.ints, values...)
	return r
}

func (r *ScriptedRand) Float64() float64 {
	r.FloatCalls++
	if len(r.floats) == 0 {
		return r.DefaultFloat
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *ScriptedRand) IntN(n int) int {
	r.IntCalls++
	v := r.DefaultInt
	if len(r.ints) > 0 {
		v = r.ints[0]
		r.ints = r.ints[1:]
	}
	return v % n
}
