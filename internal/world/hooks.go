package world

import (
	"math/rand"

	"evoworld/internal/signal"
)

// Hooks are the organism operations a World needs. Any nil hook falls back to
// the default chosen by DefaultHooks.
type Hooks[O any] struct {
	// Clone copies an organism for reproduction. Defaults to identity, which
	// is correct for value types.
	Clone func(O) O
	// Fitness scores an organism. There is no default; selection calls fail
	// when neither a hook nor an explicit fitness function is supplied.
	Fitness func(O) float64
	// Mutate changes an organism in place and reports whether it changed.
	Mutate func(O, *rand.Rand) bool
	// Setup runs after an organism is placed at pos.
	Setup func(org O, hub *signal.Hub[O], pos int)
	// Transmit passes a symbiont from host to target and reports whether
	// anything was transferred.
	Transmit func(host, target O, rng *rand.Rand) bool
}

// Organism capabilities probed by DefaultHooks.
type (
	Cloner[O any] interface {
		Clone() O
	}
	Scorer interface {
		Fitness() float64
	}
	Mutator interface {
		Mutate(rng *rand.Rand) bool
	}
	SetupHooker[O any] interface {
		Setup(hub *signal.Hub[O], pos int)
	}
	Transmitter[O any] interface {
		Transmit(target O, rng *rand.Rand) bool
	}
)

// DefaultHooks wires every capability O implements and leaves the rest at
// their no-op or identity defaults.
func DefaultHooks[O any]() Hooks[O] {
	var zero O
	var h Hooks[O]
	if _, ok := any(zero).(Cloner[O]); ok {
		h.Clone = func(o O) O { return any(o).(Cloner[O]).Clone() }
	}
	if _, ok := any(zero).(Scorer); ok {
		h.Fitness = func(o O) float64 { return any(o).(Scorer).Fitness() }
	}
	if _, ok := any(zero).(Mutator); ok {
		h.Mutate = func(o O, rng *rand.Rand) bool { return any(o).(Mutator).Mutate(rng) }
	}
	if _, ok := any(zero).(SetupHooker[O]); ok {
		h.Setup = func(o O, hub *signal.Hub[O], pos int) { any(o).(SetupHooker[O]).Setup(hub, pos) }
	}
	if _, ok := any(zero).(Transmitter[O]); ok {
		h.Transmit = func(host, target O, rng *rand.Rand) bool {
			return any(host).(Transmitter[O]).Transmit(target, rng)
		}
	}
	return h.withDefaults()
}

// merge overlays the non-nil hooks of o on h.
func (h Hooks[O]) merge(o Hooks[O]) Hooks[O] {
	if o.Clone != nil {
		h.Clone = o.Clone
	}
	if o.Fitness != nil {
		h.Fitness = o.Fitness
	}
	if o.Mutate != nil {
		h.Mutate = o.Mutate
	}
	if o.Setup != nil {
		h.Setup = o.Setup
	}
	if o.Transmit != nil {
		h.Transmit = o.Transmit
	}
	return h
}

func (h Hooks[O]) withDefaults() Hooks[O] {
	if h.Clone == nil {
		h.Clone = func(o O) O { return o }
	}
	if h.Mutate == nil {
		h.Mutate = func(O, *rand.Rand) bool { return false }
	}
	if h.Setup == nil {
		h.Setup = func(O, *signal.Hub[O], int) {}
	}
	return h
}
