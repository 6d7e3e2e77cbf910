// Package strategy maps indicator state to the desired directional signal.
//
// The policy is deliberately isolated behind an interface: the crossover
// passthrough below can be swapped for hysteresis or confirmation-bar
// variants without touching the indicator engine or the reconciler.
package strategy

import (
	"futures-botv1/internal/indicator"
)

// Policy decides the desired directional signal from indicator state.
type Policy interface {
	// Name returns the unique name of the policy.
	Name() string

	// Latest returns the desired signal for the given indicator state.
	Latest(st indicator.State) indicator.Signal
}

// Crossover is the default policy: a pure passthrough of the crossover
// signal computed by the indicator engine. Flat while indicators are
// undefined.
type Crossover struct{}

// NewCrossover creates the passthrough crossover policy.
func NewCrossover() *Crossover {
	return &Crossover{}
}

func (c *Crossover) Name() string { return "SMA_Crossover" }

func (c *Crossover) Latest(st indicator.State) indicator.Signal {
	if !st.Ready {
		return indicator.Flat
	}
	return st.Signal
}
