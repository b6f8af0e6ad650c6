package core

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every error that rejects a run's setup.
var ErrInvalidConfig = errors.New("invalid configuration")

// Action is one of the three things a cleaning agent can do in a step.
type Action int

const (
	Suck Action = iota
	MoveLeft
	MoveRight
)

// Actions lists every valid action in declaration order.
var Actions = []Action{Suck, MoveLeft, MoveRight}

func (a Action) String() string {
	switch a {
	case Suck:
		return "Suck"
	case MoveLeft:
		return "MoveLeft"
	case MoveRight:
		return "MoveRight"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Valid reports whether a is one of the declared actions.
func (a Action) Valid() bool {
	switch a {
	case Suck, MoveLeft, MoveRight:
		return true
	}
	return false
}

// ParseAction maps a label such as "MoveRight" back to its Action.
func ParseAction(label string) (Action, error) {
	for _, a := range Actions {
		if a.String() == label {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", label)
}

func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid action %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Percept is the agent's view of its current room, taken fresh on every call.
type Percept struct {
	Position  int
	Clean     bool
	Dirtiness int
	Energy    float64
}

// TerminationReason explains why a run stopped.
type TerminationReason string

const (
	ReasonNone           TerminationReason = ""
	ReasonMaxSteps       TerminationReason = "Maximum steps reached"
	ReasonNoValidActions TerminationReason = "No valid actions possible"
	ReasonActionFailed   TerminationReason = "Action failed due to insufficient energy"
	ReasonNoEnergy       TerminationReason = "No energy for meaningful actions"
	ReasonAllClean       TerminationReason = "All rooms clean and no meaningful actions"
)

// Results is the outcome of a single run as handed to reporting.
type Results struct {
	FinalRoomStates      []int             `json:"final_room_states" yaml:"final_room_states"`
	RoomsCleaned         int               `json:"rooms_cleaned" yaml:"rooms_cleaned"`
	TotalEnergyConsumed  float64           `json:"total_energy_consumed" yaml:"total_energy_consumed"`
	FinalRemainingEnergy float64           `json:"final_remaining_energy" yaml:"final_remaining_energy"`
	ActionSequence       []Action          `json:"action_sequence" yaml:"action_sequence"`
	StepsExecuted        int               `json:"steps_executed" yaml:"steps_executed"`
	TerminationReason    TerminationReason `json:"termination_reason" yaml:"termination_reason"`
}

// ActionLabels returns the action sequence as plain strings.
func (r Results) ActionLabels() []string {
	labels := make([]string, len(r.ActionSequence))
	for i, a := range r.ActionSequence {
		labels[i] = a.String()
	}
	return labels
}

// ToMap returns the results keyed exactly as the reporting contract names them.
func (r Results) ToMap() map[string]any {
	states := make([]int, len(r.FinalRoomStates))
	copy(states, r.FinalRoomStates)
	return map[string]any{
		"final_room_states":      states,
		"rooms_cleaned":          r.RoomsCleaned,
		"total_energy_consumed":  r.TotalEnergyConsumed,
		"final_remaining_energy": r.FinalRemainingEnergy,
		"action_sequence":        r.ActionLabels(),
		"steps_executed":         r.StepsExecuted,
		"termination_reason":     string(r.TerminationReason),
	}
}
