package agent

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/boristopalov/cleaner/pkg/core"
	"github.com/boristopalov/cleaner/pkg/logging"
	"github.com/google/uuid"
)

const (
	// EnergyPerRoom scales the starting energy budget with environment size.
	EnergyPerRoom = 2.5
	// MoveCost is the flat energy cost of a move in either direction.
	MoveCost = 2.0
)

// Agent is a reflex cleaner patrolling a row of rooms. It starts in room 0
// with EnergyPerRoom energy per room.
type Agent struct {
	id     string
	logger *slog.Logger

	size          int
	position      int
	energy        float64
	initialEnergy float64

	actions             []core.Action
	roomsCleaned        int
	totalEnergyConsumed float64
	cleaned             map[int]struct{} // rooms already credited to roomsCleaned
}

type AgentParams struct {
	AgentID string
	Logger  *slog.Logger
}

type AgentOption func(*AgentParams)

func WithAgentID(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithLogger(logger *slog.Logger) AgentOption {
	return func(p *AgentParams) {
		p.Logger = logger
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		AgentID: "agent-" + uuid.New().String(),
		Logger:  logging.Discard(),
	}
}

// NewAgent creates an agent for an environment of size rooms.
func NewAgent(size int, opts ...AgentOption) (*Agent, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: environment size must be positive, got %d", core.ErrInvalidConfig, size)
	}

	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Logger == nil {
		params.Logger = logging.Discard()
	}

	energy := EnergyPerRoom * float64(size)
	return &Agent{
		id:            params.AgentID,
		logger:        params.Logger,
		size:          size,
		energy:        energy,
		initialEnergy: energy,
		actions:       make([]core.Action, 0),
		cleaned:       make(map[int]struct{}),
	}, nil
}

func (a *Agent) GetID() string {
	return a.id
}

func (a *Agent) Position() int {
	return a.position
}

func (a *Agent) Energy() float64 {
	return a.energy
}

func (a *Agent) InitialEnergy() float64 {
	return a.initialEnergy
}

// Actions returns a copy of every action performed so far, in order.
func (a *Agent) Actions() []core.Action {
	actions := make([]core.Action, len(a.actions))
	copy(actions, a.actions)
	return actions
}

// RoomsCleaned counts distinct rooms the agent has ever cleaned.
func (a *Agent) RoomsCleaned() int {
	return a.roomsCleaned
}

// CleanedRooms returns the indices of every room the agent has cleaned, in
// ascending order.
func (a *Agent) CleanedRooms() []int {
	rooms := make([]int, 0, len(a.cleaned))
	for i := range a.cleaned {
		rooms = append(rooms, i)
	}
	slices.Sort(rooms)
	return rooms
}

func (a *Agent) TotalEnergyConsumed() float64 {
	return a.totalEnergyConsumed
}

// Percepts reads the agent's current room from env.
func (a *Agent) Percepts(env core.Environment) core.Percept {
	clean, dirtiness := env.RoomState(a.position)
	return core.Percept{
		Position:  a.position,
		Clean:     clean,
		Dirtiness: dirtiness,
		Energy:    a.energy,
	}
}

// CanPerform reports whether the agent can afford action. dirtiness is only
// consulted for Suck.
func (a *Agent) CanPerform(action core.Action, dirtiness int) bool {
	switch action {
	case core.Suck:
		return dirtiness > 0 && a.energy >= float64(dirtiness)
	case core.MoveLeft, core.MoveRight:
		return a.energy >= MoveCost
	}
	return false
}

// Decide picks the next action. It sucks when the room is dirty and
// affordable, otherwise moves right until the last room, and only moves left
// from the last room. Since moving right wins whenever the agent is not in
// the last room, once the right wall is reached the agent oscillates between
// the last two rooms. ok is false when nothing is possible.
func (a *Agent) Decide(env core.Environment) (action core.Action, ok bool) {
	p := a.Percepts(env)

	if !p.Clean && a.CanPerform(core.Suck, p.Dirtiness) {
		return core.Suck, true
	}

	if a.position < a.size-1 {
		if a.CanPerform(core.MoveRight, 0) {
			return core.MoveRight, true
		}
	} else if a.position > 0 {
		if a.CanPerform(core.MoveLeft, 0) {
			return core.MoveLeft, true
		}
	}

	return 0, false
}

// Perform executes action against env, re-checking affordability and
// boundaries first. A rejected action leaves the agent untouched.
func (a *Agent) Perform(env core.Environment, action core.Action) bool {
	p := a.Percepts(env)

	switch action {
	case core.Suck:
		if !a.CanPerform(core.Suck, p.Dirtiness) {
			return a.reject(action, p)
		}
		cost := float64(env.CleanRoom(a.position))
		a.spend(cost)
		a.actions = append(a.actions, core.Suck)
		if _, seen := a.cleaned[a.position]; !seen {
			a.cleaned[a.position] = struct{}{}
			a.roomsCleaned++
		}
		return true

	case core.MoveRight:
		if !a.CanPerform(core.MoveRight, 0) || a.position >= a.size-1 {
			return a.reject(action, p)
		}
		a.position++
		a.spend(MoveCost)
		a.actions = append(a.actions, core.MoveRight)
		return true

	case core.MoveLeft:
		if !a.CanPerform(core.MoveLeft, 0) || a.position <= 0 {
			return a.reject(action, p)
		}
		a.position--
		a.spend(MoveCost)
		a.actions = append(a.actions, core.MoveLeft)
		return true
	}

	return a.reject(action, p)
}

// HasMeaningfulActions reports whether the agent could still do something
// useful. It only informs termination, never the choice of action.
func (a *Agent) HasMeaningfulActions(env core.Environment) bool {
	if env.AllRoomsClean() {
		return false
	}

	if a.energy < MoveCost {
		_, dirtiness := env.RoomState(a.position)
		return dirtiness > 0 && a.energy >= float64(dirtiness)
	}

	return true
}

func (a *Agent) spend(cost float64) {
	a.energy -= cost
	a.totalEnergyConsumed += cost
}

func (a *Agent) reject(action core.Action, p core.Percept) bool {
	a.logger.Debug("action rejected",
		"agent", a.id,
		"action", action.String(),
		"position", p.Position,
		"dirtiness", p.Dirtiness,
		"energy", p.Energy,
	)
	return false
}
