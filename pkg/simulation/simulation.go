// Package simulation runs a single cleaning agent against a row of rooms.
//
// A run is strictly sequential. Each Step decides and performs one action,
// applies a stochastic re-dirtying pass and evaluates the termination
// conditions, in that order. Every random draw comes from one core.Rand
// owned by the Simulation, so a seeded generator reproduces a run exactly.
//
// Usage:
//
//	sim, err := simulation.New(10, 100, nil, simulation.WithSeed(42))
//	if err != nil {
//	    return err
//	}
//	if err := sim.Run(ctx); err != nil {
//	    return err
//	}
//	results := sim.Results()
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/boristopalov/cleaner/pkg/agent"
	"github.com/boristopalov/cleaner/pkg/core"
	"github.com/boristopalov/cleaner/pkg/environment"
	"github.com/boristopalov/cleaner/pkg/logging"
	"github.com/boristopalov/cleaner/pkg/memory"
	"github.com/boristopalov/cleaner/pkg/messaging"
	"github.com/google/uuid"
)

// RedirtyProbability is the per-step chance that a clean room gets dirty.
const RedirtyProbability = 0.10

// Simulation owns one environment and one agent for the lifetime of a run.
type Simulation struct {
	id       string
	env      core.Environment
	agent    *agent.Agent
	rng      core.Rand
	maxSteps int

	currentStep int
	terminated  bool
	reason      core.TerminationReason

	history *memory.History
	broker  messaging.Broker
	logger  *slog.Logger
}

type SimulationParams struct {
	RunID           string
	Rand            core.Rand
	Logger          *slog.Logger
	Broker          messaging.Broker
	HistoryCapacity int
}

type SimulationOption func(*SimulationParams)

func WithRunID(id string) SimulationOption {
	return func(p *SimulationParams) {
		p.RunID = id
	}
}

// WithRand makes the run draw from rng. Callers that also generate initial
// dirt should pass the same generator so one seed covers the whole run.
func WithRand(rng core.Rand) SimulationOption {
	return func(p *SimulationParams) {
		p.Rand = rng
	}
}

// WithSeed is shorthand for WithRand(NewRand(seed)).
func WithSeed(seed uint64) SimulationOption {
	return func(p *SimulationParams) {
		p.Rand = NewRand(seed)
	}
}

func WithLogger(logger *slog.Logger) SimulationOption {
	return func(p *SimulationParams) {
		p.Logger = logger
	}
}

// WithBroker publishes a step event after every executed action and a
// terminated event when the run stops.
func WithBroker(b messaging.Broker) SimulationOption {
	return func(p *SimulationParams) {
		p.Broker = b
	}
}

// WithHistoryCapacity bounds the per-step history; 0 keeps every step.
func WithHistoryCapacity(n int) SimulationOption {
	return func(p *SimulationParams) {
		p.HistoryCapacity = n
	}
}

// NewRand returns the generator used for seeded runs.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func defaultSimulationParams() *SimulationParams {
	return &SimulationParams{
		RunID:  "run-" + uuid.New().String(),
		Logger: logging.Discard(),
	}
}

// New creates a run over size rooms that stops after at most maxSteps
// steps. A nil initial slice starts every room clean.
func New(size, maxSteps int, initial []int, opts ...SimulationOption) (*Simulation, error) {
	if maxSteps <= 0 {
		return nil, fmt.Errorf("%w: max steps must be positive, got %d", environment.ErrInvalidConfig, maxSteps)
	}

	params := defaultSimulationParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Logger == nil {
		params.Logger = logging.Discard()
	}
	if params.Rand == nil {
		params.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	env, err := environment.New(size, initial)
	if err != nil {
		return nil, fmt.Errorf("creating environment: %w", err)
	}

	logger := params.Logger.With("run", params.RunID)
	a, err := agent.NewAgent(size, agent.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	return &Simulation{
		id:       params.RunID,
		env:      env,
		agent:    a,
		rng:      params.Rand,
		maxSteps: maxSteps,
		history:  memory.NewHistory(params.HistoryCapacity),
		broker:   params.Broker,
		logger:   logger,
	}, nil
}

func (s *Simulation) ID() string {
	return s.id
}

// Terminated reports whether the run has stopped.
func (s *Simulation) Terminated() bool {
	return s.terminated
}

// Reason returns why the run stopped, or ReasonNone while it is running.
func (s *Simulation) Reason() core.TerminationReason {
	return s.reason
}

// CurrentStep returns the number of steps completed so far.
func (s *Simulation) CurrentStep() int {
	return s.currentStep
}

// History returns the recorded steps, oldest first.
func (s *Simulation) History() []memory.StepRecord {
	return s.history.Records()
}

// Step advances the run by one step and reports whether it may continue.
// Once the run has stopped Step keeps returning false without side effects.
func (s *Simulation) Step() bool {
	if s.terminated {
		return false
	}

	if s.currentStep >= s.maxSteps {
		return s.stop(core.ReasonMaxSteps)
	}

	if s.logger.Enabled(context.Background(), logging.LevelTrace) {
		p := s.agent.Percepts(s.env)
		s.logger.Log(context.Background(), logging.LevelTrace, "percept",
			"step", s.currentStep,
			"position", p.Position,
			"clean", p.Clean,
			"dirtiness", p.Dirtiness,
			"energy", p.Energy,
		)
	}

	action, ok := s.agent.Decide(s.env)
	if !ok {
		return s.stop(core.ReasonNoValidActions)
	}

	if !s.agent.Perform(s.env, action) {
		return s.stop(core.ReasonActionFailed)
	}

	redirtied := s.redirty()
	s.record(action, redirtied)

	if s.agent.Energy() <= 0 && !s.agent.HasMeaningfulActions(s.env) {
		return s.stop(core.ReasonNoEnergy)
	}

	if s.env.AllRoomsClean() && !s.agent.HasMeaningfulActions(s.env) {
		return s.stop(core.ReasonAllClean)
	}

	s.currentStep++
	return true
}

// Run steps until the run stops. ctx is only checked between steps; on
// cancellation Run returns ctx.Err() and the run stays unterminated.
func (s *Simulation) Run(ctx context.Context) error {
	s.logger.Info("simulation started",
		"rooms", s.env.Size(),
		"max_steps", s.maxSteps,
		"initial_energy", s.agent.InitialEnergy(),
		"initial_dirtiness", s.env.DirtinessLevels(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Warn("simulation cancelled", "step", s.currentStep, "error", ctx.Err())
			return ctx.Err()
		default:
		}

		if !s.Step() {
			break
		}
	}

	s.logger.Info("simulation finished",
		"reason", string(s.reason),
		"steps", s.currentStep,
		"rooms_cleaned", s.agent.RoomsCleaned(),
		"remaining_energy", s.agent.Energy(),
	)
	return nil
}

// Results reports the current outcome of the run.
func (s *Simulation) Results() core.Results {
	return core.Results{
		FinalRoomStates:      s.env.DirtinessLevels(),
		RoomsCleaned:         s.agent.RoomsCleaned(),
		TotalEnergyConsumed:  s.agent.TotalEnergyConsumed(),
		FinalRemainingEnergy: s.agent.Energy(),
		ActionSequence:       s.agent.Actions(),
		StepsExecuted:        s.currentStep,
		TerminationReason:    s.reason,
	}
}

// redirty soils each clean room with RedirtyProbability at a uniform level
// in [1,5]. Rooms are visited in index order and a level is only drawn for
// rooms that get dirty, which fixes the order of draws from the stream.
func (s *Simulation) redirty() []int {
	var soiled []int
	for i := 0; i < s.env.Size(); i++ {
		if clean, _ := s.env.RoomState(i); !clean {
			continue
		}
		if s.rng.Float64() < RedirtyProbability {
			s.env.MakeRoomDirty(i, s.rng.IntN(environment.MaxDirtiness)+1)
			soiled = append(soiled, i)
		}
	}
	return soiled
}

func (s *Simulation) record(action core.Action, redirtied []int) {
	rec := memory.StepRecord{
		Step:      s.currentStep,
		Action:    action,
		Position:  s.agent.Position(),
		Energy:    s.agent.Energy(),
		Dirtiness: s.env.DirtinessLevels(),
		Redirtied: redirtied,
	}
	s.history.Store(rec)

	s.logger.Debug("step",
		"step", rec.Step,
		"action", action.String(),
		"position", rec.Position,
		"energy", rec.Energy,
		"redirtied", len(redirtied),
	)

	s.publish(messaging.Event{
		Kind:   messaging.EventStep,
		Step:   rec.Step,
		Record: &rec,
	})
}

func (s *Simulation) stop(reason core.TerminationReason) bool {
	s.terminated = true
	s.reason = reason
	s.publish(messaging.Event{
		Kind:   messaging.EventTerminated,
		Step:   s.currentStep,
		Reason: reason,
	})
	return false
}

func (s *Simulation) publish(evt messaging.Event) {
	if s.broker == nil {
		return
	}
	evt.RunID = s.id
	evt.Timestamp = time.Now()
	if err := s.broker.Publish(evt); err != nil {
		s.logger.Warn("failed to publish event", "kind", string(evt.Kind), "step", evt.Step, "error", err)
	}
}
