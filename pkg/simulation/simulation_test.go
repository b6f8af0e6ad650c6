package simulation

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boristopalov/cleaner/pkg/core"
	"github.com/boristopalov/cleaner/pkg/core/coretest"
	"github.com/boristopalov/cleaner/pkg/environment"
	"github.com/boristopalov/cleaner/pkg/logging"
	"github.com/boristopalov/cleaner/pkg/messaging"
	"github.com/google/go-cmp/cmp"
)

// quiet never re-dirties: every Float64 draw is 0.99.
func quiet() *coretest.ScriptedRand {
	return coretest.NewScriptedRand()
}

func newSim(t *testing.T, size, maxSteps int, initial []int, opts ...SimulationOption) *Simulation {
	t.Helper()
	s, err := New(size, maxSteps, initial, opts...)
	if err != nil {
		t.Fatalf("New(%d, %d, %v): %v", size, maxSteps, initial, err)
	}
	return s
}

func run(t *testing.T, s *Simulation) core.Results {
	t.Helper()
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return s.Results()
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		maxSteps int
		initial  []int
	}{
		{"zero rooms", 0, 10, nil},
		{"negative rooms", -1, 10, nil},
		{"zero steps", 3, 0, nil},
		{"length mismatch", 3, 10, []int{1, 2}},
		{"dirtiness too high", 2, 10, []int{0, 6}},
		{"dirtiness negative", 2, 10, []int{-1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.size, tt.maxSteps, tt.initial)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, environment.ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			if s != nil {
				t.Error("expected nil simulation on error")
			}
		})
	}
}

func TestNew_DefaultID(t *testing.T) {
	s := newSim(t, 2, 5, nil)
	if !strings.HasPrefix(s.ID(), "run-") {
		t.Errorf("ID() = %q, want run- prefix", s.ID())
	}
	if s.Terminated() || s.Reason() != core.ReasonNone {
		t.Error("fresh simulation should not be terminated")
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		maxSteps    int
		initial     []int
		rng         *coretest.ScriptedRand
		wantActions []core.Action
		wantReason  core.TerminationReason
		wantSteps   int
		wantRooms   []int
		wantCleaned int
		wantEnergy  float64
	}{
		{
			name:        "single dirty room cleans then stops",
			size:        1,
			maxSteps:    10,
			initial:     []int{2},
			rng:         quiet(),
			wantActions: []core.Action{core.Suck},
			wantReason:  core.ReasonAllClean,
			wantSteps:   0,
			wantRooms:   []int{0},
			wantCleaned: 1,
			wantEnergy:  0.5,
		},
		{
			// 2.5 energy cannot pay for dirtiness 3 and there is nowhere to move
			name:        "single room too dirty to afford",
			size:        1,
			maxSteps:    10,
			initial:     []int{3},
			rng:         quiet(),
			wantActions: []core.Action{},
			wantReason:  core.ReasonNoValidActions,
			wantSteps:   0,
			wantRooms:   []int{3},
			wantCleaned: 0,
			wantEnergy:  2.5,
		},
		{
			name:        "all clean stops after first move",
			size:        3,
			maxSteps:    100,
			initial:     []int{0, 0, 0},
			rng:         quiet(),
			wantActions: []core.Action{core.MoveRight},
			wantReason:  core.ReasonAllClean,
			wantSteps:   0,
			wantRooms:   []int{0, 0, 0},
			wantCleaned: 0,
			wantEnergy:  5.5,
		},
		{
			// room 0 is soiled after the first move, so the run keeps going
			// until it can no longer move
			name:        "all clean keeps going when re-dirtied",
			size:        3,
			maxSteps:    100,
			initial:     []int{0, 0, 0},
			rng:         quiet().WithFloats(0.05).WithInts(2),
			wantActions: []core.Action{core.MoveRight, core.MoveRight, core.MoveLeft},
			wantReason:  core.ReasonNoValidActions,
			wantSteps:   3,
			wantRooms:   []int{3, 0, 0},
			wantCleaned: 0,
			wantEnergy:  1.5,
		},
		{
			name:        "suck then clean environment",
			size:        2,
			maxSteps:    100,
			initial:     []int{3, 0},
			rng:         quiet(),
			wantActions: []core.Action{core.Suck},
			wantReason:  core.ReasonAllClean,
			wantSteps:   0,
			wantRooms:   []int{0, 0},
			wantCleaned: 1,
			wantEnergy:  2,
		},
		{
			// room 1 is soiled after the suck; the move right drains the
			// last of the energy
			name:        "suck move right until exhausted",
			size:        2,
			maxSteps:    100,
			initial:     []int{3, 0},
			rng:         quiet().WithFloats(0.99, 0.05).WithInts(0),
			wantActions: []core.Action{core.Suck, core.MoveRight},
			wantReason:  core.ReasonNoEnergy,
			wantSteps:   1,
			wantRooms:   []int{0, 1},
			wantCleaned: 1,
			wantEnergy:  0,
		},
		{
			name:        "boundary oscillation until exhausted",
			size:        4,
			maxSteps:    100,
			initial:     []int{0, 0, 0, 5},
			rng:         quiet(),
			wantActions: []core.Action{core.MoveRight, core.MoveRight, core.MoveRight, core.MoveLeft, core.MoveRight},
			wantReason:  core.ReasonNoEnergy,
			wantSteps:   4,
			wantRooms:   []int{0, 0, 0, 5},
			wantCleaned: 0,
			wantEnergy:  0,
		},
		{
			name:        "energy drained by suck",
			size:        2,
			maxSteps:    100,
			initial:     []int{5, 1},
			rng:         quiet(),
			wantActions: []core.Action{core.Suck},
			wantReason:  core.ReasonNoEnergy,
			wantSteps:   0,
			wantRooms:   []int{0, 1},
			wantCleaned: 1,
			wantEnergy:  0,
		},
		{
			name:        "maximum steps",
			size:        5,
			maxSteps:    2,
			initial:     []int{0, 0, 0, 0, 5},
			rng:         quiet(),
			wantActions: []core.Action{core.MoveRight, core.MoveRight},
			wantReason:  core.ReasonMaxSteps,
			wantSteps:   2,
			wantRooms:   []int{0, 0, 0, 0, 5},
			wantCleaned: 0,
			wantEnergy:  8.5,
		},
		{
			name:        "sweep cleans every room",
			size:        3,
			maxSteps:    100,
			initial:     []int{1, 1, 1},
			rng:         quiet(),
			wantActions: []core.Action{core.Suck, core.MoveRight, core.Suck, core.MoveRight, core.Suck},
			wantReason:  core.ReasonAllClean,
			wantSteps:   4,
			wantRooms:   []int{0, 0, 0},
			wantCleaned: 3,
			wantEnergy:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSim(t, tt.size, tt.maxSteps, tt.initial, WithRand(tt.rng))
			got := run(t, s)

			want := core.Results{
				FinalRoomStates:      tt.wantRooms,
				RoomsCleaned:         tt.wantCleaned,
				TotalEnergyConsumed:  2.5*float64(tt.size) - tt.wantEnergy,
				FinalRemainingEnergy: tt.wantEnergy,
				ActionSequence:       tt.wantActions,
				StepsExecuted:        tt.wantSteps,
				TerminationReason:    tt.wantReason,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Results mismatch (-want +got):\n%s", diff)
			}
			if !s.Terminated() {
				t.Error("Terminated() = false after Run")
			}
		})
	}
}

func TestSingleRoomNeverMoves(t *testing.T) {
	for level := 0; level <= environment.MaxDirtiness; level++ {
		for seed := uint64(0); seed < 20; seed++ {
			s := newSim(t, 1, 50, []int{level}, WithSeed(seed))
			for _, a := range run(t, s).ActionSequence {
				if a != core.Suck {
					t.Fatalf("level %d seed %d: single-room agent performed %v", level, seed, a)
				}
			}
		}
	}
}

// shiftingEnv reports room 0 dirty to the first RoomState call and clean
// afterwards, so the agent decides to suck but cannot perform it.
type shiftingEnv struct {
	core.Environment
	calls int
}

func (e *shiftingEnv) RoomState(i int) (bool, int) {
	e.calls++
	if i == 0 && e.calls == 1 {
		return false, 1
	}
	return e.Environment.RoomState(i)
}

func TestStep_ActionFailed(t *testing.T) {
	s := newSim(t, 2, 10, nil, WithRand(quiet()))
	s.env = &shiftingEnv{Environment: s.env}

	if s.Step() {
		t.Fatal("Step() = true, want false")
	}
	if s.Reason() != core.ReasonActionFailed {
		t.Errorf("Reason() = %q, want %q", s.Reason(), core.ReasonActionFailed)
	}
	r := s.Results()
	if len(r.ActionSequence) != 0 || r.FinalRemainingEnergy != 5 {
		t.Errorf("failed action changed agent state: %+v", r)
	}
}

func TestStep_AfterTermination(t *testing.T) {
	s := newSim(t, 1, 10, []int{2}, WithRand(quiet()))
	run(t, s)
	before := s.Results()
	reason := s.Reason()

	for i := 0; i < 3; i++ {
		if s.Step() {
			t.Fatal("Step() = true after termination")
		}
	}
	if s.Reason() != reason {
		t.Errorf("Reason changed from %q to %q", reason, s.Reason())
	}
	if diff := cmp.Diff(before, s.Results()); diff != "" {
		t.Errorf("Results changed after termination (-before +after):\n%s", diff)
	}
}

func TestRedirty_DrawOrder(t *testing.T) {
	// After the first suck only room 0 is clean: exactly one probability
	// draw and, since it succeeds, one level draw.
	rng := quiet().WithFloats(0.01).WithInts(4)
	s := newSim(t, 3, 1, []int{2, 4, 4}, WithRand(rng))

	if !s.Step() {
		t.Fatalf("first Step() stopped with %q", s.Reason())
	}
	if rng.FloatCalls != 1 || rng.IntCalls != 1 {
		t.Errorf("draws = (%d floats, %d ints), want (1, 1)", rng.FloatCalls, rng.IntCalls)
	}
	if diff := cmp.Diff([]int{5, 4, 4}, s.Results().FinalRoomStates); diff != "" {
		t.Errorf("rooms mismatch (-want +got):\n%s", diff)
	}

	hist := s.History()
	if len(hist) != 1 {
		t.Fatalf("history has %d records, want 1", len(hist))
	}
	if diff := cmp.Diff([]int{0}, hist[0].Redirtied); diff != "" {
		t.Errorf("Redirtied mismatch (-want +got):\n%s", diff)
	}
}

func TestRedirty_ThresholdIsExclusive(t *testing.T) {
	rng := quiet().WithFloats(RedirtyProbability)
	s := newSim(t, 2, 5, []int{1, 0}, WithRand(rng))
	s.Step()

	// 0.10 is not below the threshold: rooms stay clean
	if diff := cmp.Diff([]int{0, 0}, s.Results().FinalRoomStates); diff != "" {
		t.Errorf("rooms mismatch (-want +got):\n%s", diff)
	}
	if rng.IntCalls != 0 {
		t.Errorf("IntCalls = %d, want 0", rng.IntCalls)
	}
}

func TestDeterminism(t *testing.T) {
	for seed := uint64(0); seed < 25; seed++ {
		a := newSim(t, 6, 80, []int{1, 0, 3, 5, 0, 2}, WithSeed(seed))
		b := newSim(t, 6, 80, []int{1, 0, 3, 5, 0, 2}, WithSeed(seed))

		ra, rb := run(t, a), run(t, b)
		if diff := cmp.Diff(ra, rb); diff != "" {
			t.Fatalf("seed %d: results differ (-a +b):\n%s", seed, diff)
		}
		if diff := cmp.Diff(a.History(), b.History()); diff != "" {
			t.Fatalf("seed %d: history differs (-a +b):\n%s", seed, diff)
		}
	}
}

func TestDeterminism_SharedStreamWithInitialDirt(t *testing.T) {
	build := func() core.Results {
		rng := NewRand(99)
		initial := environment.RandomDirtiness(rng, 8)
		s := newSim(t, 8, 60, initial, WithRand(rng))
		return run(t, s)
	}
	if diff := cmp.Diff(build(), build()); diff != "" {
		t.Errorf("seeded runs differ (-a +b):\n%s", diff)
	}
}

// TestInvariants drives many seeded runs one step at a time and checks every
// reachable state.
func TestInvariants(t *testing.T) {
	for seed := uint64(0); seed < 150; seed++ {
		rng := NewRand(seed)
		size := rng.IntN(8) + 1
		maxSteps := rng.IntN(60) + 1
		initial := environment.RandomDirtiness(rng, size)

		s := newSim(t, size, maxSteps, initial, WithRand(rng))
		initialEnergy := 2.5 * float64(size)
		prevCleaned := 0
		evaluations := 0

		for {
			evaluations++
			more := s.Step()

			for i, d := range s.env.DirtinessLevels() {
				if d < 0 || d > environment.MaxDirtiness {
					t.Fatalf("seed %d: room %d dirtiness %d out of range", seed, i, d)
				}
			}
			if e := s.agent.Energy(); e < 0 || e > initialEnergy {
				t.Fatalf("seed %d: energy %v outside [0, %v]", seed, e, initialEnergy)
			}
			if p := s.agent.Position(); p < 0 || p >= size {
				t.Fatalf("seed %d: position %d outside [0, %d)", seed, p, size)
			}
			cleaned := s.agent.RoomsCleaned()
			if cleaned < prevCleaned {
				t.Fatalf("seed %d: rooms cleaned decreased from %d to %d", seed, prevCleaned, cleaned)
			}
			if rooms := s.agent.CleanedRooms(); cleaned != len(rooms) {
				t.Fatalf("seed %d: rooms cleaned %d != distinct cleaned rooms %v", seed, cleaned, rooms)
			}
			prevCleaned = cleaned

			if cs := s.CurrentStep(); cs < 0 || cs > maxSteps {
				t.Fatalf("seed %d: current step %d outside [0, %d]", seed, cs, maxSteps)
			}
			if !more {
				break
			}
			if evaluations > maxSteps+1 {
				t.Fatalf("seed %d: more than %d step evaluations", seed, maxSteps+1)
			}
		}

		r := s.Results()
		if r.TotalEnergyConsumed != initialEnergy-r.FinalRemainingEnergy {
			t.Errorf("seed %d: consumed %v != %v - %v", seed, r.TotalEnergyConsumed, initialEnergy, r.FinalRemainingEnergy)
		}
		if r.TerminationReason == core.ReasonNone {
			t.Errorf("seed %d: run stopped without a reason", seed)
		}
		if r.StepsExecuted > maxSteps {
			t.Errorf("seed %d: steps executed %d > max %d", seed, r.StepsExecuted, maxSteps)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newSim(t, 3, 10, []int{1, 1, 1}, WithRand(quiet()))
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if s.Terminated() {
		t.Error("cancelled run should not be terminated")
	}
	if len(s.Results().ActionSequence) != 0 {
		t.Error("cancelled-before-start run performed actions")
	}
}

func TestRun_PublishesEvents(t *testing.T) {
	broker := messaging.NewBroker()
	t.Cleanup(broker.Reset)
	ch := make(chan messaging.Event, 32)
	if err := broker.Subscribe("test", ch); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	s := newSim(t, 3, 100, []int{1, 1, 1}, WithRand(quiet()), WithBroker(broker), WithRunID("run-test"))
	r := run(t, s)
	close(ch)

	var steps []core.Action
	var last messaging.Event
	for evt := range ch {
		if evt.RunID != "run-test" {
			t.Errorf("event RunID = %q, want run-test", evt.RunID)
		}
		if evt.Kind == messaging.EventStep {
			steps = append(steps, evt.Record.Action)
		}
		last = evt
	}

	if diff := cmp.Diff(r.ActionSequence, steps); diff != "" {
		t.Errorf("step events mismatch (-want +got):\n%s", diff)
	}
	if last.Kind != messaging.EventTerminated || last.Reason != r.TerminationReason {
		t.Errorf("last event = %+v, want terminated with %q", last, r.TerminationReason)
	}
}

func TestRun_PublishFailureDoesNotStopRun(t *testing.T) {
	var buf bytes.Buffer
	broker := messaging.NewBroker()
	t.Cleanup(broker.Reset)
	if err := broker.Subscribe("tiny", make(chan messaging.Event)); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	s := newSim(t, 3, 100, []int{1, 1, 1},
		WithRand(quiet()),
		WithBroker(broker),
		WithLogger(logging.NewLogger("info", &buf)),
	)
	r := run(t, s)

	if r.TerminationReason != core.ReasonAllClean {
		t.Errorf("reason = %q, want %q", r.TerminationReason, core.ReasonAllClean)
	}
	if !strings.Contains(buf.String(), "failed to publish event") {
		t.Errorf("expected publish warning in log, got %q", buf.String())
	}
}

func TestHistory(t *testing.T) {
	s := newSim(t, 3, 100, []int{1, 1, 1}, WithRand(quiet()))
	r := run(t, s)

	hist := s.History()
	if len(hist) != len(r.ActionSequence) {
		t.Fatalf("history has %d records, want %d", len(hist), len(r.ActionSequence))
	}
	for i, rec := range hist {
		if rec.Step != i || rec.Action != r.ActionSequence[i] {
			t.Errorf("record %d = %+v", i, rec)
		}
	}
	if last := hist[len(hist)-1]; last.Position != 2 || last.Energy != 0.5 {
		t.Errorf("last record = %+v, want position 2 energy 0.5", last)
	}

	bounded := newSim(t, 3, 100, []int{1, 1, 1}, WithRand(quiet()), WithHistoryCapacity(2))
	run(t, bounded)
	if got := len(bounded.History()); got != 2 {
		t.Errorf("bounded history has %d records, want 2", got)
	}
}

func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	s := newSim(t, 2, 10, []int{1, 0}, WithRand(quiet()), WithLogger(logging.NewLogger("trace", &buf)))
	run(t, s)

	out := buf.String()
	for _, want := range []string{"simulation started", "percept", "msg=step", "simulation finished", "run=" + s.ID()} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}
