package environment

import (
	"fmt"

	"github.com/boristopalov/cleaner/pkg/core"
)

const (
	// MaxDirtiness is the dirtiest a room can be.
	MaxDirtiness = 5
)

// ErrInvalidConfig is wrapped by every construction error.
var ErrInvalidConfig = core.ErrInvalidConfig

// Environment is a fixed-length row of rooms. Rooms are only reachable
// through its methods.
type Environment struct {
	rooms []room
}

// New creates an environment of size rooms. A nil initial slice starts every
// room clean; otherwise it must hold exactly size levels, each in [0,5].
func New(size int, initial []int) (*Environment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}

	rooms := make([]room, size)
	if initial == nil {
		return &Environment{rooms: rooms}, nil
	}

	if len(initial) != size {
		return nil, fmt.Errorf("%w: initial dirtiness list must match environment size (%d != %d)",
			ErrInvalidConfig, len(initial), size)
	}
	for i, dirt := range initial {
		if dirt < 0 || dirt > MaxDirtiness {
			return nil, fmt.Errorf("%w: dirtiness must be between 0-%d, room %d has %d",
				ErrInvalidConfig, MaxDirtiness, i, dirt)
		}
		rooms[i] = room{dirtiness: dirt}
	}

	return &Environment{rooms: rooms}, nil
}

func (e *Environment) Size() int {
	return len(e.rooms)
}

// RoomState returns whether room i is clean and how dirty it is.
func (e *Environment) RoomState(i int) (bool, int) {
	r := e.rooms[i]
	return r.isClean(), r.dirtiness
}

// CleanRoom cleans room i and returns the energy cost, which is the
// dirtiness it had. Cleaning a clean room costs nothing.
func (e *Environment) CleanRoom(i int) int {
	return e.rooms[i].clean()
}

// MakeRoomDirty sets room i to level. The caller is responsible for passing
// a level between 1 and 5.
func (e *Environment) MakeRoomDirty(i int, level int) {
	e.rooms[i].makeDirty(level)
}

func (e *Environment) AllRoomsClean() bool {
	for _, r := range e.rooms {
		if !r.isClean() {
			return false
		}
	}
	return true
}

// DirtinessLevels returns a copy of every room's dirtiness, in order.
func (e *Environment) DirtinessLevels() []int {
	levels := make([]int, len(e.rooms))
	for i, r := range e.rooms {
		levels[i] = r.dirtiness
	}
	return levels
}
