package core

// Environment is the query/mutate contract the agent and simulation use to
// reach room state. Implementations own the rooms exclusively.
type Environment interface {
	// Size returns the number of rooms, fixed at construction
	Size() int
	// RoomState reports whether room i is clean and its dirtiness level
	RoomState(i int) (clean bool, dirtiness int)
	// CleanRoom zeroes room i and returns its prior dirtiness as the cost
	CleanRoom(i int) int
	// MakeRoomDirty sets room i to level; callers supply 1-5
	MakeRoomDirty(i int, level int)
	// AllRoomsClean reports whether every room has dirtiness 0
	AllRoomsClean() bool
	// DirtinessLevels returns a snapshot of every room's dirtiness
	DirtinessLevels() []int
}

// Rand is the single ordered pseudo-random stream a run draws from.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0)
	Float64() float64
	// IntN returns a value in [0, n)
	IntN(n int) int
}
