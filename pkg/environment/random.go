package environment

import (
	"github.com/boristopalov/cleaner/pkg/core"
)

// RandomDirtiness generates initial dirt for a fresh run. Each room, in order,
// is dirty with probability 0.5 at a uniform level in [1,5].
func RandomDirtiness(rng core.Rand, size int) []int {
	levels := make([]int, size)
	for i := range levels {
		if rng.Float64() < 0.5 {
			levels[i] = rng.IntN(MaxDirtiness) + 1
		}
	}
	return levels
}
