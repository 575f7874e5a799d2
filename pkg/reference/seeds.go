package reference

import (
	"math/rand"

	"github.com/pkg/errors"
)

// PickSeeds draws n image IDs in [minID, maxID], with repetition, from a
// generator seeded with seed, so that convergence experiments can be
// repeated with the same starting references.
func PickSeeds(seed int64, minID, maxID, n int) ([]int, error) {
	if minID > maxID {
		return nil, errors.Errorf("minimum ID %d is above maximum ID %d", minID, maxID)
	}
	if n < 0 {
		return nil, errors.Errorf("cannot pick %d seeds", n)
	}
	rng := rand.New(rand.NewSource(seed))
	ids := make([]int, n)
	for i := range ids {
		ids[i] = minID + rng.Intn(maxID-minID+1)
	}
	return ids, nil
}
