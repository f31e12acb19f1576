package dataset

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Split shuffles row indices with a PCG source seeded from seed and holds
// out ceil(testSize*n) of them. The same n, testSize and seed always give the
// same split. Both halves are returned in ascending order.
func Split(n int, testSize float64, seed uint64) (train, test []int) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nTest := int(math.Ceil(testSize * float64(n)))
	nTest = max(0, min(nTest, n))
	test = slices.Clone(idx[:nTest])
	train = slices.Clone(idx[nTest:])
	slices.Sort(test)
	slices.Sort(train)
	return train, test
}
