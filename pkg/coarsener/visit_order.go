package coarsener

import (
	"math"
	"sort"

	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"golang.org/x/exp/rand"
)

func visitOrder(order pkg.VisitOrder, weights []int, rng *rand.Rand) []int {
	n := len(weights)
	if order == pkg.RANDOM_ORDER {
		return rng.Perm(n)
	}

	vertices := make([]int, n)
	for i := range vertices {
		vertices[i] = i
	}
	switch order {
	case pkg.DECREASING_ORDER:
		vertices = util.ReverseG(vertices)
	case pkg.INCREASING_WEIGHT_ORDER:
		sort.SliceStable(vertices, func(i, j int) bool {
			return weights[vertices[i]] < weights[vertices[j]]
		})
	case pkg.DECREASING_WEIGHT_ORDER:
		sort.SliceStable(vertices, func(i, j int) bool {
			return weights[vertices[i]] > weights[vertices[j]]
		})
	}
	return vertices
}

// indexLimit is the visit position after which the scan stops; the rest of the
// vertices become singletons.
func indexLimit(numLocal int, reductionRatio float64) int {
	return numLocal - int(math.Floor(float64(numLocal)/reductionRatio-1.0))
}
