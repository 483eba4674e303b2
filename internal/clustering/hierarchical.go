package clustering

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// hierarchicalClusterer is the fallback strategy: bottom-up agglomerative
// clustering with average linkage and a distance cutoff instead of a fixed
// cluster count. Every point ends up labeled; there is no noise notion here —
// unmergeable points become singleton clusters that the validity filters
// later reject on size.
type hierarchicalClusterer struct {
	distanceThreshold float64
}

func (c hierarchicalClusterer) Cluster(dist *mat.Dense) []int {
	n, _ := dist.Dims()
	members := make([][]int, n)
	for i := 0; i < n; i++ {
		members[i] = []int{i}
	}

	for len(members) > 1 {
		bestA, bestB := -1, -1
		bestDist := math.Inf(1)
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				if d := averageLinkage(dist, members[a], members[b]); d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		if bestDist >= c.distanceThreshold {
			break
		}
		members[bestA] = append(members[bestA], members[bestB]...)
		members = append(members[:bestB], members[bestB+1:]...)
	}

	// Label clusters in order of their smallest member so the assignment is
	// deterministic regardless of merge order.
	sort.Slice(members, func(a, b int) bool {
		return minMember(members[a]) < minMember(members[b])
	})

	labels := make([]int, n)
	for label, group := range members {
		for _, idx := range group {
			labels[idx] = label
		}
	}
	return labels
}

// averageLinkage is the mean pairwise distance between two clusters.
func averageLinkage(dist *mat.Dense, a, b []int) float64 {
	sum := 0.0
	for _, i := range a {
		for _, j := range b {
			sum += dist.At(i, j)
		}
	}
	return sum / float64(len(a)*len(b))
}

func minMember(group []int) int {
	m := group[0]
	for _, idx := range group[1:] {
		if idx < m {
			m = idx
		}
	}
	return m
}
