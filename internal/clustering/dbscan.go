package clustering

import (
	"gonum.org/v1/gonum/mat"
)

// noiseLabel marks points no density-based cluster claimed. Noise points are
// discarded outright, never retried as singleton clusters in the same cycle.
const noiseLabel = -1

// clusterer groups points given a precomputed distance matrix and returns one
// label per point; noiseLabel means unclustered.
type clusterer interface {
	Cluster(dist *mat.Dense) []int
}

// dbscanClusterer is the primary strategy: density-based clustering over a
// precomputed distance matrix. minSamples counts the point itself, matching
// the usual DBSCAN formulation.
type dbscanClusterer struct {
	eps        float64
	minSamples int
}

func (c dbscanClusterer) Cluster(dist *mat.Dense) []int {
	n, _ := dist.Dims()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}
	visited := make([]bool, n)

	next := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := c.neighborsOf(dist, i)
		if len(neighbors) < c.minSamples {
			continue
		}

		labels[i] = next
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if !visited[j] {
				visited[j] = true
				if expanded := c.neighborsOf(dist, j); len(expanded) >= c.minSamples {
					queue = append(queue, expanded...)
				}
			}
			if labels[j] == noiseLabel {
				labels[j] = next
			}
		}
		next++
	}

	return labels
}

func (c dbscanClusterer) neighborsOf(dist *mat.Dense, i int) []int {
	n, _ := dist.Dims()
	neighbors := make([]int, 0, n)
	for j := 0; j < n; j++ {
		if dist.At(i, j) <= c.eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
