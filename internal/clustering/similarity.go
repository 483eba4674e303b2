package clustering

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SimilarityMatrix returns the pairwise cosine similarity matrix for the given
// embedding vectors. The diagonal is forced to 1.0 and every entry is clipped
// to [0, 1]; negative cosine similarity is treated as zero similarity so the
// derived distances stay in [0, 1].
func SimilarityMatrix(vectors [][]float64) *mat.Dense {
	n := len(vectors)
	if n == 0 {
		return nil
	}

	sim := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		sim.Set(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			v := clip01(cosineSimilarity(vectors[i], vectors[j]))
			sim.Set(i, j, v)
			sim.Set(j, i, v)
		}
	}
	return sim
}

// distanceMatrix converts a similarity matrix to distances (1 - similarity),
// floored at zero.
func distanceMatrix(sim *mat.Dense) *mat.Dense {
	n, _ := sim.Dims()
	dist := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dist.Set(i, j, math.Max(0, 1-sim.At(i, j)))
		}
	}
	return dist
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	normA := math.Sqrt(floats.Dot(a, a))
	normB := math.Sqrt(floats.Dot(b, b))
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

// centroid returns the mean vector of the selected rows.
func centroid(vectors [][]float64, indices []int) []float64 {
	if len(indices) == 0 {
		return nil
	}
	c := make([]float64, len(vectors[indices[0]]))
	for _, idx := range indices {
		floats.Add(c, vectors[idx])
	}
	floats.Scale(1/float64(len(indices)), c)
	return c
}

func euclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// primaryIndex picks the representative member: the one whose embedding is
// nearest the group centroid. Ties keep the earlier member.
func primaryIndex(vectors [][]float64, indices []int) int {
	if len(indices) == 1 {
		return indices[0]
	}
	c := centroid(vectors, indices)
	best := indices[0]
	bestDist := math.Inf(1)
	for _, idx := range indices {
		if d := euclideanDistance(vectors[idx], c); d < bestDist {
			bestDist = d
			best = idx
		}
	}
	return best
}

// centroidSimilarities maps each selected row index to its cosine similarity
// with the group centroid. Single-member groups score 1.0.
func centroidSimilarities(vectors [][]float64, indices []int) map[int]float64 {
	sims := make(map[int]float64, len(indices))
	if len(indices) == 1 {
		sims[indices[0]] = 1.0
		return sims
	}
	c := centroid(vectors, indices)
	for _, idx := range indices {
		sims[idx] = cosineSimilarity(vectors[idx], c)
	}
	return sims
}

func clip01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
