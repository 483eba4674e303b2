package clustering

// centroidCandidate pairs an existing cluster id with the embedding of its
// primary article.
type centroidCandidate struct {
	ClusterID int64
	Vector    []float64
}

// assignToExisting resolves obviously-continuing stories before the full
// clustering pass. Each article is compared against every candidate; the best
// match wins if it clears the similarity threshold, otherwise the article
// stays unassigned. This never creates or merges clusters, only appends.
func assignToExisting(vectors [][]float64, candidates []centroidCandidate, threshold float64) (map[int64][]int, []int) {
	unassigned := make([]int, 0, len(vectors))
	if len(candidates) == 0 {
		for i := range vectors {
			unassigned = append(unassigned, i)
		}
		return nil, unassigned
	}

	assignments := make(map[int64][]int)
	for i, vec := range vectors {
		bestID := int64(0)
		bestSim := -1.0
		for _, c := range candidates {
			if sim := cosineSimilarity(vec, c.Vector); sim > bestSim {
				bestSim = sim
				bestID = c.ClusterID
			}
		}
		if bestSim >= threshold {
			assignments[bestID] = append(assignments[bestID], i)
		} else {
			unassigned = append(unassigned, i)
		}
	}
	return assignments, unassigned
}
