package clustering

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// fallbackClusterRatio: when density-based clustering yields fewer valid
// clusters than this fraction of the article count, the hierarchical strategy
// gets a chance and wins if it finds strictly more.
const fallbackClusterRatio = 0.1

// group is one raw clustering result that survived the validity filters.
type group struct {
	indices   []int
	coherence float64
}

// buildGroups clusters the given articles using their similarity matrix. It
// runs the density-based strategy first and falls back to hierarchical
// clustering when too few valid clusters come out, keeping whichever strategy
// produced more.
func buildGroups(articles []Article, sim *mat.Dense, p Params, logger zerolog.Logger) []group {
	if len(articles) == 0 || sim == nil {
		return nil
	}

	dist := distanceMatrix(sim)
	eps := 1 - p.SimilarityThreshold

	primary := dbscanClusterer{eps: eps, minSamples: p.MinClusterSize}
	groups := validGroups(primary.Cluster(dist), articles, sim, p)
	logger.Debug().
		Int("article_count", len(articles)).
		Int("valid_clusters", len(groups)).
		Msg("density clustering complete")

	if float64(len(groups)) < float64(len(articles))*fallbackClusterRatio {
		fallback := hierarchicalClusterer{distanceThreshold: eps}
		alternative := validGroups(fallback.Cluster(dist), articles, sim, p)
		logger.Debug().
			Int("valid_clusters", len(alternative)).
			Msg("hierarchical fallback complete")
		if len(alternative) > len(groups) {
			groups = alternative
		}
	}

	return groups
}

// validGroups collects labeled points into groups and applies the validity
// filters in order: size bounds, publish-time span, mean intra-group
// similarity. Groups failing any filter are dropped entirely; their articles
// are not retried.
func validGroups(labels []int, articles []Article, sim *mat.Dense, p Params) []group {
	byLabel := make(map[int][]int)
	for idx, label := range labels {
		if label == noiseLabel {
			continue
		}
		byLabel[label] = append(byLabel[label], idx)
	}

	orderedLabels := make([]int, 0, len(byLabel))
	for label := range byLabel {
		orderedLabels = append(orderedLabels, label)
	}
	sort.Ints(orderedLabels)

	valid := make([]group, 0, len(byLabel))
	for _, label := range orderedLabels {
		indices := byLabel[label]
		if len(indices) < p.MinClusterSize || len(indices) > p.MaxClusterSize {
			continue
		}
		if !withinTimeWindow(articles, indices, p.TimeWindow) {
			continue
		}
		coherence := groupCoherence(sim, indices)
		if coherence < p.CoherenceThreshold {
			continue
		}
		valid = append(valid, group{indices: indices, coherence: coherence})
	}
	return valid
}

// withinTimeWindow checks that the span between the earliest and latest
// publication timestamps does not exceed the window.
func withinTimeWindow(articles []Article, indices []int, window time.Duration) bool {
	if len(indices) < 2 {
		return true
	}
	earliest := articles[indices[0]].PublishedAt
	latest := earliest
	for _, idx := range indices[1:] {
		t := articles[idx].PublishedAt
		if t.Before(earliest) {
			earliest = t
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest.Sub(earliest) <= window
}

// groupCoherence is the mean pairwise similarity among the group's members.
func groupCoherence(sim *mat.Dense, indices []int) float64 {
	if len(indices) < 2 {
		return 1.0
	}
	sum := 0.0
	pairs := 0
	for i := 0; i < len(indices); i++ {
		for j := i + 1; j < len(indices); j++ {
			sum += sim.At(indices[i], indices[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
