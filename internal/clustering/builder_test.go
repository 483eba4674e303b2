package clustering

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

func testParams() Params {
	p := DefaultParams()
	return p
}

func articlesAt(base time.Time, offsets ...time.Duration) []Article {
	articles := make([]Article, 0, len(offsets))
	for i, off := range offsets {
		articles = append(articles, Article{
			ID:          int64(i + 1),
			Title:       "article",
			PublishedAt: base.Add(off),
		})
	}
	return articles
}

// symmetricSim builds a similarity matrix with unit diagonal from the
// upper-triangular entries.
func symmetricSim(n int, entries map[[2]int]float64) *mat.Dense {
	sim := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		sim.Set(i, i, 1.0)
	}
	for pair, s := range entries {
		sim.Set(pair[0], pair[1], s)
		sim.Set(pair[1], pair[0], s)
	}
	return sim
}

func TestBuildGroups_TwoValidClusters(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	articles := articlesAt(base, 0, time.Hour, 2*time.Hour, 3*time.Hour)
	sim := symmetricSim(4, map[[2]int]float64{
		{0, 1}: 0.9,
		{2, 3}: 0.9,
		{0, 2}: 0.1, {0, 3}: 0.1, {1, 2}: 0.1, {1, 3}: 0.1,
	})

	groups := buildGroups(articles, sim, testParams(), zerolog.Nop())
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].indices) != 2 || len(groups[1].indices) != 2 {
		t.Fatalf("unexpected group sizes: %v", groups)
	}
	for _, g := range groups {
		if !almostEqual(g.coherence, 0.9) {
			t.Fatalf("unexpected coherence: %f", g.coherence)
		}
	}
}

func TestBuildGroups_TimeWindowFilter(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Similar pair published 100 hours apart exceeds the 72h window.
	articles := articlesAt(base, 0, 100*time.Hour)
	sim := symmetricSim(2, map[[2]int]float64{
		{0, 1}: 0.95,
	})

	groups := buildGroups(articles, sim, testParams(), zerolog.Nop())
	if len(groups) != 0 {
		t.Fatalf("expected no groups past time window, got %d", len(groups))
	}
}

func TestBuildGroups_CoherenceFilter(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	articles := articlesAt(base, 0, time.Hour, 2*time.Hour)
	// Chain: 0-1 and 1-2 are within eps but mean pairwise similarity is
	// dragged below the coherence threshold by the weak 0-2 edge. The
	// density cluster is dropped and the fallback recovers just the tight
	// pair.
	sim := symmetricSim(3, map[[2]int]float64{
		{0, 1}: 0.8,
		{1, 2}: 0.8,
		{0, 2}: 0.1,
	})

	groups := buildGroups(articles, sim, testParams(), zerolog.Nop())
	if len(groups) != 1 {
		t.Fatalf("expected fallback to keep one coherent pair, got %d groups", len(groups))
	}
	if len(groups[0].indices) != 2 || groups[0].indices[0] != 0 || groups[0].indices[1] != 1 {
		t.Fatalf("unexpected group members: %v", groups[0].indices)
	}
	if !almostEqual(groups[0].coherence, 0.8) {
		t.Fatalf("unexpected coherence: %f", groups[0].coherence)
	}
}

func TestBuildGroups_MaxSizeFilter(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.MaxClusterSize = 3

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	articles := articlesAt(base, 0, time.Hour, 2*time.Hour, 3*time.Hour)
	entries := make(map[[2]int]float64)
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			entries[[2]int{i, j}] = 0.95
		}
	}
	sim := symmetricSim(4, entries)

	groups := buildGroups(articles, sim, p, zerolog.Nop())
	if len(groups) != 0 {
		t.Fatalf("expected oversized group to be dropped, got %d groups", len(groups))
	}
}

func TestBuildGroups_HierarchicalFallbackWins(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	articles := articlesAt(base, 0, time.Hour, 2*time.Hour, 3*time.Hour)
	// A borderline bridge chains both pairs into one incoherent density
	// cluster, so the density pass yields zero valid groups. Average-linkage
	// clustering keeps the pairs apart and recovers both.
	sim := symmetricSim(4, map[[2]int]float64{
		{0, 1}: 0.9,
		{2, 3}: 0.9,
		{1, 2}: 0.8,
		{0, 2}: 0.1, {0, 3}: 0.1, {1, 3}: 0.1,
	})

	groups := buildGroups(articles, sim, testParams(), zerolog.Nop())
	if len(groups) != 2 {
		t.Fatalf("expected hierarchical fallback to find 2 groups, got %d", len(groups))
	}
}

func TestBuildGroups_Empty(t *testing.T) {
	t.Parallel()

	if groups := buildGroups(nil, nil, testParams(), zerolog.Nop()); groups != nil {
		t.Fatalf("expected nil groups for empty input")
	}
}

func TestGroupCoherence(t *testing.T) {
	t.Parallel()

	sim := symmetricSim(3, map[[2]int]float64{
		{0, 1}: 0.9,
		{1, 2}: 0.7,
		{0, 2}: 0.8,
	})
	if got := groupCoherence(sim, []int{0, 1, 2}); !almostEqual(got, 0.8) {
		t.Fatalf("coherence: got %f want 0.8", got)
	}
	if got := groupCoherence(sim, []int{0}); !almostEqual(got, 1.0) {
		t.Fatalf("single member coherence: got %f want 1.0", got)
	}
}
