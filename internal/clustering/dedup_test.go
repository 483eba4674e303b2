package clustering

import (
	"testing"
	"time"
)

func refs(pairs ...[2]string) []EntityRef {
	out := make([]EntityRef, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, EntityRef{Category: p[0], Name: p[1], Weight: 80})
	}
	return out
}

func TestSelectWeights_StandardRegime(t *testing.T) {
	t.Parallel()

	weights, threshold := selectWeights(0.5, 0.75)
	if !almostEqual(weights.Article, 0.2) || !almostEqual(weights.Entity, 0.4) ||
		!almostEqual(weights.Title, 0.3) || !almostEqual(weights.Source, 0.1) ||
		!almostEqual(weights.KeyEntity, 0) {
		t.Fatalf("unexpected standard weights: %+v", weights)
	}
	if !almostEqual(threshold, 0.75) {
		t.Fatalf("standard threshold: got %f want 0.75", threshold)
	}
}

func TestSelectWeights_EvolvingStoryRegime(t *testing.T) {
	t.Parallel()

	weights, threshold := selectWeights(0.9, 0.75)
	if !almostEqual(weights.Article, 0.05) || !almostEqual(weights.Entity, 0.50) ||
		!almostEqual(weights.Title, 0.30) || !almostEqual(weights.Source, 0.05) ||
		!almostEqual(weights.KeyEntity, 0.10) {
		t.Fatalf("unexpected evolving-story weights: %+v", weights)
	}
	if !almostEqual(threshold, 0.65) {
		t.Fatalf("evolving-story threshold: got %f want 0.65", threshold)
	}
}

func TestSelectWeights_TriggerIsStrict(t *testing.T) {
	t.Parallel()

	// Exactly 0.8 stays in the standard regime.
	_, threshold := selectWeights(0.8, 0.75)
	if !almostEqual(threshold, 0.75) {
		t.Fatalf("boundary key-entity match should keep standard threshold, got %f", threshold)
	}
}

func TestScoreClusterPair_EvolvingStoryIsDuplicate(t *testing.T) {
	t.Parallel()

	entities := refs(
		[2]string{"apt_group", "Lazarus Group"},
		[2]string{"malware_family", "AppleJeus"},
	)
	pending := pendingCluster{
		articles: []Article{
			{ID: 101, FeedID: 1, Title: "Lazarus Group targets crypto exchanges with AppleJeus", Entities: entities},
			{ID: 102, FeedID: 2, Title: "Lazarus Group AppleJeus campaign expands", Entities: entities},
		},
	}
	existing := clusterSnapshot{
		ID:         7,
		CreatedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ArticleIDs: []int64{55, 56},
		FeedIDs:    []int64{3, 4},
		Titles: []string{
			"Lazarus Group targets crypto exchanges with AppleJeus",
			"AppleJeus malware linked to Lazarus Group",
		},
		Entities: entities,
	}

	b := scoreClusterPair(pending, existing, 0.75)
	if !almostEqual(b.KeyEntityMatch, 1.0) {
		t.Fatalf("key entity match: got %f want 1.0", b.KeyEntityMatch)
	}
	if !almostEqual(b.Threshold, 0.65) {
		t.Fatalf("expected evolving-story threshold, got %f", b.Threshold)
	}
	if !almostEqual(b.EntitySimilarity, 1.0) {
		t.Fatalf("entity similarity: got %f want 1.0", b.EntitySimilarity)
	}
	if b.ArticleOverlap != 0 || b.SourceOverlap != 0 {
		t.Fatalf("expected disjoint article and source overlap, got %+v", b)
	}
	if !b.IsDuplicate {
		t.Fatalf("expected evolving story to be flagged duplicate: %+v", b)
	}
}

func TestScoreClusterPair_DissimilarIsNotDuplicate(t *testing.T) {
	t.Parallel()

	pending := pendingCluster{
		articles: []Article{
			{ID: 1, FeedID: 1, Title: "New phishing kit spotted in the wild", Entities: refs([2]string{"attack_type", "phishing"})},
			{ID: 2, FeedID: 2, Title: "Phishing kit analysis", Entities: refs([2]string{"attack_type", "phishing"})},
		},
	}
	existing := clusterSnapshot{
		ID:         9,
		ArticleIDs: []int64{10, 11},
		FeedIDs:    []int64{5, 6},
		Titles:     []string{"Kernel vulnerability patched", "Patch released for kernel flaw"},
		Entities:   refs([2]string{"vulnerability_type", "privilege escalation"}),
	}

	b := scoreClusterPair(pending, existing, 0.75)
	if b.IsDuplicate {
		t.Fatalf("expected distinct stories to stay separate: %+v", b)
	}
	if !almostEqual(b.Threshold, 0.75) {
		t.Fatalf("expected standard threshold, got %f", b.Threshold)
	}
}

func TestScoreClusterPair_DegenerateScoresZero(t *testing.T) {
	t.Parallel()

	b := scoreClusterPair(pendingCluster{}, clusterSnapshot{}, 0.75)
	if b.Overall != 0 || b.IsDuplicate {
		t.Fatalf("expected zero score for empty inputs: %+v", b)
	}
}

func TestJaccardIDs(t *testing.T) {
	t.Parallel()

	if got := jaccardIDs(nil, []int64{1}); got != 0 {
		t.Fatalf("empty side: got %f want 0", got)
	}
	if got := jaccardIDs([]int64{1, 2}, []int64{2, 3}); !almostEqual(got, 1.0/3.0) {
		t.Fatalf("partial overlap: got %f want 1/3", got)
	}
	if got := jaccardIDs([]int64{1, 1, 2}, []int64{1, 2}); !almostEqual(got, 1.0) {
		t.Fatalf("duplicate ids should not inflate the union: got %f", got)
	}
}

func TestEntitySimilarity_CategoryQualifiesName(t *testing.T) {
	t.Parallel()

	a := refs([2]string{"company", "Apple"}, [2]string{"platform", "iOS"})
	b := refs([2]string{"malware_family", "Apple"}, [2]string{"platform", "iOS"})
	// "Apple" under different categories is a different entity; only iOS
	// intersects.
	if got := entitySimilarity(a, b); !almostEqual(got, 1.0/3.0) {
		t.Fatalf("entity similarity: got %f want 1/3", got)
	}
}

func TestKeyEntityMatch_CaseInsensitiveNames(t *testing.T) {
	t.Parallel()

	a := []EntityRef{{Category: "apt_group", Name: "LAZARUS GROUP"}}
	b := []EntityRef{{Category: "apt_group", Name: "lazarus group"}}
	if got := keyEntityMatch(a, b); !almostEqual(got, 1.0) {
		t.Fatalf("case-insensitive key match: got %f want 1.0", got)
	}
}

func TestKeyEntityMatch_IgnoresNonIdentityCategories(t *testing.T) {
	t.Parallel()

	a := []EntityRef{{Category: "platform", Name: "Windows"}}
	b := []EntityRef{{Category: "platform", Name: "Windows"}}
	if got := keyEntityMatch(a, b); got != 0 {
		t.Fatalf("non-identity categories should not contribute: got %f", got)
	}
}

func TestKeyEntityMatch_WeightedPartialOverlap(t *testing.T) {
	t.Parallel()

	a := []EntityRef{
		{Category: "company", Name: "Acme Corp"},
		{Category: "attack_type", Name: "ransomware attack"},
	}
	b := []EntityRef{
		{Category: "company", Name: "Acme Corp"},
	}
	// Shared company (1.0) over company + attack_type (1.0 + 0.7).
	if got := keyEntityMatch(a, b); !almostEqual(got, 1.0/1.7) {
		t.Fatalf("weighted partial overlap: got %f want %f", got, 1.0/1.7)
	}
}
