package clustering

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/db"
)

func TestStoreGroups_AbortsWhenSnapshotLoadFails(t *testing.T) {
	t.Parallel()

	// An uninitialized pool makes every snapshot query fail; the batch must
	// abort instead of creating every group as a new cluster with
	// deduplication disabled.
	s := NewService(&db.Pool{}, nil, zerolog.Nop(), DefaultParams())

	articles := []Article{
		{ID: 1, Title: "Ransomware hits hospital"},
		{ID: 2, Title: "Hospital ransomware incident"},
	}
	vectors := [][]float64{{1, 0}, {1, 0}}
	groups := []group{{indices: []int{0, 1}, coherence: 0.9}}

	var result RunResult
	err := s.storeGroups(context.Background(), zerolog.Nop(), articles, vectors, groups, &result)
	if err == nil {
		t.Fatal("expected error when existing clusters cannot be loaded")
	}
	if result.ClustersCreated != 0 || result.ClustersMerged != 0 {
		t.Fatalf("no clusters should be stored, got %+v", result)
	}
}

func TestWeightedText(t *testing.T) {
	t.Parallel()

	a := Article{Title: "Breach", Content: "Details follow."}
	want := "Breach\nBreach\n\nDetails follow."
	if got := weightedText(a); got != want {
		t.Fatalf("weighted text: got %q want %q", got, want)
	}
}
