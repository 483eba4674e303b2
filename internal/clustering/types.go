package clustering

import (
	"time"
)

// EntityRef is a typed view of one tagged entity, populated at the store
// boundary from the validated jsonb payload plus the importance-weight table.
type EntityRef struct {
	Name     string
	Category string
	Weight   int
}

// Article is the engine's read-only view of an upstream article.
type Article struct {
	ID          int64
	Title       string
	Content     string
	PublishedAt time.Time
	FeedID      int64
	Entities    []EntityRef
}

// Params holds the clustering and deduplication tunables.
type Params struct {
	SimilarityThreshold float64
	MinClusterSize      int
	MaxClusterSize      int
	TimeWindow          time.Duration
	CoherenceThreshold  float64
	DuplicateThreshold  float64
	BatchSize           int
	ExistingWindow      time.Duration
	DedupLookback       time.Duration
	CacheTTL            time.Duration
}

func DefaultParams() Params {
	return Params{
		SimilarityThreshold: 0.75,
		MinClusterSize:      2,
		MaxClusterSize:      12,
		TimeWindow:          72 * time.Hour,
		CoherenceThreshold:  0.65,
		DuplicateThreshold:  0.75,
		BatchSize:           50,
		ExistingWindow:      3 * 24 * time.Hour,
		DedupLookback:       14 * 24 * time.Hour,
		CacheTTL:            time.Hour,
	}
}

// RunResult summarizes one clustering batch.
type RunResult struct {
	ArticlesProcessed   int
	ClustersCreated     int
	ClustersMerged      int
	DuplicatesPrevented int
	AddedToExisting     int
	ArticlesAssigned    int
}

// pendingCluster is a built group awaiting storage. existingClusterID is set
// for single-article assignments resolved by the existing-cluster matcher;
// those bypass the deduplication scorer entirely.
type pendingCluster struct {
	articles          []Article
	primaryArticleID  int64
	coherence         float64
	similarities      map[int64]float64
	existingClusterID int64
}

func (p pendingCluster) primaryArticle() Article {
	for _, a := range p.articles {
		if a.ID == p.primaryArticleID {
			return a
		}
	}
	if len(p.articles) > 0 {
		return p.articles[0]
	}
	return Article{}
}

func (p pendingCluster) articleIDs() []int64 {
	ids := make([]int64, 0, len(p.articles))
	for _, a := range p.articles {
		ids = append(ids, a.ID)
	}
	return ids
}

func (p pendingCluster) titles() []string {
	titles := make([]string, 0, len(p.articles))
	for _, a := range p.articles {
		titles = append(titles, a.Title)
	}
	return titles
}

func (p pendingCluster) entities() []EntityRef {
	var refs []EntityRef
	for _, a := range p.articles {
		refs = append(refs, a.Entities...)
	}
	return refs
}

func (p pendingCluster) feedIDs() []int64 {
	ids := make([]int64, 0, len(p.articles))
	for _, a := range p.articles {
		ids = append(ids, a.FeedID)
	}
	return ids
}

// clusterSnapshot is an existing active cluster with its member data, as the
// deduplication scorer needs it.
type clusterSnapshot struct {
	ID             int64
	Name           string
	CoherenceScore float64
	CreatedAt      time.Time
	ArticleIDs     []int64
	Titles         []string
	Entities       []EntityRef
	FeedIDs        []int64
}

// clusterPrimary is an existing cluster's designated primary article, used by
// the existing-cluster matcher to build centroid embeddings.
type clusterPrimary struct {
	ClusterID int64
	Title     string
	Content   string
}
