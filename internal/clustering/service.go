// Package clustering groups semantically related articles into clusters,
// merges near-duplicate clusters into already-running stories, and assigns
// each cluster a canonical name and primary article.
package clustering

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/db"
)

type Service struct {
	pool     *db.Pool
	embedder Embedder
	logger   zerolog.Logger
	params   Params

	clusters *ttlCache[[]clusterSnapshot]
	weights  *ttlCache[map[string]int]
}

func NewService(pool *db.Pool, embedder Embedder, logger zerolog.Logger, params Params) *Service {
	return &Service{
		pool:     pool,
		embedder: embedder,
		logger:   logger,
		params:   params,
		clusters: newTTLCache[[]clusterSnapshot](params.CacheTTL),
		weights:  newTTLCache[map[string]int](params.CacheTTL),
	}
}

// RunBatch executes one clustering pass over up to limit unclustered
// articles. A non-positive limit uses the configured batch size. Embedding
// and dedup snapshot failures abort the batch; per-cluster storage failures
// are logged and the batch continues.
func (s *Service) RunBatch(ctx context.Context, limit int) (RunResult, error) {
	if s == nil || s.pool == nil {
		return RunResult{}, fmt.Errorf("clustering service is not initialized")
	}
	if s.embedder == nil {
		return RunResult{}, fmt.Errorf("embedder is not configured")
	}
	if limit <= 0 {
		limit = s.params.BatchSize
	}

	logger := s.logger.With().Str("run_id", uuid.NewString()).Logger()

	articles, err := s.fetchUnclusteredArticles(ctx, limit)
	if err != nil {
		return RunResult{}, err
	}
	result := RunResult{ArticlesProcessed: len(articles)}
	if len(articles) == 0 {
		logger.Info().Msg("no unclustered articles")
		return result, nil
	}

	texts := make([]string, 0, len(articles))
	for _, a := range articles {
		texts = append(texts, weightedText(a))
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("embed articles: %w", err)
	}
	if len(vectors) != len(articles) {
		return result, fmt.Errorf("embedding count mismatch: articles=%d vectors=%d", len(articles), len(vectors))
	}

	candidates, err := s.existingCandidates(ctx)
	if err != nil {
		return result, err
	}

	assigned, unassigned := assignToExisting(vectors, candidates, s.params.SimilarityThreshold)
	s.storeAssignments(ctx, logger, articles, assigned, &result)

	if len(unassigned) >= s.params.MinClusterSize {
		subArticles := make([]Article, 0, len(unassigned))
		subVectors := make([][]float64, 0, len(unassigned))
		for _, idx := range unassigned {
			subArticles = append(subArticles, articles[idx])
			subVectors = append(subVectors, vectors[idx])
		}

		sim := SimilarityMatrix(subVectors)
		groups := buildGroups(subArticles, sim, s.params, logger)
		if err := s.storeGroups(ctx, logger, subArticles, subVectors, groups, &result); err != nil {
			return result, err
		}
	}

	s.clusters.Invalidate()
	s.weights.Invalidate()

	logger.Info().
		Int("articles_processed", result.ArticlesProcessed).
		Int("clusters_created", result.ClustersCreated).
		Int("clusters_merged", result.ClustersMerged).
		Int("duplicates_prevented", result.DuplicatesPrevented).
		Int("added_to_existing", result.AddedToExisting).
		Int("articles_assigned", result.ArticlesAssigned).
		Msg("clustering batch finished")
	return result, nil
}

// existingCandidates embeds the primary article of each recent active cluster
// so new articles can be matched against already-running stories.
func (s *Service) existingCandidates(ctx context.Context) ([]centroidCandidate, error) {
	primaries, err := s.loadClusterPrimaries(ctx)
	if err != nil {
		return nil, err
	}
	if len(primaries) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(primaries))
	for _, p := range primaries {
		texts = append(texts, weightedText(Article{Title: p.Title, Content: p.Content}))
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed cluster primaries: %w", err)
	}
	if len(vectors) != len(primaries) {
		return nil, fmt.Errorf("primary embedding count mismatch: primaries=%d vectors=%d", len(primaries), len(vectors))
	}

	candidates := make([]centroidCandidate, 0, len(primaries))
	for i, p := range primaries {
		candidates = append(candidates, centroidCandidate{ClusterID: p.ClusterID, Vector: vectors[i]})
	}
	return candidates, nil
}

// storeAssignments writes existing-cluster matches. Each matched article
// joins its cluster with full similarity and the cluster keeps at least its
// current coherence; the deduplication scorer is not consulted for these.
func (s *Service) storeAssignments(
	ctx context.Context,
	logger zerolog.Logger,
	articles []Article,
	assigned map[int64][]int,
	result *RunResult,
) {
	clusterIDs := make([]int64, 0, len(assigned))
	for clusterID := range assigned {
		clusterIDs = append(clusterIDs, clusterID)
	}
	sort.Slice(clusterIDs, func(i, j int) bool { return clusterIDs[i] < clusterIDs[j] })

	for _, clusterID := range clusterIDs {
		indices := assigned[clusterID]
		members := make([]Article, 0, len(indices))
		similarities := make(map[int64]float64, len(indices))
		for _, idx := range indices {
			members = append(members, articles[idx])
			similarities[articles[idx].ID] = 1.0
		}

		pending := pendingCluster{
			articles:          members,
			coherence:         1.0,
			similarities:      similarities,
			existingClusterID: clusterID,
		}
		if _, _, err := s.storePendingCluster(ctx, pending); err != nil {
			logger.Error().
				Int64("cluster_id", clusterID).
				Err(err).
				Msg("failed to store existing-cluster assignment")
			continue
		}
		result.AddedToExisting++
		result.ArticlesAssigned += len(members)
		logger.Info().
			Int64("cluster_id", clusterID).
			Int("articles", len(members)).
			Msg("assigned articles to existing cluster")
	}
}

// storeGroups runs the deduplication scorer over each newly built group and
// persists it, either as a merge into the first matching existing cluster or
// as a new cluster row. A failed snapshot load aborts the whole batch rather
// than creating every group as a new cluster with deduplication disabled.
func (s *Service) storeGroups(
	ctx context.Context,
	logger zerolog.Logger,
	articles []Article,
	vectors [][]float64,
	groups []group,
	result *RunResult,
) error {
	if len(groups) == 0 {
		return nil
	}

	snapshots, err := s.existingClusters(ctx)
	if err != nil {
		return fmt.Errorf("load existing clusters for deduplication: %w", err)
	}

	for _, g := range groups {
		primaryIdx := primaryIndex(vectors, g.indices)
		similarities := centroidSimilarities(vectors, g.indices)

		members := make([]Article, 0, len(g.indices))
		simByID := make(map[int64]float64, len(g.indices))
		for _, idx := range g.indices {
			members = append(members, articles[idx])
			simByID[articles[idx].ID] = similarities[idx]
		}

		pending := pendingCluster{
			articles:         members,
			primaryArticleID: articles[primaryIdx].ID,
			coherence:        g.coherence,
			similarities:     simByID,
		}

		for _, snapshot := range snapshots {
			breakdown := scoreClusterPair(pending, snapshot, s.params.DuplicateThreshold)
			if breakdown.Overall >= dedupAuditFloor {
				logger.Info().
					Int64("existing_cluster_id", snapshot.ID).
					Float64("article_overlap", breakdown.ArticleOverlap).
					Float64("entity_similarity", breakdown.EntitySimilarity).
					Float64("title_similarity", breakdown.TitleSimilarity).
					Float64("source_overlap", breakdown.SourceOverlap).
					Float64("key_entity_match", breakdown.KeyEntityMatch).
					Float64("overall", breakdown.Overall).
					Float64("threshold", breakdown.Threshold).
					Bool("is_duplicate", breakdown.IsDuplicate).
					Msg("dedup comparison")
			}
			if breakdown.IsDuplicate {
				pending.existingClusterID = snapshot.ID
				break
			}
		}

		clusterID, created, err := s.storePendingCluster(ctx, pending)
		if err != nil {
			logger.Error().
				Int("articles", len(members)).
				Err(err).
				Msg("failed to store cluster")
			continue
		}
		if created {
			result.ClustersCreated++
			logger.Info().
				Int64("cluster_id", clusterID).
				Int("articles", len(members)).
				Float64("coherence", pending.coherence).
				Msg("created cluster")
		} else {
			result.ClustersMerged++
			result.DuplicatesPrevented++
			logger.Info().
				Int64("cluster_id", clusterID).
				Int("articles", len(members)).
				Msg("merged group into existing cluster")
		}
	}
	return nil
}

// weightedText doubles the title ahead of the body so title terms dominate
// the embedding.
func weightedText(a Article) string {
	return a.Title + "\n" + a.Title + "\n\n" + a.Content
}
