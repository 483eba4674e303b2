package clustering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/db"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/globaltime"
	entityschema "github.com/Jam0k/threatcluster-cluster-service-sub000/schema"
)

const defaultEntityWeight = 50

// fetchUnclusteredArticles returns recent tagged articles that are not yet a
// member of any active cluster. Articles whose entity payload fails
// validation, or that opted out of clustering, are skipped with a log line
// rather than failing the batch.
func (s *Service) fetchUnclusteredArticles(ctx context.Context, limit int) ([]Article, error) {
	const q = `
SELECT
	a.article_id,
	a.feed_id,
	a.title,
	COALESCE(a.content, ''),
	a.published_at,
	a.extracted_entities
FROM cluster_data.articles a
WHERE a.published_at >= $1
  AND a.extracted_entities IS NOT NULL
  AND NOT EXISTS (
	SELECT 1
	FROM cluster_data.cluster_articles ca
	JOIN cluster_data.clusters c ON c.cluster_id = ca.cluster_id
	WHERE ca.article_id = a.article_id
	  AND c.is_active
)
ORDER BY a.published_at DESC
LIMIT $2
`

	cutoff := globaltime.UTC().Add(-2 * s.params.TimeWindow)
	rows, err := s.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("select unclustered articles: %w", err)
	}
	defer rows.Close()

	weights, err := s.entityWeights(ctx)
	if err != nil {
		return nil, err
	}

	articles := make([]Article, 0, limit)
	for rows.Next() {
		var (
			article Article
			raw     []byte
		)
		if err := rows.Scan(&article.ID, &article.FeedID, &article.Title, &article.Content, &article.PublishedAt, &raw); err != nil {
			return nil, fmt.Errorf("scan unclustered article: %w", err)
		}

		payload, err := entityschema.ValidateEntityPayload(raw)
		if err != nil {
			s.logger.Warn().
				Int64("article_id", article.ID).
				Err(err).
				Msg("skipping article with invalid entity payload")
			continue
		}
		if payload.SkipClustering() {
			continue
		}

		article.Entities = resolveEntityRefs(payload.Entities, weights)
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unclustered articles: %w", err)
	}
	return articles, nil
}

// resolveEntityRefs converts validated tags into typed refs, attaching the
// importance weight from the entities table. Unknown entities get the default
// weight.
func resolveEntityRefs(tags []entityschema.EntityTag, weights map[string]int) []EntityRef {
	refs := make([]EntityRef, 0, len(tags))
	for _, tag := range tags {
		ref := EntityRef{
			Name:     strings.TrimSpace(tag.EntityName),
			Category: strings.ToLower(strings.TrimSpace(tag.EntityCategory)),
			Weight:   defaultEntityWeight,
		}
		if w, ok := weights[entityWeightKey(ref.Category, ref.Name)]; ok {
			ref.Weight = w
		}
		refs = append(refs, ref)
	}
	return refs
}

func entityWeightKey(category, name string) string {
	return strings.ToLower(category) + ":" + strings.ToLower(name)
}

// entityWeights returns the importance-weight table keyed by
// "category:name" (lowercased), loaded through the TTL cache.
func (s *Service) entityWeights(ctx context.Context) (map[string]int, error) {
	return s.weights.Get(func() (map[string]int, error) {
		const q = `
SELECT e.category, e.name, e.importance_weight
FROM cluster_data.entities e
`
		rows, err := s.pool.Query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("select entity weights: %w", err)
		}
		defer rows.Close()

		weights := make(map[string]int)
		for rows.Next() {
			var (
				category string
				name     string
				weight   int
			)
			if err := rows.Scan(&category, &name, &weight); err != nil {
				return nil, fmt.Errorf("scan entity weight: %w", err)
			}
			weights[entityWeightKey(category, name)] = weight
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate entity weights: %w", err)
		}
		return weights, nil
	})
}

// loadClusterPrimaries returns the primary article of every active cluster
// created inside the existing-cluster window. Their embeddings anchor the
// match against already-running stories.
func (s *Service) loadClusterPrimaries(ctx context.Context) ([]clusterPrimary, error) {
	const q = `
SELECT c.cluster_id, a.title, COALESCE(a.content, '')
FROM cluster_data.clusters c
JOIN cluster_data.cluster_articles ca ON ca.cluster_id = c.cluster_id AND ca.is_primary
JOIN cluster_data.articles a ON a.article_id = ca.article_id
WHERE c.is_active
  AND c.created_at >= $1
ORDER BY c.cluster_id
`

	cutoff := globaltime.UTC().Add(-s.params.ExistingWindow)
	rows, err := s.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select cluster primaries: %w", err)
	}
	defer rows.Close()

	var primaries []clusterPrimary
	for rows.Next() {
		var p clusterPrimary
		if err := rows.Scan(&p.ClusterID, &p.Title, &p.Content); err != nil {
			return nil, fmt.Errorf("scan cluster primary: %w", err)
		}
		primaries = append(primaries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster primaries: %w", err)
	}
	return primaries, nil
}

// existingClusters returns snapshots of active clusters created inside the
// dedup lookback window, with member ids, titles, entities and feeds
// aggregated per cluster. Loaded through the TTL cache.
func (s *Service) existingClusters(ctx context.Context) ([]clusterSnapshot, error) {
	return s.clusters.Get(func() ([]clusterSnapshot, error) {
		return s.loadExistingClusters(ctx)
	})
}

func (s *Service) loadExistingClusters(ctx context.Context) ([]clusterSnapshot, error) {
	const q = `
SELECT
	c.cluster_id,
	c.name,
	c.coherence_score,
	c.created_at,
	a.article_id,
	a.feed_id,
	a.title,
	a.extracted_entities
FROM cluster_data.clusters c
JOIN cluster_data.cluster_articles ca ON ca.cluster_id = c.cluster_id
JOIN cluster_data.articles a ON a.article_id = ca.article_id
WHERE c.is_active
  AND c.created_at >= $1
ORDER BY c.cluster_id, a.article_id
`

	cutoff := globaltime.UTC().Add(-s.params.DedupLookback)
	rows, err := s.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select existing clusters: %w", err)
	}
	defer rows.Close()

	weights, err := s.entityWeights(ctx)
	if err != nil {
		return nil, err
	}

	var (
		snapshots []clusterSnapshot
		current   *clusterSnapshot
	)
	for rows.Next() {
		var (
			clusterID int64
			name      string
			coherence float64
			createdAt time.Time
			articleID int64
			feedID    int64
			title     string
			raw       []byte
		)
		if err := rows.Scan(&clusterID, &name, &coherence, &createdAt, &articleID, &feedID, &title, &raw); err != nil {
			return nil, fmt.Errorf("scan existing cluster row: %w", err)
		}

		if current == nil || current.ID != clusterID {
			snapshots = append(snapshots, clusterSnapshot{
				ID:             clusterID,
				Name:           name,
				CoherenceScore: coherence,
				CreatedAt:      createdAt,
			})
			current = &snapshots[len(snapshots)-1]
		}

		current.ArticleIDs = append(current.ArticleIDs, articleID)
		current.FeedIDs = append(current.FeedIDs, feedID)
		current.Titles = append(current.Titles, title)
		if len(raw) > 0 {
			payload, err := entityschema.ValidateEntityPayload(raw)
			if err != nil {
				s.logger.Warn().
					Int64("cluster_id", clusterID).
					Int64("article_id", articleID).
					Err(err).
					Msg("skipping invalid entity payload on existing cluster member")
			} else {
				current.Entities = append(current.Entities, resolveEntityRefs(payload.Entities, weights)...)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing clusters: %w", err)
	}
	return snapshots, nil
}

// storePendingCluster persists one built group in its own transaction. When
// the group merges into an existing cluster only memberships and a
// monotonically raised coherence are written; otherwise a new cluster row is
// created with a generated name and summary. Returns the cluster id and
// whether a new cluster row was created.
func (s *Service) storePendingCluster(ctx context.Context, pending pendingCluster) (int64, bool, error) {
	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, false, fmt.Errorf("begin cluster transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	clusterID, created, err := s.writeCluster(ctx, tx, pending)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit cluster transaction: %w", err)
	}
	return clusterID, created, nil
}

func (s *Service) writeCluster(ctx context.Context, tx db.Tx, pending pendingCluster) (int64, bool, error) {
	now := globaltime.UTC()
	clusterID := pending.existingClusterID
	created := false

	if clusterID > 0 {
		const updateQ = `
UPDATE cluster_data.clusters
SET coherence_score = GREATEST(coherence_score, $1),
    updated_at = $2
WHERE cluster_id = $3
`
		if _, err := tx.Exec(ctx, updateQ, pending.coherence, now, clusterID); err != nil {
			return 0, false, fmt.Errorf("update cluster %d coherence: %w", clusterID, err)
		}
	} else {
		primary := pending.primaryArticle()
		name := generateClusterName(pending.articles)
		summary := generateClusterSummary(primary)

		const insertQ = `
INSERT INTO cluster_data.clusters (cluster_uuid, name, summary, coherence_score, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, $5, $5)
RETURNING cluster_id
`
		if err := tx.QueryRow(ctx, insertQ, uuid.NewString(), name, summary, pending.coherence, now).Scan(&clusterID); err != nil {
			return 0, false, fmt.Errorf("insert cluster: %w", err)
		}
		created = true
	}

	const memberQ = `
INSERT INTO cluster_data.cluster_articles (cluster_id, article_id, is_primary, similarity_score, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (cluster_id, article_id) DO NOTHING
`
	// Each insert runs under a savepoint so one bad article can be skipped
	// without aborting the transaction. On a merge the existing cluster keeps
	// its primary article and new members join as regular articles.
	for i, article := range pending.articles {
		sp := fmt.Sprintf("member_%d", i)
		if err := tx.SavePoint(ctx, sp); err != nil {
			return 0, false, fmt.Errorf("savepoint %s: %w", sp, err)
		}
		similarity := pending.similarities[article.ID]
		isPrimary := created && article.ID == pending.primaryArticleID
		if _, err := tx.Exec(ctx, memberQ, clusterID, article.ID, isPrimary, similarity, now); err != nil {
			s.logger.Error().
				Int64("cluster_id", clusterID).
				Int64("article_id", article.ID).
				Err(err).
				Msg("skipping failed cluster membership insert")
			if err := tx.RollbackTo(ctx, sp); err != nil {
				return 0, false, fmt.Errorf("rollback to savepoint %s: %w", sp, err)
			}
		}
	}

	return clusterID, created, nil
}
