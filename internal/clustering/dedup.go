package clustering

import (
	"strings"
)

// keyEntityRegimeTrigger: above this key-entity match the pair is treated as
// an evolving story and scored with the low-overlap weight regime.
const keyEntityRegimeTrigger = 0.8

// evolvingStoryThreshold replaces the configured duplicate threshold in the
// evolving-story regime: continuing coverage legitimately shares few articles
// but strong identity entities.
const evolvingStoryThreshold = 0.65

// dedupAuditFloor: any overall similarity at or above this is logged for
// offline threshold tuning even when not flagged duplicate.
const dedupAuditFloor = 0.5

// keyEntityCategoryWeights covers the identity-bearing entity categories used
// by the key-entity signal. Companies and threat groups are the most
// distinctive; attack types the most generic.
var keyEntityCategoryWeights = map[string]float64{
	"company":            1.0,
	"apt_group":          1.0,
	"ransomware_group":   1.0,
	"malware_family":     0.9,
	"vulnerability_type": 0.8,
	"attack_type":        0.7,
}

type dedupWeights struct {
	Article   float64
	Entity    float64
	Title     float64
	Source    float64
	KeyEntity float64
}

// dedupBreakdown carries every signal of one cluster-pair comparison, both
// for the duplicate decision and for the tuning audit log.
type dedupBreakdown struct {
	ArticleOverlap   float64
	EntitySimilarity float64
	TitleSimilarity  float64
	SourceOverlap    float64
	KeyEntityMatch   float64
	Overall          float64
	Threshold        float64
	IsDuplicate      bool
}

// selectWeights returns the signal weights and decision threshold for a given
// key-entity match. Above the regime trigger the article-overlap weight
// collapses and the key-entity term joins the sum; otherwise the standard
// four-signal weights apply with the configured duplicate threshold.
func selectWeights(keyEntityMatch, duplicateThreshold float64) (dedupWeights, float64) {
	if keyEntityMatch > keyEntityRegimeTrigger {
		return dedupWeights{
			Article:   0.05,
			Entity:    0.50,
			Title:     0.30,
			Source:    0.05,
			KeyEntity: 0.10,
		}, evolvingStoryThreshold
	}
	return dedupWeights{
		Article: 0.2,
		Entity:  0.4,
		Title:   0.3,
		Source:  0.1,
	}, duplicateThreshold
}

// scoreClusterPair compares a newly built group against one existing cluster
// across all five signals and applies the regime-selected weighted sum.
func scoreClusterPair(pending pendingCluster, existing clusterSnapshot, duplicateThreshold float64) dedupBreakdown {
	b := dedupBreakdown{
		ArticleOverlap:   jaccardIDs(pending.articleIDs(), existing.ArticleIDs),
		EntitySimilarity: entitySimilarity(pending.entities(), existing.Entities),
		TitleSimilarity:  titleSimilarity(pending.titles(), existing.Titles),
		SourceOverlap:    jaccardIDs(pending.feedIDs(), existing.FeedIDs),
		KeyEntityMatch:   keyEntityMatch(pending.entities(), existing.Entities),
	}

	weights, threshold := selectWeights(b.KeyEntityMatch, duplicateThreshold)
	b.Overall = weights.Article*b.ArticleOverlap +
		weights.Entity*b.EntitySimilarity +
		weights.Title*b.TitleSimilarity +
		weights.Source*b.SourceOverlap +
		weights.KeyEntity*b.KeyEntityMatch
	b.Threshold = threshold
	b.IsDuplicate = b.Overall >= threshold
	return b
}

// jaccardIDs is the Jaccard similarity of two id sets.
func jaccardIDs(a, b []int64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[int64]struct{}, len(a))
	for _, id := range a {
		setA[id] = struct{}{}
	}
	setB := make(map[int64]struct{}, len(b))
	for _, id := range b {
		setB[id] = struct{}{}
	}

	intersection := 0
	for id := range setA {
		if _, ok := setB[id]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// entitySimilarity is the Jaccard similarity of category:name pairs across
// the two clusters' entities.
func entitySimilarity(a, b []EntityRef) float64 {
	setA := entityKeySet(a)
	setB := entityKeySet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for key := range setA {
		if _, ok := setB[key]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func entityKeySet(refs []EntityRef) map[string]struct{} {
	set := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		set[ref.Category+":"+ref.Name] = struct{}{}
	}
	return set
}

// keyEntityMatch scores identity-bearing entity overlap: the summed category
// weights of names (case-insensitive) present in both clusters, over the
// summed weights of all distinct names across both.
func keyEntityMatch(a, b []EntityRef) float64 {
	keyA := keyEntityNames(a)
	keyB := keyEntityNames(b)
	if len(keyA) == 0 || len(keyB) == 0 {
		return 0
	}

	totalWeight := 0.0
	matchWeight := 0.0
	for name, category := range keyA {
		weight := keyEntityCategoryWeights[category]
		totalWeight += weight
		if _, ok := keyB[name]; ok {
			matchWeight += weight
		}
	}
	for name, category := range keyB {
		if _, ok := keyA[name]; ok {
			continue
		}
		totalWeight += keyEntityCategoryWeights[category]
	}

	if totalWeight == 0 {
		return 0
	}
	return matchWeight / totalWeight
}

func keyEntityNames(refs []EntityRef) map[string]string {
	names := make(map[string]string)
	for _, ref := range refs {
		if _, ok := keyEntityCategoryWeights[ref.Category]; !ok {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(ref.Name))
		if name == "" {
			continue
		}
		names[name] = ref.Category
	}
	return names
}
