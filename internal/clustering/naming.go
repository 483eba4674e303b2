package clustering

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/globaltime"
)

const (
	// nameImportanceFloor: only entities at or above this importance weight
	// qualify for name parts.
	nameImportanceFloor = 70
	maxNameParts        = 3
	maxNamesPerCategory = 2
	maxNameLength       = 200
	summaryContentChars = 500
)

// namePriorityCategories orders entity categories from most to least
// name-worthy when assembling a cluster name.
var namePriorityCategories = []string{
	"apt_group",
	"ransomware_group",
	"malware_family",
	"cve",
	"vulnerability_type",
	"attack_type",
	"company",
	"platform",
	"security_vendor",
}

// generateClusterName derives a human-readable name from the group's
// high-importance entities, falling back to TF-IDF keywords from the member
// titles, and finally to a timestamped generic name.
func generateClusterName(articles []Article) string {
	counts := entityFrequencies(articles)

	var parts []string
	for _, category := range namePriorityCategories {
		for _, candidate := range counts.top(category, maxNamesPerCategory) {
			if candidate.weight < nameImportanceFloor {
				continue
			}
			parts = append(parts, candidate.name)
			if len(parts) >= maxNameParts {
				break
			}
		}
		if len(parts) >= maxNameParts {
			break
		}
	}

	if len(parts) < 2 {
		titles := make([]string, 0, len(articles))
		for _, a := range articles {
			titles = append(titles, a.Title)
		}
		for _, kw := range titleKeywords(titles, maxNameParts) {
			parts = append(parts, kw)
			if len(parts) >= maxNameParts {
				break
			}
		}
	}

	var name string
	if len(parts) > 0 {
		if len(parts) > maxNameParts {
			parts = parts[:maxNameParts]
		}
		name = strings.Join(parts, " - ")
	} else {
		name = "Security Cluster " + globaltime.UTC().Format("200601021504")
	}

	return truncateName(name)
}

// generateClusterSummary is the primary article's title plus the leading
// slice of its body.
func generateClusterSummary(primary Article) string {
	content := primary.Content
	if utf8.RuneCountInString(content) > summaryContentChars {
		content = string([]rune(content)[:summaryContentChars])
	}
	return primary.Title + "\n\n" + content + "..."
}

func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= maxNameLength {
		return name
	}
	return string([]rune(name)[:maxNameLength-3]) + "..."
}

type entityCandidate struct {
	name   string
	weight int
	count  int
}

type entityFrequencyIndex map[string][]entityCandidate

// entityFrequencies counts entity occurrences per category across all member
// articles and keeps each category's candidates sorted by frequency, ties
// broken by name for determinism.
func entityFrequencies(articles []Article) entityFrequencyIndex {
	type key struct {
		category string
		name     string
	}
	counts := make(map[key]*entityCandidate)
	for _, a := range articles {
		for _, ref := range a.Entities {
			k := key{category: ref.Category, name: ref.Name}
			if existing, ok := counts[k]; ok {
				existing.count++
				continue
			}
			counts[k] = &entityCandidate{name: ref.Name, weight: ref.Weight, count: 1}
		}
	}

	index := make(entityFrequencyIndex)
	for k, candidate := range counts {
		index[k.category] = append(index[k.category], *candidate)
	}
	for category := range index {
		candidates := index[category]
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].count != candidates[j].count {
				return candidates[i].count > candidates[j].count
			}
			return candidates[i].name < candidates[j].name
		})
	}
	return index
}

func (idx entityFrequencyIndex) top(category string, limit int) []entityCandidate {
	candidates := idx[category]
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
