package clustering

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxTitleFeatures = 100

// titleSimilarity computes the cosine similarity of TF-IDF vectors built from
// the concatenated titles of two clusters. Unigrams and bigrams with English
// stop-words removed, capped at the most frequent 100 features. Degenerate
// input (either side empty after tokenization) scores 0.0.
func titleSimilarity(titlesA, titlesB []string) float64 {
	countsA := ngramCounts(strings.Join(titlesA, " "))
	countsB := ngramCounts(strings.Join(titlesB, " "))
	if len(countsA) == 0 || len(countsB) == 0 {
		return 0
	}

	features := topFeatures(countsA, countsB, maxTitleFeatures)

	vecA := tfidfVector(countsA, countsB, features)
	vecB := tfidfVector(countsB, countsA, features)
	return clip01(cosineSimilarity(vecA, vecB))
}

// titleKeywords extracts up to limit single-word TF-IDF keywords (length > 3)
// from a set of titles, title-cased, for fallback cluster naming.
func titleKeywords(titles []string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	perDoc := make([]map[string]int, 0, len(titles))
	docFreq := make(map[string]int)
	for _, title := range titles {
		counts := ngramCounts(title)
		if len(counts) == 0 {
			continue
		}
		perDoc = append(perDoc, counts)
		for term := range counts {
			docFreq[term]++
		}
	}
	if len(perDoc) == 0 {
		return nil
	}

	n := float64(len(perDoc))
	scores := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		idf := math.Log((1+n)/(1+float64(df))) + 1
		for _, counts := range perDoc {
			if tf, ok := counts[term]; ok {
				scores[term] += float64(tf) * idf
			}
		}
	}

	terms := make([]string, 0, len(scores))
	for term := range scores {
		if strings.ContainsRune(term, ' ') || len(term) <= 3 {
			continue
		}
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if scores[terms[i]] != scores[terms[j]] {
			return scores[terms[i]] > scores[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	keywords := make([]string, 0, len(terms))
	for _, term := range terms {
		keywords = append(keywords, titleCase(term))
	}
	return keywords
}

// ngramCounts tokenizes a document into lowercase word tokens, drops
// stop-words, and counts unigrams plus bigrams.
func ngramCounts(doc string) map[string]int {
	tokens := contentTokens(doc)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int, len(tokens)*2)
	for i, token := range tokens {
		counts[token]++
		if i+1 < len(tokens) {
			counts[token+" "+tokens[i+1]]++
		}
	}
	return counts
}

// contentTokens lowercases a document and splits it into runs of word
// characters. Tokens shorter than two characters and stop-words are dropped,
// so hyphenated words split into their parts.
func contentTokens(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := englishStopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// topFeatures returns the vocabulary shared by the TF-IDF vectors: the union
// of both documents' terms ranked by total count, ties broken alphabetically,
// capped at limit.
func topFeatures(countsA, countsB map[string]int, limit int) []string {
	totals := make(map[string]int, len(countsA)+len(countsB))
	for term, c := range countsA {
		totals[term] += c
	}
	for term, c := range countsB {
		totals[term] += c
	}

	features := make([]string, 0, len(totals))
	for term := range totals {
		features = append(features, term)
	}
	sort.Slice(features, func(i, j int) bool {
		if totals[features[i]] != totals[features[j]] {
			return totals[features[i]] > totals[features[j]]
		}
		return features[i] < features[j]
	})
	if len(features) > limit {
		features = features[:limit]
	}
	return features
}

// tfidfVector builds an L2-normalized TF-IDF vector over the feature list for
// the document with counts `own`, with document frequencies taken from both
// documents (smoothed IDF over a two-document corpus).
func tfidfVector(own, other map[string]int, features []string) []float64 {
	const corpusSize = 2.0
	vec := make([]float64, len(features))
	for i, term := range features {
		tf, ok := own[term]
		if !ok {
			continue
		}
		df := 1.0
		if _, inOther := other[term]; inOther {
			df = 2.0
		}
		idf := math.Log((1+corpusSize)/(1+df)) + 1
		vec[i] = float64(tf) * idf
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	runes := []rune(word)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// englishStopwords is the stop-word list applied to titles before building
// TF-IDF features and keywords.
var englishStopwords = func() map[string]struct{} {
	words := []string{
		"a", "about", "above", "after", "again", "against", "all", "also", "am", "an",
		"and", "any", "are", "as", "at", "be", "because", "been", "before", "being",
		"below", "between", "both", "but", "by", "can", "cannot", "could", "did",
		"do", "does", "doing", "down", "during", "each", "few", "for", "from",
		"further", "had", "has", "have", "having", "he", "her", "here", "hers",
		"him", "his", "how", "i", "if", "in", "into", "is", "it", "its", "itself",
		"just", "more", "most", "my", "no", "nor", "not", "now", "of", "off", "on",
		"once", "only", "or", "other", "our", "ours", "out", "over", "own", "same",
		"she", "should", "so", "some", "such", "than", "that", "the", "their",
		"theirs", "them", "then", "there", "these", "they", "this", "those",
		"through", "to", "too", "under", "until", "up", "very", "was", "we", "were",
		"what", "when", "where", "which", "while", "who", "whom", "why", "will",
		"with", "would", "you", "your", "yours",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()
