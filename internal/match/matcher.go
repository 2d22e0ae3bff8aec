package match

import (
	"sort"

	"github.com/jsvoboda/classwatch/internal/roster"
)

// Match pairs an enrolled identity with the confidence of its best
// probe comparison in one detection pass.
type Match struct {
	Identity   roster.Identity
	Confidence float64
}

// Matcher compares probe embeddings against a roster using cosine
// similarity. Only similarities strictly above Threshold count.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a Matcher with the given similarity threshold.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{Threshold: threshold}
}

// Match compares every probe against every identity with a usable
// reference embedding and keeps the best match per identity. Probes
// with no embedding (the zero-length failure sentinel) and identities
// without a reference embedding are skipped. The result is ordered by
// ascending identity ID so passes are deterministic.
func (m *Matcher) Match(probes [][]float32, identities []roster.Identity) []Match {
	best := make(map[int64]Match)

	for _, probe := range probes {
		if len(probe) == 0 {
			continue
		}
		for _, id := range identities {
			if !id.HasEmbedding() {
				continue
			}
			sim := CosineSimilarity(probe, id.Embedding)
			if sim <= m.Threshold {
				continue
			}
			if prev, ok := best[id.ID]; !ok || sim > prev.Confidence {
				best[id.ID] = Match{Identity: id, Confidence: sim}
			}
		}
	}

	return sortedMatches(best)
}

func sortedMatches(best map[int64]Match) []Match {
	matches := make([]Match, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Identity.ID < matches[j].Identity.ID
	})
	return matches
}
