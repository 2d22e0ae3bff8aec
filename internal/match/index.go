package match

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/jsvoboda/classwatch/internal/roster"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// indexSearchK is how many nearest identities are examined per probe.
// Rosters small enough to fit a classroom comfortably fit in k, so the
// approximate search stays exact in practice.
const indexSearchK = 16

// Index is an HNSW-backed matcher for larger rosters. It carries the
// same per-identity dedup and ordering contract as Matcher; only the
// candidate search differs.
type Index struct {
	threshold float64

	mu         sync.RWMutex
	graph      *hnsw.Graph[int64]
	identities map[int64]roster.Identity
}

// NewIndex builds an index over every identity with a usable reference
// embedding.
func NewIndex(threshold float64, identities []roster.Identity) *Index {
	idx := &Index{
		threshold:  threshold,
		identities: make(map[int64]roster.Identity, len(identities)),
	}

	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	for _, id := range identities {
		if !id.HasEmbedding() {
			continue
		}
		g.Add(hnsw.MakeNode(id.ID, id.Embedding))
		idx.identities[id.ID] = id
	}

	idx.graph = g
	return idx
}

// Len returns the number of indexed identities.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.identities)
}

// Match finds the best identity matches for the given probes. The
// identities argument is unused beyond what was indexed; it is accepted
// so Index satisfies the same signature as Matcher.
func (idx *Index) Match(probes [][]float32, _ []roster.Identity) []Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := make(map[int64]Match)

	for _, probe := range probes {
		if len(probe) == 0 {
			continue
		}
		k := indexSearchK
		if n := len(idx.identities); n < k {
			k = n
		}
		if k == 0 {
			continue
		}
		for _, node := range idx.graph.Search(probe, k) {
			id, ok := idx.identities[node.Key]
			if !ok {
				continue
			}
			// Recompute with the exact similarity so thresholding and
			// confidences agree with the linear matcher.
			sim := CosineSimilarity(probe, id.Embedding)
			if sim <= idx.threshold {
				continue
			}
			if prev, ok := best[id.ID]; !ok || sim > prev.Confidence {
				best[id.ID] = Match{Identity: id, Confidence: sim}
			}
		}
	}

	return sortedMatches(best)
}
