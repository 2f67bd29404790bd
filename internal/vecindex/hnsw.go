package vecindex

import (
	"math"
	"math/rand"
)

// HNSW construction parameters.
const (
	hnswM              = 32 // max connections per node per layer
	hnswEfConstruction = 40 // beam width while building
	hnswEfSearch       = 16 // beam width while querying
)

// hnswIndex is a hierarchical navigable small world graph. Upper layers
// hold a sparse subset of nodes for fast descent; layer 0 holds every
// node with denser connectivity.
type hnswIndex struct {
	dimension int
	vectors   [][]float32
	// neighbors[slot][layer] lists the connected slots at that layer.
	neighbors [][][]int64
	levels    []int
	entry     int64
	maxLevel  int
	levelMult float64
	rng       *rand.Rand
}

func newHNSWIndex(dimension int) *hnswIndex {
	return &hnswIndex{
		dimension: dimension,
		entry:     -1,
		levelMult: 1.0 / math.Log(float64(hnswM)),
		// Fixed seed keeps graph construction deterministic, which
		// makes persisted indexes reproducible across rebuilds.
		rng: rand.New(rand.NewSource(1)),
	}
}

func (h *hnswIndex) randomLevel() int {
	return int(-math.Log(h.rng.Float64()) * h.levelMult)
}

func (h *hnswIndex) maxConn(layer int) int {
	if layer == 0 {
		return hnswM * 2
	}
	return hnswM
}

func (h *hnswIndex) add(vec []float32) int64 {
	slot := int64(len(h.vectors))
	level := h.randomLevel()

	h.vectors = append(h.vectors, vec)
	h.levels = append(h.levels, level)
	layers := make([][]int64, level+1)
	h.neighbors = append(h.neighbors, layers)

	if h.entry < 0 {
		h.entry = slot
		h.maxLevel = level
		return slot
	}

	// Greedy descent through layers above the insertion level.
	ep := h.entry
	for layer := h.maxLevel; layer > level; layer-- {
		ep = h.greedyClosest(vec, ep, layer)
	}

	// Connect on each layer from min(level, maxLevel) down to 0.
	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	eps := []int64{ep}
	for layer := top; layer >= 0; layer-- {
		found := h.searchLayer(vec, eps, hnswEfConstruction, layer)
		m := h.maxConn(layer)
		selected := found
		if len(selected) > m {
			selected = selected[:m]
		}
		for _, c := range selected {
			h.neighbors[slot][layer] = append(h.neighbors[slot][layer], c.slot)
			h.neighbors[c.slot][layer] = append(h.neighbors[c.slot][layer], slot)
			h.pruneNeighbors(c.slot, layer)
		}
		eps = make([]int64, 0, len(found))
		for _, c := range found {
			eps = append(eps, c.slot)
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = slot
	}
	return slot
}

// pruneNeighbors trims a node's connection list back to the layer limit,
// keeping the highest-similarity links.
func (h *hnswIndex) pruneNeighbors(slot int64, layer int) {
	conns := h.neighbors[slot][layer]
	m := h.maxConn(layer)
	if len(conns) <= m {
		return
	}
	vec := h.vectors[slot]
	candidates := make([]candidate, 0, len(conns))
	for _, c := range conns {
		candidates = append(candidates, candidate{slot: c, score: dotProduct(vec, h.vectors[c])})
	}
	sortCandidates(candidates)
	kept := make([]int64, 0, m)
	for _, c := range candidates[:m] {
		kept = append(kept, c.slot)
	}
	h.neighbors[slot][layer] = kept
}

// greedyClosest walks a single layer toward the query, returning the
// closest node reachable by hill climbing.
func (h *hnswIndex) greedyClosest(vec []float32, ep int64, layer int) int64 {
	best := ep
	bestScore := dotProduct(vec, h.vectors[ep])
	for {
		improved := false
		for _, n := range h.layerNeighbors(best, layer) {
			if s := dotProduct(vec, h.vectors[n]); s > bestScore {
				best, bestScore = n, s
				improved = true
			}
		}
		if !improved {
			return best
		}
	}
}

func (h *hnswIndex) layerNeighbors(slot int64, layer int) []int64 {
	if layer >= len(h.neighbors[slot]) {
		return nil
	}
	return h.neighbors[slot][layer]
}

// searchLayer performs a best-first beam search on one layer, returning
// up to ef candidates ordered by descending score.
func (h *hnswIndex) searchLayer(vec []float32, eps []int64, ef, layer int) []candidate {
	visited := make(map[int64]bool, ef*4)
	var frontier, results []candidate
	for _, ep := range eps {
		if visited[ep] {
			continue
		}
		visited[ep] = true
		c := candidate{slot: ep, score: dotProduct(vec, h.vectors[ep])}
		frontier = append(frontier, c)
		results = append(results, c)
	}
	sortCandidates(frontier)
	sortCandidates(results)

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		// The frontier is exhausted once its best candidate cannot
		// beat the worst retained result.
		if len(results) >= ef && current.score < results[len(results)-1].score {
			break
		}

		for _, n := range h.layerNeighbors(current.slot, layer) {
			if visited[n] {
				continue
			}
			visited[n] = true
			c := candidate{slot: n, score: dotProduct(vec, h.vectors[n])}
			if len(results) < ef || c.score > results[len(results)-1].score {
				frontier = append(frontier, c)
				results = append(results, c)
				sortCandidates(frontier)
				sortCandidates(results)
				if len(results) > ef {
					results = results[:ef]
				}
			}
		}
	}
	return results
}

func (h *hnswIndex) search(vec []float32, k int) []candidate {
	if h.entry < 0 {
		return nil
	}
	ep := h.entry
	for layer := h.maxLevel; layer > 0; layer-- {
		ep = h.greedyClosest(vec, ep, layer)
	}
	ef := hnswEfSearch
	if k > ef {
		ef = k
	}
	results := h.searchLayer(vec, []int64{ep}, ef, 0)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func (h *hnswIndex) reconstruct(slot int64) []float32 {
	return h.vectors[slot]
}

func (h *hnswIndex) size() int {
	return len(h.vectors)
}
