package vecindex

import (
	"fmt"
	"math"
	"sort"
)

// Index kinds. Flat is exact brute-force search, HNSW is an approximate
// graph index, IVF is an approximate clustered index.
const (
	KindFlat = "flat"
	KindHNSW = "hnsw"
	KindIVF  = "ivf"
)

// candidate is an internal search hit: a slot and its similarity score.
type candidate struct {
	slot  int64
	score float64
}

// vectorIndex is the backend contract shared by the flat, hnsw, and ivf
// implementations. Slots are dense: add assigns size() as the new slot.
// Implementations are not safe for concurrent use; Store serializes
// access.
type vectorIndex interface {
	// add appends a vector and returns its slot.
	add(vec []float32) int64
	// search returns up to k candidates ordered by descending score.
	search(vec []float32, k int) []candidate
	// reconstruct returns the stored vector at slot.
	reconstruct(slot int64) []float32
	// size returns the number of stored vectors.
	size() int
}

func newVectorIndex(kind string, dimension int) (vectorIndex, error) {
	switch kind {
	case KindFlat:
		return newFlatIndex(dimension), nil
	case KindHNSW:
		return newHNSWIndex(dimension), nil
	case KindIVF:
		return newIVFIndex(dimension), nil
	default:
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}
}

// flatIndex performs exact brute-force search over all stored vectors.
type flatIndex struct {
	dimension int
	vectors   [][]float32
}

func newFlatIndex(dimension int) *flatIndex {
	return &flatIndex{dimension: dimension}
}

func (f *flatIndex) add(vec []float32) int64 {
	slot := int64(len(f.vectors))
	f.vectors = append(f.vectors, vec)
	return slot
}

func (f *flatIndex) search(vec []float32, k int) []candidate {
	candidates := make([]candidate, 0, len(f.vectors))
	for slot, stored := range f.vectors {
		candidates = append(candidates, candidate{
			slot:  int64(slot),
			score: dotProduct(vec, stored),
		})
	}
	sortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func (f *flatIndex) reconstruct(slot int64) []float32 {
	return f.vectors[slot]
}

func (f *flatIndex) size() int {
	return len(f.vectors)
}

// sortCandidates orders by descending score, breaking ties by ascending
// slot for deterministic results.
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].slot < candidates[j].slot
	})
}

// dotProduct computes the inner product of two equal-length vectors.
// Vectors are normalized on insert, so this is cosine similarity.
func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize returns a unit-length copy of vec. Zero vectors are returned
// as a copy unchanged.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	if norm == 0 {
		return out
	}
	inv := 1.0 / math.Sqrt(norm)
	for i := range out {
		out[i] = float32(float64(out[i]) * inv)
	}
	return out
}
