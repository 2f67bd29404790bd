package vecindex

import (
	"fmt"
	"sync"

	"github.com/localrag/folderrag-mcp/pkg/types"
)

// Match is a search hit: a chunk and its cosine similarity to the query.
type Match struct {
	ChunkID types.ChunkID
	Score   float64
}

// Store owns a vector index and the bidirectional mapping between chunk
// IDs and index slots. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	kind      string
	dimension int
	index     vectorIndex

	chunkToSlot map[types.ChunkID]int64
	slotToChunk map[int64]types.ChunkID
	nextSlot    int64
}

// NewStore creates an empty store of the given kind and dimension.
func NewStore(kind string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", types.ErrConfiguration, dimension)
	}
	index, err := newVectorIndex(kind, dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	return &Store{
		kind:        kind,
		dimension:   dimension,
		index:       index,
		chunkToSlot: make(map[types.ChunkID]int64),
		slotToChunk: make(map[int64]types.ChunkID),
	}, nil
}

// Kind returns the index kind.
func (s *Store) Kind() string {
	return s.kind
}

// Dimension returns the vector dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// Insert adds a vector for the chunk, assigning the next slot. Vectors
// are normalized before storage so search scores are cosine similarities.
func (s *Store) Insert(chunkID types.ChunkID, vec []float32) error {
	if len(vec) != s.dimension {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), s.dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chunkToSlot[chunkID]; exists {
		return fmt.Errorf("chunk %s already indexed", chunkID)
	}

	slot := s.index.add(normalize(vec))
	if slot != s.nextSlot {
		return fmt.Errorf("slot assignment out of sync: got %d, expected %d", slot, s.nextSlot)
	}
	s.chunkToSlot[chunkID] = slot
	s.slotToChunk[slot] = chunkID
	s.nextSlot++
	return nil
}

// Search returns up to k chunks ordered by descending cosine similarity.
// An empty index yields no matches.
func (s *Store) Search(vec []float32, k int) ([]Match, error) {
	if len(vec) != s.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vec), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.index.search(normalize(vec), k)
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		chunkID, ok := s.slotToChunk[c.slot]
		if !ok {
			continue
		}
		matches = append(matches, Match{ChunkID: chunkID, Score: c.score})
	}
	return matches, nil
}

// Has reports whether the chunk has a vector in the index.
func (s *Store) Has(chunkID types.ChunkID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunkToSlot[chunkID]
	return ok
}

// Slots returns a copy of the chunk-to-slot mapping. Callers use it to
// sync persisted slot references after Remove reassigns slots.
func (s *Store) Slots() map[types.ChunkID]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.ChunkID]int64, len(s.chunkToSlot))
	for id, slot := range s.chunkToSlot {
		out[id] = slot
	}
	return out
}

// Size returns the number of indexed vectors.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.size()
}

// Remove deletes the vectors for the given chunks by rebuilding the index
// from the retained vectors. Slots restart at zero after the rebuild.
// Chunks not present in the index are ignored.
func (s *Store) Remove(chunkIDs ...types.ChunkID) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[types.ChunkID]bool, len(chunkIDs))
	removing := false
	for _, id := range chunkIDs {
		if _, ok := s.chunkToSlot[id]; ok {
			doomed[id] = true
			removing = true
		}
	}
	if !removing {
		return nil
	}

	// Build the replacement off to the side, then swap. Retained
	// vectors re-insert in ascending slot order so results stay
	// deterministic.
	fresh, err := newVectorIndex(s.kind, s.dimension)
	if err != nil {
		return err
	}
	chunkToSlot := make(map[types.ChunkID]int64, len(s.chunkToSlot))
	slotToChunk := make(map[int64]types.ChunkID, len(s.slotToChunk))

	var next int64
	for slot := int64(0); slot < s.nextSlot; slot++ {
		chunkID, ok := s.slotToChunk[slot]
		if !ok || doomed[chunkID] {
			continue
		}
		newSlot := fresh.add(s.index.reconstruct(slot))
		if newSlot != next {
			return fmt.Errorf("rebuild slot assignment out of sync: got %d, expected %d", newSlot, next)
		}
		chunkToSlot[chunkID] = newSlot
		slotToChunk[newSlot] = chunkID
		next++
	}

	s.index = fresh
	s.chunkToSlot = chunkToSlot
	s.slotToChunk = slotToChunk
	s.nextSlot = next
	return nil
}
