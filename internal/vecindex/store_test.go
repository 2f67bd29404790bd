package vecindex

import (
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrag/folderrag-mcp/pkg/types"
)

// basis returns the i-th standard basis vector of the given dimension.
func basis(dimension, i int) []float32 {
	v := make([]float32, dimension)
	v[i] = 1
	return v
}

func chunkID(i int) types.ChunkID {
	return types.ChunkID(fmt.Sprintf("chunk-%04d", i))
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(KindFlat, 0)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = NewStore("annoy", 8)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	for _, kind := range []string{KindFlat, KindHNSW, KindIVF} {
		s, err := NewStore(kind, 8)
		require.NoError(t, err)
		assert.Equal(t, kind, s.Kind())
		assert.Equal(t, 8, s.Dimension())
		assert.Equal(t, 0, s.Size())
	}
}

func TestInsertAndSearchFlat(t *testing.T) {
	s, err := NewStore(KindFlat, 4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Insert(chunkID(i), basis(4, i)))
	}
	assert.Equal(t, 4, s.Size())

	matches, err := s.Search(basis(4, 2), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, chunkID(2), matches[0].ChunkID)
	assert.GreaterOrEqual(t, matches[0].Score, 0.95)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestInsertErrors(t *testing.T) {
	s, err := NewStore(KindFlat, 4)
	require.NoError(t, err)

	assert.Error(t, s.Insert(chunkID(0), basis(3, 0)), "dimension mismatch")

	require.NoError(t, s.Insert(chunkID(0), basis(4, 0)))
	assert.Error(t, s.Insert(chunkID(0), basis(4, 1)), "duplicate chunk")
}

func TestSearchEdgeCases(t *testing.T) {
	s, err := NewStore(KindFlat, 4)
	require.NoError(t, err)

	// Empty index yields no matches.
	matches, err := s.Search(basis(4, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = s.Search(basis(3, 0), 5)
	assert.Error(t, err, "dimension mismatch")

	require.NoError(t, s.Insert(chunkID(0), basis(4, 0)))
	matches, err = s.Search(basis(4, 0), 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// k larger than the index returns everything.
	matches, err = s.Search(basis(4, 0), 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestHas(t *testing.T) {
	s, err := NewStore(KindFlat, 4)
	require.NoError(t, err)

	assert.False(t, s.Has(chunkID(0)))
	require.NoError(t, s.Insert(chunkID(0), basis(4, 0)))
	assert.True(t, s.Has(chunkID(0)))
}

func TestRemoveRebuilds(t *testing.T) {
	s, err := NewStore(KindFlat, 4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Insert(chunkID(i), basis(4, i)))
	}

	require.NoError(t, s.Remove(chunkID(1), chunkID(3)))
	assert.Equal(t, 2, s.Size())
	assert.False(t, s.Has(chunkID(1)))
	assert.False(t, s.Has(chunkID(3)))
	assert.True(t, s.Has(chunkID(0)))
	assert.True(t, s.Has(chunkID(2)))

	// Slots restart at zero after a rebuild.
	assert.Equal(t, int64(2), s.nextSlot)
	assert.Equal(t, int64(0), s.chunkToSlot[chunkID(0)])
	assert.Equal(t, int64(1), s.chunkToSlot[chunkID(2)])

	// Retained vectors remain searchable.
	matches, err := s.Search(basis(4, 2), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, chunkID(2), matches[0].ChunkID)

	// Removed chunks never come back.
	matches, err = s.Search(basis(4, 1), 4)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, chunkID(1), m.ChunkID)
	}

	// Inserting after a rebuild continues from the new end.
	require.NoError(t, s.Insert(chunkID(9), basis(4, 3)))
	assert.Equal(t, int64(2), s.chunkToSlot[chunkID(9)])
}

func TestSlotsSnapshot(t *testing.T) {
	s, err := NewStore(KindFlat, 4)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Insert(chunkID(i), basis(4, i)))
	}

	require.NoError(t, s.Remove(chunkID(0)))

	slots := s.Slots()
	assert.Equal(t, map[types.ChunkID]int64{
		chunkID(1): 0,
		chunkID(2): 1,
	}, slots)

	// Snapshot is a copy; mutating it does not touch the store.
	slots[chunkID(1)] = 42
	assert.Equal(t, int64(0), s.Slots()[chunkID(1)])
}

func TestRemoveUnknownChunks(t *testing.T) {
	s, err := NewStore(KindFlat, 4)
	require.NoError(t, err)
	require.NoError(t, s.Insert(chunkID(0), basis(4, 0)))

	require.NoError(t, s.Remove(chunkID(7)))
	assert.Equal(t, 1, s.Size())

	require.NoError(t, s.Remove())
	assert.Equal(t, 1, s.Size())
}

// randomUnitVectors produces deterministic pseudo-random vectors.
func randomUnitVectors(n, dimension int) [][]float32 {
	rng := rand.New(rand.NewSource(42))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dimension)
		for d := range v {
			v[d] = float32(rng.NormFloat64())
		}
		vecs[i] = normalize(v)
	}
	return vecs
}

func TestHNSWSelfSimilarity(t *testing.T) {
	s, err := NewStore(KindHNSW, 16)
	require.NoError(t, err)

	vecs := randomUnitVectors(200, 16)
	for i, v := range vecs {
		require.NoError(t, s.Insert(chunkID(i), v))
	}

	// Querying with a stored vector must surface that chunk with
	// near-perfect similarity.
	hits := 0
	for i := 0; i < 20; i++ {
		matches, err := s.Search(vecs[i], 10)
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		for _, m := range matches {
			if m.ChunkID == chunkID(i) {
				assert.GreaterOrEqual(t, m.Score, 0.95)
				hits++
				break
			}
		}
	}
	// The graph search is approximate; a small miss rate is tolerated.
	assert.GreaterOrEqual(t, hits, 18)
}

func TestIVFSearch(t *testing.T) {
	s, err := NewStore(KindIVF, 16)
	require.NoError(t, err)

	// Below the training threshold IVF scans exactly.
	vecs := randomUnitVectors(50, 16)
	for i, v := range vecs {
		require.NoError(t, s.Insert(chunkID(i), v))
	}
	matches, err := s.Search(vecs[7], 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, chunkID(7), matches[0].ChunkID)
	assert.GreaterOrEqual(t, matches[0].Score, 0.95)

	// Past the threshold the clustering trains and searches still
	// surface stored vectors.
	more := randomUnitVectors(150, 16)
	for i, v := range more {
		require.NoError(t, s.Insert(chunkID(1000+i), v))
	}
	matches, err = s.Search(more[3], 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, chunkID(1003), matches[0].ChunkID)
}

func TestIVFTrainsOnInsertNotSearch(t *testing.T) {
	s, err := NewStore(KindIVF, 16)
	require.NoError(t, err)

	vecs := randomUnitVectors(120, 16)
	for i, v := range vecs {
		require.NoError(t, s.Insert(chunkID(i), v))
	}

	iv, ok := s.index.(*ivfIndex)
	require.True(t, ok)
	assert.True(t, iv.trained(), "clustering trains during insert once past the threshold")

	// Searches share the store concurrently and must not mutate it.
	start := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			<-start
			for i := 0; i < 20; i++ {
				matches, err := s.Search(vecs[(g*20+i)%len(vecs)], 3)
				assert.NoError(t, err)
				assert.NotEmpty(t, matches)
			}
		}(g)
	}
	close(start)
	wg.Wait()
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, kind := range []string{KindFlat, KindHNSW, KindIVF} {
		t.Run(kind, func(t *testing.T) {
			dir := t.TempDir()

			s, err := NewStore(kind, 8)
			require.NoError(t, err)
			for i := 0; i < 8; i++ {
				require.NoError(t, s.Insert(chunkID(i), basis(8, i)))
			}
			require.NoError(t, s.Save(dir))

			loaded, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, kind, loaded.Kind())
			assert.Equal(t, 8, loaded.Dimension())
			assert.Equal(t, 8, loaded.Size())

			matches, err := loaded.Search(basis(8, 5), 1)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, chunkID(5), matches[0].ChunkID)
			assert.GreaterOrEqual(t, matches[0].Score, 0.95)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadCorrupted(t *testing.T) {
	build := func(t *testing.T) string {
		dir := t.TempDir()
		s, err := NewStore(KindFlat, 4)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Insert(chunkID(i), basis(4, i)))
		}
		require.NoError(t, s.Save(dir))
		return dir
	}

	t.Run("missing vectors file", func(t *testing.T) {
		dir := build(t)
		require.NoError(t, os.Remove(filepath.Join(dir, vectorsFile)))
		_, err := Load(dir)
		assert.ErrorIs(t, err, types.ErrCorruptedState)
	})

	t.Run("missing mappings file", func(t *testing.T) {
		dir := build(t)
		require.NoError(t, os.Remove(filepath.Join(dir, mappingsFile)))
		_, err := Load(dir)
		assert.ErrorIs(t, err, types.ErrCorruptedState)
	})

	t.Run("truncated vectors file", func(t *testing.T) {
		dir := build(t)
		path := filepath.Join(dir, vectorsFile)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data[:len(data)-7], 0o644))
		_, err = Load(dir)
		assert.ErrorIs(t, err, types.ErrCorruptedState)
	})

	t.Run("invalid mappings json", func(t *testing.T) {
		dir := build(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, mappingsFile), []byte("{"), 0o644))
		_, err := Load(dir)
		assert.ErrorIs(t, err, types.ErrCorruptedState)
	})

	t.Run("mapping count mismatch", func(t *testing.T) {
		dir := build(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, mappingsFile),
			[]byte(`{"kind":"flat","dimension":4,"next_slot":2,"chunk_to_slot":{"a":0,"b":1}}`), 0o644))
		_, err := Load(dir)
		assert.ErrorIs(t, err, types.ErrCorruptedState)
	})
}

func TestSaveLoadAfterRemove(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(KindFlat, 4)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Insert(chunkID(i), basis(4, i)))
	}
	require.NoError(t, s.Remove(chunkID(0)))
	require.NoError(t, s.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Size())
	assert.False(t, loaded.Has(chunkID(0)))
	assert.True(t, loaded.Has(chunkID(1)))
}
