package vecindex

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/localrag/folderrag-mcp/pkg/types"
)

// Companion files written by Save inside the index directory.
const (
	vectorsFile  = "vectors.bin"
	mappingsFile = "mappings.json"
)

var vectorsMagic = [4]byte{'F', 'R', 'V', 'I'}

const vectorsVersion = 1

// mappings is the JSON companion to the binary vector file.
type mappings struct {
	Kind        string           `json:"kind"`
	Dimension   int              `json:"dimension"`
	NextSlot    int64            `json:"next_slot"`
	ChunkToSlot map[string]int64 `json:"chunk_to_slot"`
}

// Save writes the store to dir as a binary vector file and a JSON mapping
// file. Both files are written to temp names and renamed so a crash never
// leaves a half-written pair behind.
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(vectorsMagic[:])
	if err := binary.Write(&buf, binary.LittleEndian, uint32(vectorsVersion)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(s.dimension)); err != nil {
		return err
	}
	count := int64(s.index.size())
	if err := binary.Write(&buf, binary.LittleEndian, count); err != nil {
		return err
	}
	for slot := int64(0); slot < count; slot++ {
		for _, v := range s.index.reconstruct(slot) {
			if err := binary.Write(&buf, binary.LittleEndian, math.Float32bits(v)); err != nil {
				return err
			}
		}
	}

	m := mappings{
		Kind:        s.kind,
		Dimension:   s.dimension,
		NextSlot:    s.nextSlot,
		ChunkToSlot: make(map[string]int64, len(s.chunkToSlot)),
	}
	for chunkID, slot := range s.chunkToSlot {
		m.ChunkToSlot[string(chunkID)] = slot
	}
	mapData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mappings: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, vectorsFile), buf.Bytes()); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, mappingsFile), mapData)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Load restores a store from dir. Returns fs.ErrNotExist when neither
// companion file exists (the caller creates a fresh store), and
// types.ErrCorruptedState when the pair is incomplete or inconsistent.
func Load(dir string) (*Store, error) {
	vecPath := filepath.Join(dir, vectorsFile)
	mapPath := filepath.Join(dir, mappingsFile)

	vecData, vecErr := os.ReadFile(vecPath)
	mapData, mapErr := os.ReadFile(mapPath)
	vecMissing := errors.Is(vecErr, fs.ErrNotExist)
	mapMissing := errors.Is(mapErr, fs.ErrNotExist)

	switch {
	case vecMissing && mapMissing:
		return nil, fs.ErrNotExist
	case vecMissing || mapMissing:
		return nil, fmt.Errorf("%w: only one of %s and %s exists", types.ErrCorruptedState, vectorsFile, mappingsFile)
	case vecErr != nil:
		return nil, fmt.Errorf("failed to read %s: %w", vecPath, vecErr)
	case mapErr != nil:
		return nil, fmt.Errorf("failed to read %s: %w", mapPath, mapErr)
	}

	var m mappings
	if err := json.Unmarshal(mapData, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid mappings file: %v", types.ErrCorruptedState, err)
	}

	vectors, err := decodeVectors(vecData, m.Dimension)
	if err != nil {
		return nil, err
	}
	count := int64(len(vectors))
	if count != int64(len(m.ChunkToSlot)) || count != m.NextSlot {
		return nil, fmt.Errorf("%w: vector count %d does not match mappings (%d chunks, next slot %d)",
			types.ErrCorruptedState, count, len(m.ChunkToSlot), m.NextSlot)
	}

	store, err := NewStore(m.Kind, m.Dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCorruptedState, err)
	}

	slotToChunk := make(map[int64]types.ChunkID, len(m.ChunkToSlot))
	for chunkID, slot := range m.ChunkToSlot {
		if slot < 0 || slot >= count {
			return nil, fmt.Errorf("%w: slot %d out of range", types.ErrCorruptedState, slot)
		}
		if _, dup := slotToChunk[slot]; dup {
			return nil, fmt.Errorf("%w: slot %d mapped twice", types.ErrCorruptedState, slot)
		}
		slotToChunk[slot] = types.ChunkID(chunkID)
		store.chunkToSlot[types.ChunkID(chunkID)] = slot
	}
	store.slotToChunk = slotToChunk

	// Rebuild the backend by re-inserting in slot order. Vectors were
	// normalized before the original insert, so they go in unchanged.
	for slot := int64(0); slot < count; slot++ {
		if got := store.index.add(vectors[slot]); got != slot {
			return nil, fmt.Errorf("%w: rebuild slot mismatch at %d", types.ErrCorruptedState, slot)
		}
	}
	store.nextSlot = count
	return store, nil
}

func decodeVectors(data []byte, dimension int) ([][]float32, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != vectorsMagic {
		return nil, fmt.Errorf("%w: bad vector file magic", types.ErrCorruptedState)
	}
	var version, dim uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil || version != vectorsVersion {
		return nil, fmt.Errorf("%w: unsupported vector file version", types.ErrCorruptedState)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil || int(dim) != dimension {
		return nil, fmt.Errorf("%w: vector file dimension does not match mappings", types.ErrCorruptedState)
	}
	var count int64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil || count < 0 {
		return nil, fmt.Errorf("%w: invalid vector count", types.ErrCorruptedState)
	}

	expected := count * int64(dimension) * 4
	if int64(r.Len()) != expected {
		return nil, fmt.Errorf("%w: vector file truncated (%d bytes, want %d)", types.ErrCorruptedState, r.Len(), expected)
	}

	vectors := make([][]float32, count)
	for i := int64(0); i < count; i++ {
		vec := make([]float32, dimension)
		for d := 0; d < dimension; d++ {
			var bits uint32
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, fmt.Errorf("%w: vector file truncated", types.ErrCorruptedState)
			}
			vec[d] = math.Float32frombits(bits)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
