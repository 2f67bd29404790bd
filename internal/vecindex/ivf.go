package vecindex

// IVF clustering parameters.
const (
	ivfNList      = 100 // target number of clusters
	ivfNProbe     = 8   // clusters scanned per query
	ivfMinTrain   = 100 // vectors required before clustering
	ivfKMeansIter = 10
)

// ivfIndex partitions vectors into clusters and scans only the clusters
// nearest the query. Until enough vectors have accumulated to train the
// clustering, searches fall back to an exact scan.
type ivfIndex struct {
	dimension int
	vectors   [][]float32
	centroids [][]float32
	// lists[cluster] holds the slots assigned to that cluster. Empty
	// until the index is trained.
	lists [][]int64
}

func newIVFIndex(dimension int) *ivfIndex {
	return &ivfIndex{dimension: dimension}
}

func (iv *ivfIndex) trained() bool {
	return len(iv.centroids) > 0
}

// add stores the vector and, once enough vectors have accumulated, trains
// the clustering. Training happens here rather than in search so that
// search never writes and stays safe under the store's read lock.
func (iv *ivfIndex) add(vec []float32) int64 {
	slot := int64(len(iv.vectors))
	iv.vectors = append(iv.vectors, vec)
	switch {
	case iv.trained():
		c := iv.nearestCentroid(vec)
		iv.lists[c] = append(iv.lists[c], slot)
	case len(iv.vectors) >= ivfMinTrain:
		iv.train()
	}
	return slot
}

func (iv *ivfIndex) search(vec []float32, k int) []candidate {
	if !iv.trained() {
		return iv.scanSlots(vec, k, nil)
	}

	// Rank centroids, then scan the nprobe nearest lists.
	ranked := make([]candidate, 0, len(iv.centroids))
	for i, c := range iv.centroids {
		ranked = append(ranked, candidate{slot: int64(i), score: dotProduct(vec, c)})
	}
	sortCandidates(ranked)
	probes := ivfNProbe
	if probes > len(ranked) {
		probes = len(ranked)
	}

	var slots []int64
	for _, r := range ranked[:probes] {
		slots = append(slots, iv.lists[r.slot]...)
	}
	return iv.scanSlots(vec, k, slots)
}

// scanSlots brute-force scores the given slots, or every vector when
// slots is nil.
func (iv *ivfIndex) scanSlots(vec []float32, k int, slots []int64) []candidate {
	var candidates []candidate
	if slots == nil {
		candidates = make([]candidate, 0, len(iv.vectors))
		for slot, stored := range iv.vectors {
			candidates = append(candidates, candidate{slot: int64(slot), score: dotProduct(vec, stored)})
		}
	} else {
		candidates = make([]candidate, 0, len(slots))
		for _, slot := range slots {
			candidates = append(candidates, candidate{slot: slot, score: dotProduct(vec, iv.vectors[slot])})
		}
	}
	sortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func (iv *ivfIndex) nearestCentroid(vec []float32) int64 {
	best := int64(0)
	bestScore := dotProduct(vec, iv.centroids[0])
	for i := 1; i < len(iv.centroids); i++ {
		if s := dotProduct(vec, iv.centroids[i]); s > bestScore {
			best, bestScore = int64(i), s
		}
	}
	return best
}

// train runs k-means over the stored vectors and assigns every vector to
// its nearest centroid. Initial centroids are evenly spaced samples,
// which keeps training deterministic.
func (iv *ivfIndex) train() {
	n := len(iv.vectors)
	k := ivfNList
	if k > n {
		k = n
	}
	if k == 0 {
		return
	}

	centroids := make([][]float32, k)
	for i := 0; i < k; i++ {
		src := iv.vectors[i*n/k]
		c := make([]float32, len(src))
		copy(c, src)
		centroids[i] = c
	}

	assignments := make([]int, n)
	for iter := 0; iter < ivfKMeansIter; iter++ {
		changed := false
		for slot, vec := range iv.vectors {
			best, bestScore := 0, dotProduct(vec, centroids[0])
			for i := 1; i < k; i++ {
				if s := dotProduct(vec, centroids[i]); s > bestScore {
					best, bestScore = i, s
				}
			}
			if assignments[slot] != best {
				assignments[slot] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids as normalized member means. Empty
		// clusters keep their previous centroid.
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, iv.dimension)
		}
		for slot, vec := range iv.vectors {
			c := assignments[slot]
			counts[c]++
			for d, v := range vec {
				sums[c][d] += float64(v)
			}
		}
		for i := 0; i < k; i++ {
			if counts[i] == 0 {
				continue
			}
			mean := make([]float32, iv.dimension)
			for d := range mean {
				mean[d] = float32(sums[i][d] / float64(counts[i]))
			}
			centroids[i] = normalize(mean)
		}
	}

	iv.centroids = centroids
	iv.lists = make([][]int64, k)
	for slot, c := range assignments {
		iv.lists[c] = append(iv.lists[c], int64(slot))
	}
}

func (iv *ivfIndex) reconstruct(slot int64) []float32 {
	return iv.vectors[slot]
}

func (iv *ivfIndex) size() int {
	return len(iv.vectors)
}
