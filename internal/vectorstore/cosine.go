package vectorstore

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"github.com/ppiankov/labkit/internal/model"
)

var errDimensionMismatch = errors.New("embedding dimension mismatch")

// cosineDistance returns 1 - cos(a, b). A zero vector is at distance 1
// from everything.
func cosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errDimensionMismatch
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// topK sorts by ascending distance (ties by ID) and keeps at most k results
func topK(results []model.SearchResult, k int) []model.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance == results[j].Distance {
			return results[i].ID < results[j].ID
		}
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// encodeEmbedding packs a vector as little-endian float32s
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.New("embedding blob length is not a multiple of 4")
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
