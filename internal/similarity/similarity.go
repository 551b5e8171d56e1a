// Package similarity ranks embedded entries by cosine distance to a query vector.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultFloor is the similarity at or above which a match is considered relevant.
const DefaultFloor = 0.7

var (
	ErrEmptyCorpus       = errors.New("no academic sources found in database; load sources before searching")
	ErrDimensionMismatch = errors.New("query embedding dimension does not match corpus dimension")
)

type Entry struct {
	ID     int64
	Vector []float32
}

type Match struct {
	ID         int64
	Distance   float64
	Similarity float64
	AboveFloor bool
}

// Rank returns at most topK entries ordered by ascending cosine distance, ties
// broken by ascending ID. The floor only sets AboveFloor; it never drops matches.
func Rank(corpus []Entry, query []float32, topK int, floor float64) ([]Match, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	if topK <= 0 {
		return []Match{}, nil
	}
	for _, entry := range corpus {
		if len(entry.Vector) != len(query) {
			return nil, fmt.Errorf("%w: query has %d, entry %d has %d", ErrDimensionMismatch, len(query), entry.ID, len(entry.Vector))
		}
	}

	matches := make([]Match, 0, len(corpus))
	for _, entry := range corpus {
		distance := CosineDistance(query, entry.Vector)
		similarity := 1 - distance
		matches = append(matches, Match{
			ID:         entry.ID,
			Distance:   distance,
			Similarity: similarity,
			AboveFloor: similarity >= floor,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CosineDistance is 1 minus cosine similarity. Zero-magnitude vectors are at
// distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos
}

// Relevance formats a similarity as a percentage label, e.g. "Relevance score: 87.50%".
func Relevance(similarity float64) string {
	return fmt.Sprintf("Relevance score: %.2f%%", similarity*100)
}
