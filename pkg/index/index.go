package index

import (
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/convene/pkg/model"
)

// Entry is one indexed vector
type Entry struct {
	ID     model.RecordID
	Vector []float64
}

// Hit is a search result of the index
type Hit struct {
	ID    model.RecordID
	Score float64
}

// Index is a flat (exhaustive) L2 nearest-neighbor index. Entries are only
// appended; Add never rebuilds existing vectors.
type Index struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []Entry
}

type Option func(*Index)

// WithEmbedder replaces the default HashEmbedder
func WithEmbedder(e Embedder) Option {
	return func(idx *Index) {
		idx.embedder = e
	}
}

// New creates an empty Index
func New(opts ...Option) *Index {
	idx := &Index{
		embedder: NewHashEmbedder(DefaultDimension),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Dimension returns the fixed vector size of every entry
func (x *Index) Dimension() int {
	return x.embedder.Dimension()
}

// Add embeds text and stores it under id
func (x *Index) Add(id model.RecordID, text string) {
	vec := x.embedder.Embed(text)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = append(x.entries, Entry{ID: id, Vector: vec})
}

// Len returns the number of stored vectors
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Search returns up to k entries nearest to text, highest score first. The
// score is 1/(1+d) for Euclidean distance d. Equal scores keep insertion order.
func (x *Index) Search(text string, k int) []Hit {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 || k <= 0 {
		return []Hit{}
	}
	if k > len(x.entries) {
		k = len(x.entries)
	}

	query := x.embedder.Embed(text)
	hits := make([]Hit, len(x.entries))
	for i, e := range x.entries {
		hits[i] = Hit{ID: e.ID, Score: Similarity(Distance(query, e.Vector))}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits[:k]
}

// Distance is the Euclidean distance of two vectors of equal length
func Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Similarity maps a distance into (0, 1]
func Similarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}
