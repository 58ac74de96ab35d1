package index

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultDimension is the vector size of HashEmbedder when none is given
const DefaultDimension = 384

// Embedder converts text into a fixed-length vector
type Embedder interface {
	Embed(text string) []float64
	Dimension() int
}

// HashEmbedder is a bag-of-words sketch. Each token is hashed with FNV-1a into
// one of Dimension buckets, and the bucket counts are L2-normalized. Unrelated
// words may collide.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder. A non-positive dim falls back to DefaultDimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dimension() int { return e.dim }

// Embed returns a unit vector, or the zero vector when text has no tokens
func (e *HashEmbedder) Embed(text string) []float64 {
	vec := make([]float64, e.dim)
	for _, token := range Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dim)] += 1.0
	}
	normalize(vec)
	return vec
}

// Tokenize lowercases text, splits on whitespace and strips non-alphanumeric
// runes from every token. Empty tokens are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		token := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, f)
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

// CachedEmbedder memoizes another Embedder. Cached vectors are copied on the way
// out so callers can not alter the cache.
type CachedEmbedder struct {
	base  Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps base with a ristretto cache holding at most maxEntries vectors
func NewCachedEmbedder(base Embedder, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		return nil, goerr.New("cache size must be positive", goerr.V("max_entries", maxEntries))
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	return &CachedEmbedder{base: base, cache: cache}, nil
}

func (e *CachedEmbedder) Dimension() int { return e.base.Dimension() }

func (e *CachedEmbedder) Embed(text string) []float64 {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float64); ok {
			return append([]float64(nil), vec...)
		}
	}

	vec := e.base.Embed(text)
	e.cache.Set(text, append([]float64(nil), vec...), 1)
	return vec
}

// Wait blocks until pending cache writes are applied
func (e *CachedEmbedder) Wait() { e.cache.Wait() }

// Close releases the cache goroutines
func (e *CachedEmbedder) Close() { e.cache.Close() }
