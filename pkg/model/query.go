package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrEmptyQuery is returned for a blank query. A query that finds nothing is
	// not an error.
	ErrEmptyQuery = goerr.New("query is empty")
)

// Complexity is the classification of a query
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// NeedsAnalysis reports whether a plan for this complexity ends with an analysis step
func (c Complexity) NeedsAnalysis() bool {
	return c == ComplexityMedium || c == ComplexityComplex
}
