package orchestrator

import (
	"strings"

	"github.com/m-mizutani/convene/pkg/model"
)

var (
	memoryKeywords = []string{
		"earlier", "previous", "before", "discussed", "we talked", "mentioned", "said",
	}

	complexKeywords = []string{
		"compare", "analyze", "evaluate", "research and", "find and", "identify and",
		"synthesize", "trade-offs", "trade-off", "advantages and disadvantages", "pros and cons",
	}

	mediumKeywords = []string{
		"explain", "describe", "how", "why", "relationship", "difference", "similarity", "methodology",
	}
)

// Classify rates a query. Rules are evaluated in priority order and the first
// match wins; a memory reference always makes the query simple.
func Classify(query string) model.Complexity {
	q := strings.ToLower(query)

	switch {
	case containsAny(q, memoryKeywords):
		return model.ComplexitySimple
	case containsAny(q, complexKeywords):
		return model.ComplexityComplex
	case containsAny(q, mediumKeywords):
		return model.ComplexityMedium
	case strings.Count(query, "?") > 1 || strings.Count(query, ",") > 2:
		return model.ComplexityComplex
	default:
		return model.ComplexitySimple
	}
}

// IsMemoryQuery reports whether the query refers to an earlier conversation
func IsMemoryQuery(query string) bool {
	return containsAny(strings.ToLower(query), memoryKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
