package orchestrator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/m-mizutani/convene/pkg/model"
)

const (
	NoMemoryResponse       = "I don't have any relevant information from our previous conversations."
	InsufficientResponse   = "I don't have enough information to provide a comprehensive answer to your query."
	memoryHeading          = "Based on our previous conversation:\n"
	memoryContextHeading   = "Building on our previous discussion and new research:\n"
	maxRecalledMemories    = 3
	maxRecalledContentRune = 200
)

// Synthesize assembles the response text from step results. The output only
// depends on its inputs.
func (o *Orchestrator) Synthesize(results []*Result, memory []*model.ScoredRecord) string {
	if len(results) == 1 && results[0].Step.Action == ActionRetrieveConversation {
		if len(results[0].Memories) == 0 {
			return NoMemoryResponse
		}
		return recall(results[0].Memories)
	}

	var research []model.ResearchRecord
	var analyses []*Result
	for _, r := range results {
		research = append(research, r.Research...)
		if r.Step.Action == ActionAnalyze {
			analyses = append(analyses, r)
		}
	}

	var parts []string
	if len(research) > 0 {
		if len(memory) > 0 {
			parts = append(parts, memoryContextHeading)
		}
		for i, rec := range research {
			parts = append(parts,
				fmt.Sprintf("\n%d. %s:", i+1, titleCase(rec.Topic)),
				"   "+rec.Summary,
			)
			if rec.Details != "" && rec.Details != rec.Summary {
				parts = append(parts, "   "+rec.Details)
			}
		}
	}

	for _, r := range analyses {
		if r.Failed() || r.Analysis == nil {
			parts = append(parts, "\n\nAnalysis (error):")
			continue
		}
		parts = append(parts, fmt.Sprintf("\n\nAnalysis (%s):", r.Analysis.Kind()))
		parts = append(parts, renderAnalysis(r.Analysis)...)
	}

	if len(parts) == 0 {
		return InsufficientResponse
	}
	return strings.Join(parts, "\n")
}

func recall(records []*model.MemoryRecord) string {
	parts := []string{memoryHeading}
	for i, rec := range records {
		if i == maxRecalledMemories {
			break
		}
		if topic := rec.Topic(); topic != "" {
			parts = append(parts, fmt.Sprintf("\n%d. Regarding %s:", i+1, topic))
		}
		parts = append(parts, "   "+truncate(rec.Content, maxRecalledContentRune))
	}
	return strings.Join(parts, "\n")
}

func renderAnalysis(a model.Analysis) []string {
	var parts []string
	switch v := a.(type) {
	case *model.ComparisonAnalysis:
		if v.Insufficient {
			return []string{"\n" + v.Note}
		}
		for _, c := range v.Comparisons {
			parts = append(parts, fmt.Sprintf("\n- %s: %s", c.Approach, c.Description))
		}
		if v.Recommendation != "" {
			parts = append(parts, "\nRecommendation: "+v.Recommendation)
		}

	case *model.TradeOffAnalysis:
		for _, t := range v.TradeOffs {
			parts = append(parts,
				fmt.Sprintf("\n- %s:", t.Approach),
				"  Advantages: "+strings.Join(t.Advantages, ", "),
				"  Disadvantages: "+strings.Join(t.Disadvantages, ", "),
			)
		}

	case *model.ChallengeAnalysis:
		for _, area := range v.ByArea {
			parts = append(parts, fmt.Sprintf("\n- %s: %s", area.Area, strings.Join(area.Challenges, ", ")))
		}
		if len(v.CommonChallenges) > 0 {
			parts = append(parts, "\nCommon challenges: "+strings.Join(v.CommonChallenges, ", "))
		}

	case *model.MethodologyAnalysis:
		parts = appendSummary(parts, v.Summary)
	case *model.SynthesisAnalysis:
		parts = appendSummary(parts, v.Summary)
	case *model.GeneralAnalysis:
		parts = appendSummary(parts, v.Summary)
	}
	return parts
}

func appendSummary(parts []string, summary string) []string {
	if summary == "" {
		return parts
	}
	return append(parts, "\n"+summary)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
