package reasoner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/convene/pkg/utils/logging"
)

const (
	insufficientComparison = "Insufficient data for comparison"
	insufficientConfidence = 0.3
)

// methodKeywords are the method names recognized in record details, in report order
var methodKeywords = []string{
	"DQN", "PPO", "Q-Learning", "Policy Gradient",
	"LSTM", "GRU", "CNN", "RNN", "Transformer",
}

// Reasoner is a rule-based analyst over research records
type Reasoner struct{}

// New creates a Reasoner
func New() *Reasoner {
	return &Reasoner{}
}

// Analyze dispatches on analysisType. An invalid type is an error; an empty
// record set is not.
func (r *Reasoner) Analyze(ctx context.Context, task string, records []model.ResearchRecord, analysisType model.AnalysisType) (model.Analysis, error) {
	if err := analysisType.Validate(); err != nil {
		return nil, err
	}

	var result model.Analysis
	switch analysisType {
	case model.AnalysisTypeComparison:
		result = compare(records)
	case model.AnalysisTypeSynthesis:
		result = synthesize(records)
	case model.AnalysisTypeTradeOffs:
		result = tradeOffs(records)
	case model.AnalysisTypeMethodology:
		result = methodology(records)
	case model.AnalysisTypeChallenges:
		result = challenges(records)
	case model.AnalysisTypeGeneral:
		result = general(records)
	}

	logging.From(ctx).Debug("analysis finished",
		"task", task,
		"type", analysisType,
		"records", len(records),
		"confidence", result.Confidence(),
	)
	return result, nil
}

func compare(records []model.ResearchRecord) *model.ComparisonAnalysis {
	if len(records) < 2 {
		return &model.ComparisonAnalysis{
			Insufficient:  true,
			Note:          insufficientComparison,
			ItemsCompared: len(records),
			Score:         insufficientConfidence,
		}
	}

	items := make([]model.ComparedItem, len(records))
	best := records[0]
	for i, rec := range records {
		topic := rec.Topic
		if topic == "" {
			topic = fmt.Sprintf("Item %d", i+1)
		}
		items[i] = model.ComparedItem{
			Approach:    topic,
			Description: rec.Summary,
			Analysis:    rec.Details,
		}
		if rec.Confidence > best.Confidence {
			best = rec
		}
	}

	return &model.ComparisonAnalysis{
		ItemsCompared: len(records),
		Comparisons:   items,
		Recommendation: fmt.Sprintf("Based on the analysis, %s appears most suitable due to its strong foundation and proven effectiveness in the domain.",
			best.Topic),
		Score: 0.85,
	}
}

func synthesize(records []model.ResearchRecord) *model.SynthesisAnalysis {
	keyPoints := make([]string, 0, len(records))
	var sources []string
	seen := make(map[string]bool)
	for _, rec := range records {
		keyPoints = append(keyPoints, rec.Topic+": "+rec.Summary)
		source := rec.Source
		if source == "" {
			source = "Unknown"
		}
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}

	return &model.SynthesisAnalysis{
		KeyPoints: keyPoints,
		Synthesis: strings.Join(keyPoints, " "),
		Sources:   sources,
		Summary:   fmt.Sprintf("Synthesized %d findings from %d sources", len(keyPoints), len(sources)),
		Score:     0.82,
	}
}

func tradeOffs(records []model.ResearchRecord) *model.TradeOffAnalysis {
	out := make([]model.TradeOff, 0, len(records))
	for _, rec := range records {
		lower := strings.ToLower(rec.Details)
		var pros, cons []string

		if strings.Contains(lower, "trade-off") {
			if parts := strings.SplitN(rec.Details, "Trade-offs:", 2); len(parts) > 1 {
				text := parts[1]
				if halves := strings.Split(text, "but"); len(halves) > 1 {
					pros = append(pros, strings.TrimSpace(halves[0]))
					cons = append(cons, strings.TrimSpace(halves[1]))
				} else {
					cons = append(cons, strings.TrimSpace(text))
				}
			}
		}

		if strings.Contains(lower, "excellent") || strings.Contains(lower, "good") {
			pros = append(pros, rec.Topic+" shows strong performance in specific areas")
		}
		if strings.Contains(lower, "expensive") || strings.Contains(lower, "require") {
			cons = append(cons, rec.Topic+" has resource requirements")
		}

		if len(pros) == 0 {
			pros = []string{"Specific strengths in domain"}
		}
		if len(cons) == 0 {
			cons = []string{"Resource considerations"}
		}
		out = append(out, model.TradeOff{
			Approach:      rec.Topic,
			Advantages:    pros,
			Disadvantages: cons,
			Summary:       rec.Summary,
		})
	}

	return &model.TradeOffAnalysis{
		TradeOffs: out,
		OverallConclusion: fmt.Sprintf("Analysis of %d approaches reveals that each has specific strengths and limitations. "+
			"Selection should be based on specific use case requirements and available resources.", len(out)),
		Score: 0.80,
	}
}

func methodology(records []model.ResearchRecord) *model.MethodologyAnalysis {
	out := make([]model.Methodology, 0, len(records))
	var all []string
	for _, rec := range records {
		lower := strings.ToLower(rec.Details)
		var methods []string
		if strings.Contains(lower, "methods") || strings.Contains(lower, "algorithms") {
			for _, kw := range methodKeywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					methods = append(methods, kw)
				}
			}
		}
		if len(methods) == 0 {
			methods = []string{"Domain-specific approaches"}
		}
		all = append(all, methods...)
		out = append(out, model.Methodology{
			Topic:       rec.Topic,
			Methods:     methods,
			Description: rec.Summary,
		})
	}

	common := mostCommon(all, 3)
	if len(common) == 0 {
		common = []string{"Various domain-specific methods"}
	}
	return &model.MethodologyAnalysis{
		Methodologies:    out,
		CommonApproaches: common,
		Summary:          "Common approaches: " + strings.Join(common, ", "),
		Score:            0.78,
	}
}

func challenges(records []model.ResearchRecord) *model.ChallengeAnalysis {
	out := make([]model.AreaChallenges, 0, len(records))
	var all []string
	for _, rec := range records {
		lower := strings.ToLower(rec.Details)
		found := extractChallenges(rec.Details)

		if len(found) == 0 {
			if strings.Contains(lower, "data") {
				found = append(found, "Data requirements and availability")
			}
			if strings.Contains(lower, "computational") || strings.Contains(lower, "compute") {
				found = append(found, "Computational resource requirements")
			}
			if strings.Contains(lower, "complex") {
				found = append(found, "System complexity and implementation")
			}
		}
		if len(found) == 0 {
			found = []string{"Implementation considerations"}
		}
		all = append(all, found...)
		out = append(out, model.AreaChallenges{Area: rec.Topic, Challenges: found})
	}

	common := mostCommon(all, 3)
	if len(common) == 0 {
		common = []string{"Implementation and resource considerations"}
	}
	return &model.ChallengeAnalysis{
		ByArea:           out,
		CommonChallenges: common,
		Score:            0.83,
	}
}

// extractChallenges reads up to three items of a "Challenges ... include a, b, c" sentence
func extractChallenges(details string) []string {
	if !strings.Contains(strings.ToLower(details), "challenge") {
		return nil
	}
	parts := strings.SplitN(details, "Challenges", 2)
	if len(parts) < 2 {
		return nil
	}
	rest := strings.SplitN(parts[1], "include", 2)
	if len(rest) < 2 {
		return nil
	}

	items := strings.Split(rest[1], ",")
	if len(items) > 3 {
		items = items[:3]
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, strings.TrimRight(strings.TrimSpace(item), "."))
	}
	return out
}

func general(records []model.ResearchRecord) *model.GeneralAnalysis {
	insights := make([]model.Insight, 0, len(records))
	for _, rec := range records {
		insights = append(insights, model.Insight{
			Topic:      rec.Topic,
			Insight:    rec.Summary,
			Confidence: rec.Confidence,
		})
	}
	return &model.GeneralAnalysis{
		Insights: insights,
		Summary:  fmt.Sprintf("Analyzed %d information sources", len(records)),
		Score:    0.80,
	}
}

// mostCommon returns up to n values by descending count. Equal counts keep
// first-seen order.
func mostCommon(values []string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// Capabilities describes the reasoner
func (r *Reasoner) Capabilities() model.Capabilities {
	return model.Capabilities{
		Name: model.AgentAnalysis,
		Role: "Analysis and Reasoning",
		Capabilities: []string{
			"Compare different approaches",
			"Analyze trade-offs",
			"Synthesize information",
			"Identify challenges and methodologies",
			"Generate recommendations",
		},
		NoCapabilities: []string{
			"Cannot retrieve new information",
			"Cannot access external knowledge bases",
		},
	}
}
