package orchestrator

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m-mizutani/convene/pkg/knowledge"
	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Action is what a plan step asks its target to do
type Action string

const (
	ActionResearch             Action = "research"
	ActionAnalyze              Action = "analyze"
	ActionRetrieveConversation Action = "retrieve_conversation"
)

// Step is one unit of an execution plan
type Step struct {
	// Index is the 1-based position in the plan
	Index  int         `json:"index"`
	Target model.Agent `json:"target"`
	Action Action      `json:"action"`
	Reason string      `json:"reason"`

	Topic        string             `json:"topic,omitempty"`
	AnalysisType model.AnalysisType `json:"analysis_type,omitempty"`

	// DependsOn only holds indices lower than Index
	DependsOn []int `json:"depends_on,omitempty"`
}

// Params returns the step parameters as sent to the collaborator
func (s Step) Params() map[string]any {
	params := map[string]any{"reason": s.Reason}
	if s.Topic != "" {
		params["topic"] = s.Topic
	}
	if s.AnalysisType != "" {
		params["analysis_type"] = string(s.AnalysisType)
	}
	return params
}

// Plan is an ordered list of steps. Steps are only appended, so a step can
// depend on nothing but earlier steps.
type Plan struct {
	Steps []Step `json:"steps"`
}

func (p *Plan) add(step Step) {
	step.Index = len(p.Steps) + 1
	p.Steps = append(p.Steps, step)
}

// Validate checks index continuity and that dependencies point backwards
func (p *Plan) Validate() error {
	for i, s := range p.Steps {
		if s.Index != i+1 {
			return goerr.New("step index out of order", goerr.V("position", i+1), goerr.V("index", s.Index))
		}
		for _, dep := range s.DependsOn {
			if dep < 1 || dep >= s.Index {
				return goerr.New("step depends on a later or unknown step",
					goerr.V("index", s.Index),
					goerr.V("depends_on", dep))
			}
		}
	}
	return nil
}

// Summary renders the step targets joined by arrows
func (p *Plan) Summary() string {
	targets := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		targets[i] = string(s.Target)
	}
	return strings.Join(targets, " -> ")
}

// IsMemoryOnly reports whether the plan is the single conversation retrieval step
func (p *Plan) IsMemoryOnly() bool {
	return len(p.Steps) == 1 && p.Steps[0].Target == model.AgentMemory
}

const (
	maxResearchTopics  = 2
	maxFallbackWords   = 3
	minFallbackWordLen = 4

	// HighConfidence is the mean memory score above which a simple query skips research
	HighConfidence = 0.8
)

var stopWords = map[string]struct{}{
	"what": {}, "are": {}, "the": {}, "is": {}, "a": {}, "an": {}, "how": {}, "why": {}, "about": {},
}

// analysisRules are checked in order; the first rule with a matching keyword wins
var analysisRules = []struct {
	keywords []string
	typ      model.AnalysisType
}{
	{[]string{"compare", "comparison"}, model.AnalysisTypeComparison},
	{[]string{"trade-off", "tradeoffs"}, model.AnalysisTypeTradeOffs},
	{[]string{"methodology", "methods"}, model.AnalysisTypeMethodology},
	{[]string{"challenge", "challenges"}, model.AnalysisTypeChallenges},
	{[]string{"analyze", "analysis"}, model.AnalysisTypeSynthesis},
}

// planner builds execution plans from the topic keyword table
type planner struct {
	topics []knowledge.TopicKeywords
}

// MemoryDecision tells why research was or was not skipped
type MemoryDecision struct {
	Hits           int
	MeanScore      float64
	SkipResearch   bool
	ResearchTopics []string
}

func (p *planner) plan(query string, complexity model.Complexity, memory []*model.ScoredRecord) (*Plan, MemoryDecision) {
	q := strings.ToLower(query)
	plan := &Plan{}
	var decision MemoryDecision

	if containsAny(q, memoryKeywords) {
		plan.add(Step{
			Target: model.AgentMemory,
			Action: ActionRetrieveConversation,
			Reason: "Query asks about previous conversation",
		})
		return plan, decision
	}

	decision.ResearchTopics = p.extractTopics(q)
	decision.Hits = len(memory)
	if len(memory) > 0 {
		var sum float64
		for _, m := range memory {
			sum += m.Score
		}
		decision.MeanScore = sum / float64(len(memory))
		decision.SkipResearch = decision.MeanScore > HighConfidence && complexity == model.ComplexitySimple
	}

	if !decision.SkipResearch {
		for _, topic := range decision.ResearchTopics {
			plan.add(Step{
				Target: model.AgentResearch,
				Action: ActionResearch,
				Topic:  topic,
				Reason: fmt.Sprintf("Retrieve information about %s", topic),
			})
		}
	}

	if complexity.NeedsAnalysis() {
		typ := analysisTypeOf(q)
		deps := make([]int, 0, len(plan.Steps))
		for _, s := range plan.Steps {
			deps = append(deps, s.Index)
		}
		plan.add(Step{
			Target:       model.AgentAnalysis,
			Action:       ActionAnalyze,
			AnalysisType: typ,
			Reason:       fmt.Sprintf("Perform %s analysis on research results", typ),
			DependsOn:    deps,
		})
	}

	return plan, decision
}

// extractTopics matches the lowercased query against the topic table, falling
// back to the leading content words of the query
func (p *planner) extractTopics(q string) []string {
	var topics []string
	for _, tk := range p.topics {
		for _, kw := range tk.Keywords {
			if containsAtWordStart(q, kw) {
				topics = append(topics, tk.Topic)
				break
			}
		}
		if len(topics) == maxResearchTopics {
			return topics
		}
	}
	if len(topics) > 0 {
		return topics
	}

	var words []string
	for _, field := range strings.Fields(q) {
		w := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if _, stop := stopWords[w]; stop || utf8.RuneCountInString(w) < minFallbackWordLen {
			continue
		}
		words = append(words, w)
		if len(words) == maxFallbackWords {
			break
		}
	}
	if len(words) == 0 {
		return nil
	}
	return []string{strings.Join(words, " ")}
}

func analysisTypeOf(q string) model.AnalysisType {
	for _, rule := range analysisRules {
		if containsAny(q, rule.keywords) {
			return rule.typ
		}
	}
	return model.AnalysisTypeGeneral
}

// containsAtWordStart reports whether kw occurs in s starting at a word boundary
func containsAtWordStart(s, kw string) bool {
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], kw)
		if i < 0 {
			return false
		}
		pos := offset + i
		if pos == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:pos])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		offset = pos + 1
	}
	return false
}
