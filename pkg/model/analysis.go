package model

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidAnalysisType = goerr.New("invalid analysis type")
)

// ResearchRecord is one fact returned by a research provider
type ResearchRecord struct {
	Topic      string  `json:"topic" yaml:"topic"`
	Summary    string  `json:"summary" yaml:"summary"`
	Details    string  `json:"details" yaml:"details"`
	Source     string  `json:"source" yaml:"source"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// AnalysisType is the kind of analysis requested from a reasoner
type AnalysisType string

const (
	AnalysisTypeComparison  AnalysisType = "comparison"
	AnalysisTypeTradeOffs   AnalysisType = "trade_offs"
	AnalysisTypeMethodology AnalysisType = "methodology"
	AnalysisTypeChallenges  AnalysisType = "challenges"
	AnalysisTypeSynthesis   AnalysisType = "synthesis"
	AnalysisTypeGeneral     AnalysisType = "general"
)

// Validate checks if the analysis type is valid
func (t AnalysisType) Validate() error {
	switch t {
	case AnalysisTypeComparison, AnalysisTypeTradeOffs, AnalysisTypeMethodology,
		AnalysisTypeChallenges, AnalysisTypeSynthesis, AnalysisTypeGeneral:
		return nil
	default:
		return goerr.Wrap(ErrInvalidAnalysisType, "unknown analysis type", goerr.V("type", string(t)))
	}
}

// AnalysisKind labels an analysis result. It differs from AnalysisType for
// trade-offs, methodology, challenges and general.
type AnalysisKind string

const (
	AnalysisKindComparison  AnalysisKind = "comparison"
	AnalysisKindTradeOff    AnalysisKind = "trade_off_analysis"
	AnalysisKindMethodology AnalysisKind = "methodology_analysis"
	AnalysisKindChallenge   AnalysisKind = "challenge_identification"
	AnalysisKindSynthesis   AnalysisKind = "synthesis"
	AnalysisKindGeneral     AnalysisKind = "general_analysis"
)

// Analysis is the result of a reasoner. The set of implementations is closed.
type Analysis interface {
	Kind() AnalysisKind
	Confidence() float64
	analysis()
}

// ComparedItem is one approach of a comparison
type ComparedItem struct {
	Approach    string `json:"approach"`
	Description string `json:"description"`
	Analysis    string `json:"analysis"`
}

type ComparisonAnalysis struct {
	// Insufficient is set when fewer than two records were given; only Note is filled then.
	Insufficient   bool           `json:"insufficient,omitempty"`
	Note           string         `json:"comparison,omitempty"`
	ItemsCompared  int            `json:"items_compared"`
	Comparisons    []ComparedItem `json:"comparisons"`
	Recommendation string         `json:"recommendation,omitempty"`
	Score          float64        `json:"confidence"`
}

type TradeOff struct {
	Approach      string   `json:"approach"`
	Advantages    []string `json:"advantages"`
	Disadvantages []string `json:"disadvantages"`
	Summary       string   `json:"summary"`
}

type TradeOffAnalysis struct {
	TradeOffs         []TradeOff `json:"tradeoffs"`
	OverallConclusion string     `json:"overall_conclusion"`
	Score             float64    `json:"confidence"`
}

type Methodology struct {
	Topic       string   `json:"topic"`
	Methods     []string `json:"methods_identified"`
	Description string   `json:"description"`
}

type MethodologyAnalysis struct {
	Methodologies    []Methodology `json:"methodologies"`
	CommonApproaches []string      `json:"common_approaches"`
	Summary          string        `json:"summary"`
	Score            float64       `json:"confidence"`
}

type AreaChallenges struct {
	Area       string   `json:"area"`
	Challenges []string `json:"challenges"`
}

type ChallengeAnalysis struct {
	ByArea           []AreaChallenges `json:"challenges_by_area"`
	CommonChallenges []string         `json:"common_challenges"`
	Score            float64          `json:"confidence"`
}

type SynthesisAnalysis struct {
	KeyPoints []string `json:"key_points"`
	Synthesis string   `json:"synthesis"`
	Sources   []string `json:"sources_consulted"`
	Summary   string   `json:"summary"`
	Score     float64  `json:"confidence"`
}

type Insight struct {
	Topic      string  `json:"topic"`
	Insight    string  `json:"insight"`
	Confidence float64 `json:"confidence"`
}

type GeneralAnalysis struct {
	Insights []Insight `json:"insights"`
	Summary  string    `json:"summary"`
	Score    float64   `json:"confidence"`
}

func (a *ComparisonAnalysis) Kind() AnalysisKind  { return AnalysisKindComparison }
func (a *TradeOffAnalysis) Kind() AnalysisKind    { return AnalysisKindTradeOff }
func (a *MethodologyAnalysis) Kind() AnalysisKind { return AnalysisKindMethodology }
func (a *ChallengeAnalysis) Kind() AnalysisKind   { return AnalysisKindChallenge }
func (a *SynthesisAnalysis) Kind() AnalysisKind   { return AnalysisKindSynthesis }
func (a *GeneralAnalysis) Kind() AnalysisKind     { return AnalysisKindGeneral }

func (a *ComparisonAnalysis) Confidence() float64  { return a.Score }
func (a *TradeOffAnalysis) Confidence() float64    { return a.Score }
func (a *MethodologyAnalysis) Confidence() float64 { return a.Score }
func (a *ChallengeAnalysis) Confidence() float64   { return a.Score }
func (a *SynthesisAnalysis) Confidence() float64   { return a.Score }
func (a *GeneralAnalysis) Confidence() float64     { return a.Score }

func (*ComparisonAnalysis) analysis()  {}
func (*TradeOffAnalysis) analysis()    {}
func (*MethodologyAnalysis) analysis() {}
func (*ChallengeAnalysis) analysis()   {}
func (*SynthesisAnalysis) analysis()   {}
func (*GeneralAnalysis) analysis()     {}
