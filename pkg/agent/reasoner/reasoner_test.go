package reasoner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/convene/pkg/agent/reasoner"
	"github.com/m-mizutani/convene/pkg/knowledge"
	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/gt"
)

func records(t *testing.T, topics ...string) []model.ResearchRecord {
	t.Helper()
	base := knowledge.Default()
	out := make([]model.ResearchRecord, 0, len(topics))
	for _, topic := range topics {
		e, ok := base.Get(topic)
		gt.True(t, ok)
		out = append(out, e.Record())
	}
	return out
}

func analyze[T model.Analysis](t *testing.T, recs []model.ResearchRecord, typ model.AnalysisType) T {
	t.Helper()
	result, err := reasoner.New().Analyze(context.Background(), "test task", recs, typ)
	gt.NoError(t, err)
	typed, ok := result.(T)
	gt.True(t, ok)
	return typed
}

func TestComparison(t *testing.T) {
	t.Run("recommends highest confidence", func(t *testing.T) {
		recs := records(t, "convolutional neural networks", "recurrent neural networks")
		result := analyze[*model.ComparisonAnalysis](t, recs, model.AnalysisTypeComparison)

		gt.False(t, result.Insufficient)
		gt.Equal(t, result.Confidence(), 0.85)
		gt.Equal(t, result.ItemsCompared, 2)
		gt.A(t, result.Comparisons).Length(2)
		gt.Equal(t, result.Comparisons[0].Approach, "convolutional neural networks")
		gt.Equal(t, result.Recommendation,
			"Based on the analysis, convolutional neural networks appears most suitable due to its strong foundation and proven effectiveness in the domain.")
	})

	t.Run("single record is insufficient", func(t *testing.T) {
		result := analyze[*model.ComparisonAnalysis](t, records(t, "transformers"), model.AnalysisTypeComparison)
		gt.True(t, result.Insufficient)
		gt.Equal(t, result.Confidence(), 0.3)
		gt.Equal(t, result.Note, "Insufficient data for comparison")
		gt.A(t, result.Comparisons).Length(0)
	})

	t.Run("unnamed items are numbered", func(t *testing.T) {
		recs := []model.ResearchRecord{{Summary: "a"}, {Summary: "b", Confidence: 0.4}}
		result := analyze[*model.ComparisonAnalysis](t, recs, model.AnalysisTypeComparison)
		gt.Equal(t, result.Comparisons[1].Approach, "Item 2")
	})
}

func TestTradeOffs(t *testing.T) {
	result := analyze[*model.TradeOffAnalysis](t, records(t, "transformers", "recurrent neural networks"), model.AnalysisTypeTradeOffs)
	gt.Equal(t, result.Kind(), model.AnalysisKindTradeOff)
	gt.Equal(t, result.Confidence(), 0.80)
	gt.A(t, result.TradeOffs).Length(2)

	tr := result.TradeOffs[0]
	gt.Equal(t, tr.Advantages, []string{
		"excellent performance on NLP tasks",
		"transformers shows strong performance in specific areas",
	})
	gt.Equal(t, tr.Disadvantages, []string{
		"computationally expensive and require large amounts of training data. Examples include BERT, GPT, and T5.",
		"transformers has resource requirements",
	})

	rnn := result.TradeOffs[1]
	gt.Equal(t, rnn.Advantages[0], "good for sequential data")
	gt.Equal(t, rnn.Disadvantages, []string{"slower to train than Transformers and can struggle with long-range dependencies."})
	gt.S(t, result.OverallConclusion).Contains("Analysis of 2 approaches")
}

func TestTradeOffsDefaults(t *testing.T) {
	recs := []model.ResearchRecord{{Topic: "x", Details: "plain text"}}
	result := analyze[*model.TradeOffAnalysis](t, recs, model.AnalysisTypeTradeOffs)
	gt.Equal(t, result.TradeOffs[0].Advantages, []string{"Specific strengths in domain"})
	gt.Equal(t, result.TradeOffs[0].Disadvantages, []string{"Resource considerations"})
}

func TestMethodology(t *testing.T) {
	result := analyze[*model.MethodologyAnalysis](t, records(t, "reinforcement learning", "deep learning"), model.AnalysisTypeMethodology)
	gt.Equal(t, result.Confidence(), 0.78)
	gt.Equal(t, result.Methodologies[0].Methods, []string{"DQN", "PPO", "Policy Gradient"})
	gt.Equal(t, result.Methodologies[1].Methods, []string{"Domain-specific approaches"})
	gt.Equal(t, result.CommonApproaches, []string{"DQN", "PPO", "Policy Gradient"})
	gt.S(t, result.Summary).Contains("DQN, PPO, Policy Gradient")
}

func TestChallenges(t *testing.T) {
	result := analyze[*model.ChallengeAnalysis](t, records(t, "reinforcement learning", "transformers"), model.AnalysisTypeChallenges)
	gt.Equal(t, result.Kind(), model.AnalysisKindChallenge)
	gt.Equal(t, result.Confidence(), 0.83)

	gt.Equal(t, result.ByArea[0].Area, "reinforcement learning")
	gt.Equal(t, result.ByArea[0].Challenges, []string{
		"sample efficiency",
		"exploration vs exploitation trade-off",
		"and credit assignment problem",
	})
	gt.Equal(t, result.ByArea[1].Challenges, []string{
		"Data requirements and availability",
		"Computational resource requirements",
	})
	gt.Equal(t, result.CommonChallenges, []string{
		"sample efficiency",
		"exploration vs exploitation trade-off",
		"and credit assignment problem",
	})
}

func TestChallengesCommonByCount(t *testing.T) {
	recs := []model.ResearchRecord{
		{Topic: "a", Details: "needs data"},
		{Topic: "b", Details: "complex and data hungry"},
		{Topic: "c", Details: "nothing notable"},
	}
	result := analyze[*model.ChallengeAnalysis](t, recs, model.AnalysisTypeChallenges)
	gt.Equal(t, result.ByArea[2].Challenges, []string{"Implementation considerations"})
	gt.Equal(t, result.CommonChallenges[0], "Data requirements and availability")
}

func TestSynthesisAndGeneral(t *testing.T) {
	recs := records(t, "machine learning", "deep learning")

	syn := analyze[*model.SynthesisAnalysis](t, recs, model.AnalysisTypeSynthesis)
	gt.Equal(t, syn.Confidence(), 0.82)
	gt.A(t, syn.KeyPoints).Length(2)
	gt.S(t, syn.KeyPoints[0]).Contains("machine learning: Machine learning enables")
	gt.Equal(t, syn.Sources, []string{"ML Textbooks", "Deep Learning Literature"})
	gt.S(t, syn.Summary).Contains("2 findings")

	gen := analyze[*model.GeneralAnalysis](t, recs, model.AnalysisTypeGeneral)
	gt.Equal(t, gen.Confidence(), 0.80)
	gt.Equal(t, gen.Summary, "Analyzed 2 information sources")
	gt.Equal(t, gen.Insights[1].Confidence, 0.94)
}

func TestEmptyRecords(t *testing.T) {
	gen := analyze[*model.GeneralAnalysis](t, nil, model.AnalysisTypeGeneral)
	gt.Equal(t, gen.Summary, "Analyzed 0 information sources")

	meth := analyze[*model.MethodologyAnalysis](t, nil, model.AnalysisTypeMethodology)
	gt.Equal(t, meth.CommonApproaches, []string{"Various domain-specific methods"})

	ch := analyze[*model.ChallengeAnalysis](t, nil, model.AnalysisTypeChallenges)
	gt.Equal(t, ch.CommonChallenges, []string{"Implementation and resource considerations"})
}

func TestInvalidType(t *testing.T) {
	_, err := reasoner.New().Analyze(context.Background(), "", nil, model.AnalysisType("astrology"))
	gt.True(t, errors.Is(err, model.ErrInvalidAnalysisType))
}
