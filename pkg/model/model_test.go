package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestCategoryValidate(t *testing.T) {
	for _, c := range model.Categories {
		gt.NoError(t, c.Validate())
	}

	err := model.Category("episodic").Validate()
	gt.True(t, errors.Is(err, model.ErrInvalidCategory))

	// "all" is a filter, not a storable category
	gt.True(t, errors.Is(model.CategoryAll.Validate(), model.ErrInvalidCategory))
	gt.NoError(t, model.CategoryAll.ValidateFilter())
}

func TestCategoryMatch(t *testing.T) {
	gt.True(t, model.CategoryAll.Match(model.CategoryKnowledge))
	gt.True(t, model.CategoryKnowledge.Match(model.CategoryKnowledge))
	gt.False(t, model.CategoryConversation.Match(model.CategoryKnowledge))
}

func TestNewRecordID(t *testing.T) {
	gt.Equal(t, model.NewRecordID(0), model.RecordID("mem_0"))
	gt.Equal(t, model.NewRecordID(42), model.RecordID("mem_42"))
}

func TestMetadata(t *testing.T) {
	md := model.NewMetadata(
		model.MetaTopic, "transformers",
		model.MetaConfidence, 0.92,
		model.MetaAgent, "ResearchAgent",
	)

	t.Run("keeps insertion order", func(t *testing.T) {
		gt.Equal(t, md.Keys(), []string{"topic", "confidence", "agent"})
	})

	t.Run("string accessor", func(t *testing.T) {
		gt.Equal(t, md.String(model.MetaTopic), "transformers")
		gt.Equal(t, md.String(model.MetaConfidence), "0.92")
		gt.Equal(t, md.String("missing"), "")
	})

	t.Run("With replaces in place and does not mutate receiver", func(t *testing.T) {
		updated := md.With(model.MetaTopic, "rnn")
		gt.Equal(t, updated.String(model.MetaTopic), "rnn")
		gt.Equal(t, md.String(model.MetaTopic), "transformers")
		gt.Equal(t, updated.Keys(), md.Keys())
	})

	t.Run("json keeps order", func(t *testing.T) {
		raw, err := json.Marshal(md)
		gt.NoError(t, err)
		gt.Equal(t, string(raw), `{"topic":"transformers","confidence":0.92,"agent":"ResearchAgent"}`)

		var decoded model.Metadata
		gt.NoError(t, json.Unmarshal(raw, &decoded))
		gt.Equal(t, decoded.Keys(), md.Keys())
		gt.Equal(t, decoded.String(model.MetaAgent), "ResearchAgent")
	})

	t.Run("rejects non-object json", func(t *testing.T) {
		var decoded model.Metadata
		gt.Error(t, json.Unmarshal([]byte(`[1,2]`), &decoded))
	})

	t.Run("Clone copies nested values", func(t *testing.T) {
		nested := map[string]any{"tags": []any{"a", "b"}}
		sources := []string{"papers"}
		orig := model.NewMetadata("nested", nested, "sources", sources)

		cloned := orig.Clone()
		nested["tags"].([]any)[0] = "changed"
		nested["extra"] = true
		sources[0] = "changed"

		v, ok := cloned.Get("nested")
		gt.True(t, ok)
		copied := v.(map[string]any)
		gt.Equal(t, copied["tags"].([]any)[0], any("a"))
		_, found := copied["extra"]
		gt.False(t, found)

		s, ok := cloned.Get("sources")
		gt.True(t, ok)
		gt.Equal(t, s.([]string)[0], "papers")
	})
}

func TestAnalysisTypeValidate(t *testing.T) {
	gt.NoError(t, model.AnalysisTypeComparison.Validate())
	gt.NoError(t, model.AnalysisTypeGeneral.Validate())
	gt.True(t, errors.Is(model.AnalysisType("poetry").Validate(), model.ErrInvalidAnalysisType))
}

func TestAnalysisKinds(t *testing.T) {
	testCases := []struct {
		analysis model.Analysis
		kind     model.AnalysisKind
	}{
		{&model.ComparisonAnalysis{Score: 0.85}, model.AnalysisKindComparison},
		{&model.TradeOffAnalysis{Score: 0.8}, model.AnalysisKindTradeOff},
		{&model.MethodologyAnalysis{Score: 0.78}, model.AnalysisKindMethodology},
		{&model.ChallengeAnalysis{Score: 0.83}, model.AnalysisKindChallenge},
		{&model.SynthesisAnalysis{Score: 0.82}, model.AnalysisKindSynthesis},
		{&model.GeneralAnalysis{Score: 0.8}, model.AnalysisKindGeneral},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			gt.Equal(t, tc.analysis.Kind(), tc.kind)
			gt.True(t, tc.analysis.Confidence() > 0)
		})
	}
}

func TestMessageReply(t *testing.T) {
	msg := model.NewMessage(model.AgentCoordinator, model.AgentMemory, model.MessageTypeRetrieve, nil)
	gt.NotEqual(t, msg.ID, model.MessageID(""))
	gt.True(t, msg.Payload != nil)

	reply := msg.Reply(map[string]any{"status": "retrieved"})
	gt.Equal(t, reply.Sender, model.AgentMemory)
	gt.Equal(t, reply.Recipient, model.AgentCoordinator)
	gt.Equal(t, reply.Type, model.MessageTypeResponse)
	gt.NotEqual(t, reply.ID, msg.ID)
}
