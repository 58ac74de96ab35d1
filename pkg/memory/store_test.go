package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/convene/pkg/memory"
	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/gt"
)

// tickingClock returns base, base+1s, base+2s, ...
func tickingClock() func() time.Time {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var n int
	return func() time.Time {
		t := base.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithClock(tickingClock()))

	md := model.NewMetadata(model.MetaTopic, "transformers", model.MetaSource, "NLP Research Papers")
	id, err := store.Store(ctx, model.CategoryKnowledge, "self-attention in parallel", md)
	gt.NoError(t, err)
	gt.Equal(t, id, model.RecordID("mem_0"))

	records, err := store.Retrieve(ctx, model.CategoryKnowledge, 10)
	gt.NoError(t, err)
	gt.A(t, records).Length(1)
	gt.Equal(t, records[0].ID, id)
	gt.Equal(t, records[0].Content, "self-attention in parallel")
	gt.Equal(t, records[0].Metadata, md)
	gt.Equal(t, records[0].Category, model.CategoryKnowledge)
}

func TestStoreIssuesMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	for i := 0; i < 5; i++ {
		id, err := store.Store(ctx, model.Categories[i%3], fmt.Sprintf("record %d", i), nil)
		gt.NoError(t, err)
		gt.Equal(t, id, model.NewRecordID(uint64(i)))
	}
}

func TestStoreRejectsInvalidCategory(t *testing.T) {
	store := memory.New()
	_, err := store.Store(context.Background(), model.Category("scratch"), "x", nil)
	gt.True(t, errors.Is(err, model.ErrInvalidCategory))

	_, err = store.Store(context.Background(), model.CategoryAll, "x", nil)
	gt.True(t, errors.Is(err, model.ErrInvalidCategory))
	gt.Equal(t, store.Stats().Total(), 0)
}

func TestStoreCapacity(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithCapacity(2))

	_, err := store.Store(ctx, model.CategoryConversation, "one", nil)
	gt.NoError(t, err)
	_, err = store.Store(ctx, model.CategoryKnowledge, "two", nil)
	gt.NoError(t, err)
	_, err = store.Store(ctx, model.CategoryConversation, "three", nil)
	gt.True(t, errors.Is(err, memory.ErrCapacityExceeded))

	stats := store.Stats()
	gt.Equal(t, stats.Total(), 2)
	gt.Equal(t, stats.IndexSize, 2)
}

func TestStoredRecordIsImmutable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	md := model.NewMetadata(model.MetaTopic, "rnn")
	_, err := store.Store(ctx, model.CategoryKnowledge, "hidden state", md)
	gt.NoError(t, err)
	md[0].Value = "changed by caller"

	records, err := store.Retrieve(ctx, model.CategoryAll, 1)
	gt.NoError(t, err)
	gt.Equal(t, records[0].Topic(), "rnn")

	records[0].Content = "changed by reader"
	records[0].Metadata[0].Value = "changed by reader"
	again, err := store.Retrieve(ctx, model.CategoryAll, 1)
	gt.NoError(t, err)
	gt.Equal(t, again[0].Content, "hidden state")
	gt.Equal(t, again[0].Topic(), "rnn")
}

func TestRetrieveOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("newest first", func(t *testing.T) {
		store := memory.New(memory.WithClock(tickingClock()))
		for i := 0; i < 4; i++ {
			_, err := store.Store(ctx, model.CategoryConversation, fmt.Sprintf("c%d", i), nil)
			gt.NoError(t, err)
		}

		records, err := store.Retrieve(ctx, model.CategoryConversation, 3)
		gt.NoError(t, err)
		gt.A(t, records).Length(3)
		gt.Equal(t, records[0].Content, "c3")
		gt.Equal(t, records[1].Content, "c2")
		gt.Equal(t, records[2].Content, "c1")
	})

	t.Run("equal timestamps keep insertion order", func(t *testing.T) {
		store := memory.New(memory.WithClock(fixedClock()))
		_, _ = store.Store(ctx, model.CategoryKnowledge, "k0", nil)
		_, _ = store.Store(ctx, model.CategoryConversation, "c0", nil)
		_, _ = store.Store(ctx, model.CategoryAgentState, "s0", model.NewMetadata(model.MetaAgent, "ResearchAgent"))
		_, _ = store.Store(ctx, model.CategoryKnowledge, "k1", nil)

		records, err := store.Retrieve(ctx, model.CategoryAll, 10)
		gt.NoError(t, err)
		gt.A(t, records).Length(4)
		gt.Equal(t, records[0].Content, "k0")
		gt.Equal(t, records[1].Content, "c0")
		gt.Equal(t, records[2].Content, "s0")
		gt.Equal(t, records[3].Content, "k1")
	})

	t.Run("filter by category", func(t *testing.T) {
		store := memory.New(memory.WithClock(tickingClock()))
		_, _ = store.Store(ctx, model.CategoryKnowledge, "k0", nil)
		_, _ = store.Store(ctx, model.CategoryConversation, "c0", nil)

		records, err := store.Retrieve(ctx, model.CategoryKnowledge, 10)
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
		gt.Equal(t, records[0].Content, "k0")
	})

	t.Run("idempotent without stores in between", func(t *testing.T) {
		store := memory.New(memory.WithClock(fixedClock()))
		for i := 0; i < 6; i++ {
			_, _ = store.Store(ctx, model.Categories[i%3], fmt.Sprintf("r%d", i), nil)
		}

		first, err := store.Retrieve(ctx, model.CategoryAll, 4)
		gt.NoError(t, err)
		second, err := store.Retrieve(ctx, model.CategoryAll, 4)
		gt.NoError(t, err)
		gt.Equal(t, first, second)
	})

	t.Run("invalid filter and empty limit", func(t *testing.T) {
		store := memory.New()
		_, err := store.Retrieve(ctx, model.Category("nope"), 3)
		gt.True(t, errors.Is(err, model.ErrInvalidCategory))

		records, err := store.Retrieve(ctx, model.CategoryAll, 0)
		gt.NoError(t, err)
		gt.A(t, records).Length(0)
	})
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New(memory.WithClock(tickingClock()))

	entries := []struct {
		category model.Category
		topic    string
		content  string
	}{
		{model.CategoryKnowledge, "neural networks", "Neural networks are computing systems inspired by biological neural networks."},
		{model.CategoryKnowledge, "transformers", "Transformers use self-attention mechanisms to process sequential data in parallel."},
		{model.CategoryKnowledge, "reinforcement learning", "Agents learn to make decisions by interacting with an environment."},
		{model.CategoryConversation, "", "We covered convolutional layers and pooling."},
		{model.CategoryKnowledge, "deep learning", "Deep learning uses neural networks with multiple layers."},
	}
	for _, e := range entries {
		var md model.Metadata
		if e.topic != "" {
			md = model.NewMetadata(model.MetaTopic, e.topic)
		}
		_, err := store.Store(ctx, e.category, e.content, md)
		gt.NoError(t, err)
	}
	return store
}

func TestSearchEmptyStore(t *testing.T) {
	store := memory.New()
	for _, mode := range []model.SearchMode{model.SearchModeVector, model.SearchModeKeyword, model.SearchModeHybrid} {
		results, err := store.Search(context.Background(), "neural networks", mode, 5)
		gt.NoError(t, err)
		gt.A(t, results).Length(0)
	}
}

func TestSearchHybrid(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	for _, limit := range []int{1, 2, 3, 5, 10} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			results, err := store.Search(ctx, "neural networks layers", model.SearchModeHybrid, limit)
			gt.NoError(t, err)
			gt.True(t, len(results) <= limit)

			seen := map[model.RecordID]bool{}
			for i, r := range results {
				gt.False(t, seen[r.ID])
				seen[r.ID] = true
				if i > 0 {
					gt.True(t, results[i-1].Score >= r.Score)
				}
			}
		})
	}
}

func TestSearchHybridMerge(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	idA, err := store.Store(ctx, model.CategoryKnowledge, "zeta eta theta iota kappa lambda", nil)
	gt.NoError(t, err)
	idB, err := store.Store(ctx, model.CategoryKnowledge, "zetas", nil)
	gt.NoError(t, err)

	t.Run("keyword-only hit gets the fixed score", func(t *testing.T) {
		// the vector path returns only A, while "zeta" is a substring of B
		results, err := store.Search(ctx, "zeta", model.SearchModeHybrid, 1)
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].ID, idB)
		gt.Equal(t, results[0].Score, memory.KeywordOnlyScore)
	})

	t.Run("vector hit wins over keyword duplicate", func(t *testing.T) {
		results, err := store.Search(ctx, "zeta", model.SearchModeHybrid, 2)
		gt.NoError(t, err)
		gt.A(t, results).Length(2)
		gt.Equal(t, results[0].ID, idA)
		gt.Equal(t, results[1].ID, idB)
		gt.True(t, results[0].Score < memory.KeywordOnlyScore)
		gt.True(t, results[1].Score < results[0].Score)
	})

	t.Run("keyword mode keeps raw match score", func(t *testing.T) {
		results, err := store.Search(ctx, "zeta", model.SearchModeKeyword, 5)
		gt.NoError(t, err)
		gt.A(t, results).Length(2)
		gt.Equal(t, results[0].Score, 1.0)
		gt.Equal(t, results[1].Score, 1.0)
	})
}

func TestSearchKeyword(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	t.Run("substring match scores 1", func(t *testing.T) {
		results, err := store.Search(ctx, "SELF-ATTENTION", model.SearchModeKeyword, 5)
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].Topic(), "transformers")
		gt.Equal(t, results[0].Score, 1.0)
	})

	t.Run("topic substring scores 1", func(t *testing.T) {
		results, err := store.Search(ctx, "reinforcement", model.SearchModeKeyword, 5)
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].Score, 1.0)
	})

	t.Run("partial overlap is a fraction", func(t *testing.T) {
		results, err := store.Search(ctx, "layers quantum", model.SearchModeKeyword, 5)
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].Score, 0.5)
		gt.Equal(t, results[0].Category, model.CategoryConversation)
	})

	t.Run("no overlap excludes records", func(t *testing.T) {
		results, err := store.Search(ctx, "quantum chemistry", model.SearchModeKeyword, 5)
		gt.NoError(t, err)
		gt.A(t, results).Length(0)
	})

	t.Run("blank query matches nothing", func(t *testing.T) {
		results, err := store.Search(ctx, "   ", model.SearchModeKeyword, 5)
		gt.NoError(t, err)
		gt.A(t, results).Length(0)
	})
}

func TestSearchVector(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	results, err := store.Search(ctx, "transformers Transformers use self-attention mechanisms to process sequential data in parallel.", model.SearchModeVector, 3)
	gt.NoError(t, err)
	gt.A(t, results).Length(3)
	gt.Equal(t, results[0].Topic(), "transformers")
	gt.True(t, results[0].Score > 0.99)
}

func TestSearchInvalidMode(t *testing.T) {
	store := memory.New()
	_, err := store.Search(context.Background(), "x", model.SearchMode("fuzzy"), 5)
	gt.True(t, errors.Is(err, model.ErrInvalidSearchMode))
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	_, err := store.Store(ctx, model.CategoryKnowledge, "more on transformers", model.NewMetadata(model.MetaTopic, "transformers"))
	gt.NoError(t, err)
	_, err = store.Store(ctx, model.CategoryAgentState, "idle", model.NewMetadata(model.MetaAgent, "ResearchAgent"))
	gt.NoError(t, err)

	stats := store.Stats()
	gt.Equal(t, stats.ConversationCount, 1)
	gt.Equal(t, stats.KnowledgeCount, 5)
	gt.Equal(t, stats.KnowledgeTopics, 4)
	gt.Equal(t, stats.AgentStateCount, 1)
	gt.Equal(t, stats.AgentStates, 1)
	gt.Equal(t, stats.IndexSize, 7)
}

func TestStoreHook(t *testing.T) {
	var got []model.RecordID
	store := memory.New(memory.WithStoreHook(func(ctx context.Context, rec *model.MemoryRecord) {
		got = append(got, rec.ID)
	}))

	_, err := store.Store(context.Background(), model.CategoryConversation, "hello", nil)
	gt.NoError(t, err)
	gt.Equal(t, got, []model.RecordID{"mem_0"})
}

func TestConcurrentStoreAndSearch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := store.Store(ctx, model.CategoryKnowledge, fmt.Sprintf("fact %d about learning", i), nil)
			gt.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			_, err := store.Search(ctx, "learning", model.SearchModeHybrid, 5)
			gt.NoError(t, err)
		}()
	}
	wg.Wait()

	stats := store.Stats()
	gt.Equal(t, stats.KnowledgeCount, 8)
	gt.Equal(t, stats.IndexSize, 8)
}
