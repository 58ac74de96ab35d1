package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/convene/pkg/memory"
	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/gt"
)

func request(payload map[string]any) *model.Message {
	return model.NewMessage(model.AgentCoordinator, model.AgentMemory, model.MessageTypeTask, payload)
}

func resultOf(t *testing.T, msg *model.Message) map[string]any {
	t.Helper()
	result, ok := msg.Payload["result"].(map[string]any)
	gt.True(t, ok)
	return result
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	t.Run("store", func(t *testing.T) {
		resp := store.HandleMessage(ctx, request(map[string]any{
			"operation":   memory.OpStore,
			"memory_type": "knowledge",
			"content":     "Transformers use attention",
			"metadata":    map[string]any{"topic": "transformers", "agent": "ResearchAgent"},
		}))
		gt.Equal(t, resp.Type, model.MessageTypeResponse)
		gt.Equal(t, resp.Sender, model.AgentMemory)
		gt.Equal(t, resp.Recipient, model.AgentCoordinator)
		gt.Equal(t, resp.Payload["status"], any(memory.StatusStored))

		result := resultOf(t, resp)
		gt.Equal(t, result["memory_id"], any("mem_0"))
		gt.Equal(t, result["memory_type"], any("knowledge"))
	})

	t.Run("retrieve", func(t *testing.T) {
		resp := store.HandleMessage(ctx, request(map[string]any{
			"operation":   memory.OpRetrieve,
			"memory_type": "all",
			"limit":       float64(5),
		}))
		gt.Equal(t, resp.Payload["status"], any(memory.StatusRetrieved))

		result := resultOf(t, resp)
		gt.Equal(t, result["count"], any(1))
		records, ok := result["memories"].([]*model.MemoryRecord)
		gt.True(t, ok)
		gt.Equal(t, records[0].Metadata.String("topic"), "transformers")
	})

	t.Run("search", func(t *testing.T) {
		resp := store.HandleMessage(ctx, request(map[string]any{
			"operation":   memory.OpSearch,
			"query":       "attention",
			"search_type": "keyword",
		}))
		gt.Equal(t, resp.Payload["status"], any(memory.StatusSearched))

		result := resultOf(t, resp)
		results, ok := result["results"].([]*model.ScoredRecord)
		gt.True(t, ok)
		gt.A(t, results).Length(1)
	})

	t.Run("unknown operation", func(t *testing.T) {
		resp := store.HandleMessage(ctx, request(map[string]any{"operation": "delete"}))
		gt.Equal(t, resp.Payload["status"], any(memory.StatusError))
		gt.Equal(t, resultOf(t, resp)["error"], any("unknown operation: delete"))
	})

	t.Run("invalid category", func(t *testing.T) {
		resp := store.HandleMessage(ctx, request(map[string]any{
			"operation":   memory.OpStore,
			"memory_type": "episodes",
			"content":     "x",
		}))
		gt.Equal(t, resp.Payload["status"], any(memory.StatusError))
		_, ok := resultOf(t, resp)["error"].(string)
		gt.True(t, ok)
	})

	t.Run("invalid search mode", func(t *testing.T) {
		resp := store.HandleMessage(ctx, request(map[string]any{
			"operation":   memory.OpSearch,
			"query":       "x",
			"search_type": "fuzzy",
		}))
		gt.Equal(t, resp.Payload["status"], any(memory.StatusError))
	})

	gt.Equal(t, store.Stats().KnowledgeCount, 1)
}
