package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/convene/pkg/utils/logging"
)

// Operation names accepted by HandleMessage
const (
	OpStore    = "store"
	OpRetrieve = "retrieve"
	OpSearch   = "search"
)

// Response statuses of HandleMessage
const (
	StatusStored    = "stored"
	StatusRetrieved = "retrieved"
	StatusSearched  = "searched"
	StatusError     = "error"
)

const (
	defaultRetrieveLimit = 10
	defaultSearchLimit   = 5
)

// HandleMessage serves a request envelope and always returns a response. An
// unknown operation or a bad argument yields status "error" with an "error"
// entry in the result instead of a Go error.
func (s *Store) HandleMessage(ctx context.Context, msg *model.Message) *model.Message {
	op := stringArg(msg.Payload, "operation", OpRetrieve)

	var (
		result map[string]any
		status string
		err    error
	)

	switch op {
	case OpStore:
		result, err = s.handleStore(ctx, msg.Payload)
		status = StatusStored
	case OpRetrieve:
		result, err = s.handleRetrieve(ctx, msg.Payload)
		status = StatusRetrieved
	case OpSearch:
		result, err = s.handleSearch(ctx, msg.Payload)
		status = StatusSearched
	default:
		result = map[string]any{"error": fmt.Sprintf("unknown operation: %s", op)}
		status = StatusError
	}

	if err != nil {
		logging.From(ctx).Warn("memory operation failed", "operation", op, "error", err)
		result = map[string]any{"error": err.Error()}
		status = StatusError
	}

	return msg.Reply(map[string]any{
		"operation": op,
		"result":    result,
		"status":    status,
	})
}

func (s *Store) handleStore(ctx context.Context, payload map[string]any) (map[string]any, error) {
	category := model.Category(stringArg(payload, "memory_type", string(model.CategoryConversation)))
	content := stringArg(payload, "content", "")

	var md model.Metadata
	switch v := payload["metadata"].(type) {
	case model.Metadata:
		md = v
	case map[string]any:
		// plain maps carry no order; sort keys to keep records deterministic
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			md = md.With(key, v[key])
		}
	}

	id, err := s.Store(ctx, category, content, md)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"memory_id":   string(id),
		"status":      StatusStored,
		"memory_type": string(category),
	}, nil
}

func (s *Store) handleRetrieve(ctx context.Context, payload map[string]any) (map[string]any, error) {
	category := model.Category(stringArg(payload, "memory_type", string(model.CategoryAll)))
	limit := intArg(payload, "limit", defaultRetrieveLimit)

	records, err := s.Retrieve(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"memories": records,
		"count":    len(records),
	}, nil
}

func (s *Store) handleSearch(ctx context.Context, payload map[string]any) (map[string]any, error) {
	query := stringArg(payload, "query", "")
	mode := model.SearchMode(stringArg(payload, "search_type", string(model.SearchModeHybrid)))
	limit := intArg(payload, "limit", defaultSearchLimit)

	results, err := s.Search(ctx, query, mode, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"query":   query,
		"results": results,
		"count":   len(results),
	}, nil
}

func stringArg(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// intArg accepts int and float64 so payloads decoded from JSON work as well
func intArg(payload map[string]any, key string, fallback int) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
