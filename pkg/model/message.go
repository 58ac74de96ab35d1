package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

type MessageType string

const (
	MessageTypeTask     MessageType = "task"
	MessageTypeResponse MessageType = "response"
	MessageTypeResearch MessageType = "research"
	MessageTypeAnalyze  MessageType = "analyze"
	MessageTypeRetrieve MessageType = "retrieve"
	MessageTypeStore    MessageType = "store"
)

// Agent names a participant of the message exchange
type Agent string

const (
	AgentCoordinator Agent = "Coordinator"
	AgentResearch    Agent = "ResearchAgent"
	AgentAnalysis    Agent = "AnalysisAgent"
	AgentMemory      Agent = "MemoryAgent"
)

// Message is the envelope for every call between agents
type Message struct {
	ID        MessageID      `json:"id"`
	Sender    Agent          `json:"sender"`
	Recipient Agent          `json:"recipient"`
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewMessage creates a message stamped with a fresh ID and the current time
func NewMessage(sender, recipient Agent, msgType MessageType, payload map[string]any) *Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Message{
		ID:        NewMessageID(),
		Sender:    sender,
		Recipient: recipient,
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Reply creates a response message addressed back to the sender of m
func (m *Message) Reply(payload map[string]any) *Message {
	return NewMessage(m.Recipient, m.Sender, MessageTypeResponse, payload)
}

// Capabilities describes what an agent can and cannot do
type Capabilities struct {
	Name           Agent    `json:"name"`
	Role           string   `json:"role"`
	Capabilities   []string `json:"capabilities"`
	NoCapabilities []string `json:"no_capabilities,omitempty"`
}
