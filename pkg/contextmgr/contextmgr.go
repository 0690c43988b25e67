// Package contextmgr maintains the conversation history for a tool
// loop and tracks its token footprint.
package contextmgr

import (
	"fmt"
	"strings"

	"issueagents/pkg/utils"
)

// Message is one entry in the conversation.
type Message struct {
	Role    string
	Content string
}

// ContextManager accumulates messages for the LLM conversation.
type ContextManager struct {
	messages []Message
	counter  *utils.TokenCounter
}

// NewContextManager creates an empty context manager. Token counting
// degrades to estimation when the tokenizer cannot be constructed.
func NewContextManager() *ContextManager {
	counter, err := utils.NewTokenCounter()
	if err != nil {
		counter = nil
	}
	return &ContextManager{
		messages: make([]Message, 0),
		counter:  counter,
	}
}

// AddMessage appends a message to the context.
func (cm *ContextManager) AddMessage(role, content string) {
	cm.messages = append(cm.messages, Message{Role: role, Content: content})
}

// AddToolResult appends a tool execution result as a user message, the
// shape tool-calling conversations expect.
func (cm *ContextManager) AddToolResult(toolName, result string) {
	cm.AddMessage("user", fmt.Sprintf("Tool %s result:\n%s", toolName, result))
}

// GetMessages returns a copy of the current messages.
func (cm *ContextManager) GetMessages() []Message {
	out := make([]Message, len(cm.messages))
	copy(out, cm.messages)
	return out
}

// GetMessageCount returns the number of messages.
func (cm *ContextManager) GetMessageCount() int {
	return len(cm.messages)
}

// CountTokens returns the token footprint of the whole conversation.
func (cm *ContextManager) CountTokens() int {
	var b strings.Builder
	for i := range cm.messages {
		b.WriteString(cm.messages[i].Content)
		b.WriteString("\n")
	}
	return cm.counter.CountTokens(b.String())
}

// Clear removes all messages.
func (cm *ContextManager) Clear() {
	cm.messages = cm.messages[:0]
}
