package contextmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAndGetMessages(t *testing.T) {
	cm := NewContextManager()
	cm.AddMessage("user", "implement the plan")
	cm.AddMessage("assistant", "reading files")
	cm.AddToolResult("read_file", `{"ok":true}`)

	msgs := cm.GetMessages()
	assert.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "user", msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "read_file")

	// Mutating the copy does not affect the manager.
	msgs[0].Content = "changed"
	assert.Equal(t, "implement the plan", cm.GetMessages()[0].Content)
}

func TestCountTokensGrows(t *testing.T) {
	cm := NewContextManager()
	before := cm.CountTokens()
	cm.AddMessage("user", "some words that definitely take up tokens in any encoding")
	assert.Greater(t, cm.CountTokens(), before)
}

func TestClear(t *testing.T) {
	cm := NewContextManager()
	cm.AddMessage("user", "x")
	cm.Clear()
	assert.Zero(t, cm.GetMessageCount())
}
