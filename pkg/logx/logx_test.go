package logx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithAgentID(t *testing.T) {
	base := NewLogger("watcher")
	derived := base.WithAgentID("coder")

	assert.Equal(t, "watcher", base.GetAgentID())
	assert.Equal(t, "coder", derived.GetAgentID())
}

func TestWrap(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := Wrap(base, "clone failed")

	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, base)
	assert.Contains(t, wrapped.Error(), "clone failed")

	assert.NoError(t, Wrap(nil, "ignored"))
}

func TestDomainFiltering(t *testing.T) {
	debugMutex.Lock()
	debugConfig.Enabled = true
	debugConfig.Domains = map[string]bool{"coder": true}
	debugMutex.Unlock()
	t.Cleanup(func() {
		debugMutex.Lock()
		debugConfig.Enabled = false
		debugConfig.Domains = nil
		debugMutex.Unlock()
	})

	assert.True(t, IsDebugEnabledForDomain("coder"))
	assert.False(t, IsDebugEnabledForDomain("reviewer"))

	debugMutex.Lock()
	debugConfig.Domains = nil
	debugMutex.Unlock()
	assert.True(t, IsDebugEnabledForDomain("reviewer"))
}
