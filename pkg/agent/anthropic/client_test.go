package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueagents/pkg/agent"
)

func TestNormalizeExtractsSystemAndMerges(t *testing.T) {
	system, merged, err := normalize([]agent.CompletionMessage{
		agent.NewSystemMessage("be careful"),
		agent.NewUserMessage("first"),
		agent.NewUserMessage("second"),
		agent.NewAssistantMessage("reply"),
		agent.NewUserMessage("third"),
	})
	require.NoError(t, err)

	assert.Equal(t, "be careful", system)
	require.Len(t, merged, 3)
	assert.Equal(t, agent.RoleUser, merged[0].Role)
	assert.Equal(t, "first\n\nsecond", merged[0].Content)
	assert.Equal(t, agent.RoleAssistant, merged[1].Role)
	assert.Equal(t, agent.RoleUser, merged[2].Role)
}

func TestNormalizeRejectsAssistantTail(t *testing.T) {
	_, _, err := normalize([]agent.CompletionMessage{
		agent.NewUserMessage("hi"),
		agent.NewAssistantMessage("reply"),
	})
	assert.Error(t, err)
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	_, _, err := normalize([]agent.CompletionMessage{
		agent.NewSystemMessage("only system"),
	})
	assert.Error(t, err)
}
